package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

// confirmedMeeting books slotA for S1 with M1 and drives the meeting to confirmed.
func confirmedMeeting(t *testing.T, f *lifecycleFixture) string {
	t.Helper()
	ctx := context.Background()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)
	id := booking.Meeting.ID
	_, err = f.meetings.AcceptTerms(ctx, studentS1, id)
	require.NoError(t, err)
	_, err = f.meetings.AcceptTerms(ctx, mentorM1, id)
	require.NoError(t, err)
	_, err = f.meetings.Confirm(ctx, mentorM1, id)
	require.NoError(t, err)
	return id
}

func TestMeetingPostReportsCommute(t *testing.T) {
	ctx := context.Background()
	orders := map[string][]func(f *lifecycleFixture, id string) error{
		"student first": {
			func(f *lifecycleFixture, id string) error { _, err := f.meetings.Complete(ctx, studentS1, id); return err },
			func(f *lifecycleFixture, id string) error { _, err := f.meetings.NoShow(ctx, mentorM1, id); return err },
		},
		"mentor first": {
			func(f *lifecycleFixture, id string) error { _, err := f.meetings.NoShow(ctx, mentorM1, id); return err },
			func(f *lifecycleFixture, id string) error { _, err := f.meetings.Complete(ctx, studentS1, id); return err },
		},
	}

	results := map[string]*dto.MeetingView{}
	for name, steps := range orders {
		f := newLifecycleFixture()
		id := confirmedMeeting(t, f)
		for _, step := range steps {
			require.NoError(t, step(f, id), name)
		}
		view, err := f.meetings.Get(ctx, adminA1, id)
		require.NoError(t, err)
		results[name] = view
	}

	for name, view := range results {
		assert.Equal(t, models.MeetingStatusCompleted, view.Status, name)
		require.NotNil(t, view.StudentPostStatus, name)
		require.NotNil(t, view.ObogPostStatus, name)
		assert.Equal(t, models.PostStatusCompleted, *view.StudentPostStatus, name)
		assert.Equal(t, models.PostStatusNoShow, *view.ObogPostStatus, name)
	}
}

func TestMeetingNoShowKeepsStatusConfirmed(t *testing.T) {
	f := newLifecycleFixture()
	id := confirmedMeeting(t, f)

	view, err := f.meetings.NoShow(context.Background(), studentS1, id)
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusConfirmed, view.Status)
	assert.Nil(t, view.ObogPostStatus)
	assert.False(t, view.ReviewUnlocked)

	user, err := memoryUsers{f.store}.FindByID(context.Background(), "S1")
	require.NoError(t, err)
	assert.Zero(t, user.Strikes)
}

func TestMeetingCancelBoundary(t *testing.T) {
	ctx := context.Background()
	for name, report := range map[string]func(f *lifecycleFixture, id string) error{
		"after completion": func(f *lifecycleFixture, id string) error { _, err := f.meetings.Complete(ctx, mentorM1, id); return err },
		"after no-show":    func(f *lifecycleFixture, id string) error { _, err := f.meetings.NoShow(ctx, studentS1, id); return err },
	} {
		t.Run(name, func(t *testing.T) {
			f := newLifecycleFixture()
			id := confirmedMeeting(t, f)
			require.NoError(t, report(f, id))

			_, err := f.meetings.Cancel(ctx, studentS1, id, dto.CancelRequest{})
			requireAppError(t, err, appErrors.ErrInvalidState)
		})
	}
}

func TestMeetingCancelCascadesToBooking(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)
	f.notes.reset()

	reason := "sick"
	view, err := f.meetings.Cancel(ctx, mentorM1, booking.Meeting.ID, dto.CancelRequest{Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusCancelled, view.Status)
	require.NotNil(t, view.CancellationReason)
	assert.Equal(t, "sick", *view.CancellationReason)

	refreshed, err := f.bookings.Get(ctx, studentS1, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, refreshed.Status)
	cancelled := f.notes.sentTo("S1")
	require.Len(t, cancelled, 1)
	assert.Equal(t, models.NotificationMeetingCancelled, cancelled[0].Type)

	_, err = f.meetings.AcceptTerms(ctx, studentS1, booking.Meeting.ID)
	requireAppError(t, err, appErrors.ErrInvalidState)
}

func TestMeetingAcceptTermsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)
	f.notes.reset()

	first, err := f.meetings.AcceptTerms(ctx, studentS1, booking.Meeting.ID)
	require.NoError(t, err)
	assert.True(t, first.StudentTermsAccepted)
	assert.False(t, first.ObogTermsAccepted)
	assert.Equal(t, models.MeetingStatusUnconfirmed, first.Status)

	second, err := f.meetings.AcceptTerms(ctx, studentS1, booking.Meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.Len(t, f.notes.sentTo("M1"), 1)
}

func TestMeetingConfirmRules(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)
	id := booking.Meeting.ID

	_, err = f.meetings.Confirm(ctx, mentorM1, id)
	appErr := requireAppError(t, err, appErrors.ErrTermsNotAccepted)
	assert.Equal(t, "/meetings/"+id+"/terms", appErr.Details["redirect"])

	_, err = f.meetings.AcceptTerms(ctx, studentS1, id)
	require.NoError(t, err)
	_, err = f.meetings.AcceptTerms(ctx, mentorM1, id)
	require.NoError(t, err)

	_, err = f.meetings.Confirm(ctx, studentS1, id)
	requireAppError(t, err, appErrors.ErrForbidden)
	_, err = f.meetings.Confirm(ctx, adminA1, id)
	requireAppError(t, err, appErrors.ErrForbidden)

	view, err := f.meetings.Confirm(ctx, mentorM1, id)
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusConfirmed, view.Status)
	assert.Equal(t, 2, view.Version)

	refreshed, err := f.bookings.Get(ctx, mentorM1, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, refreshed.Status)

	_, err = f.meetings.Confirm(ctx, mentorM1, id)
	appErr = requireAppError(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, string(models.MeetingStatusConfirmed), appErr.Details["current_status"])
}

func TestMeetingReportRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)

	_, err = f.meetings.Complete(ctx, studentS1, booking.Meeting.ID)
	appErr := requireAppError(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, string(models.MeetingStatusUnconfirmed), appErr.Details["current_status"])

	_, err = f.meetings.NoShow(ctx, actorFor("S2", models.RoleStudent), booking.Meeting.ID)
	requireAppError(t, err, appErrors.ErrForbidden)
}

func TestMeetingAdditionalQuestion(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	id := confirmedMeeting(t, f)

	_, err := f.meetings.AnswerAdditionalQuestion(ctx, studentS1, id)
	requireAppError(t, err, appErrors.ErrInvalidState)

	_, err = f.meetings.Complete(ctx, studentS1, id)
	require.NoError(t, err)
	_, err = f.meetings.AnswerAdditionalQuestion(ctx, mentorM1, id)
	requireAppError(t, err, appErrors.ErrForbidden)

	view, err := f.meetings.AnswerAdditionalQuestion(ctx, studentS1, id)
	require.NoError(t, err)
	assert.True(t, view.StudentAdditionalQuestionAnswered)
	assert.False(t, view.EvaluationPrompt)

	again, err := f.meetings.AnswerAdditionalQuestion(ctx, studentS1, id)
	require.NoError(t, err)
	assert.True(t, again.StudentAdditionalQuestionAnswered)
}

func TestMeetingCreateFromThread(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	threads := memoryThreads{f.store}
	mentorThread, err := threads.GetOrCreate(ctx, "S1", "M1")
	require.NoError(t, err)
	companyThread, err := threads.GetOrCreate(ctx, "S1", "C1")
	require.NoError(t, err)

	view, err := f.meetings.Create(ctx, studentS1, dto.CreateMeetingRequest{ThreadID: mentorThread.ID})
	require.NoError(t, err)
	assert.Nil(t, view.BookingID)
	assert.Equal(t, "M1", view.ObogID)
	assert.Equal(t, models.PartyStudent, view.Party)
	assert.Len(t, f.notes.sentTo("M1"), 1)

	_, err = f.meetings.Create(ctx, studentS1, dto.CreateMeetingRequest{ThreadID: mentorThread.ID})
	requireAppError(t, err, appErrors.ErrConflict)

	_, err = f.meetings.Create(ctx, studentS1, dto.CreateMeetingRequest{ThreadID: companyThread.ID})
	requireAppError(t, err, appErrors.ErrInvalidTarget)

	_, err = f.meetings.Create(ctx, mentorM1, dto.CreateMeetingRequest{ThreadID: mentorThread.ID})
	requireAppError(t, err, appErrors.ErrForbidden)

	_, err = f.meetings.Create(ctx, studentS2, dto.CreateMeetingRequest{ThreadID: mentorThread.ID})
	requireAppError(t, err, appErrors.ErrForbidden)

	latest, err := f.meetings.GetByThread(ctx, mentorM1, mentorThread.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, latest.ID)
	assert.Equal(t, models.PartyOBOG, latest.Party)
}

func TestMeetingCreateBlockedByBookingMeeting(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)
	require.NotNil(t, booking.Meeting)

	_, err = f.meetings.Create(ctx, studentS1, dto.CreateMeetingRequest{ThreadID: booking.ThreadID})
	requireAppError(t, err, appErrors.ErrConflict)

	latest, err := f.meetings.GetByThread(ctx, studentS1, booking.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, booking.Meeting.ID, latest.ID)

	_, err = f.bookings.Update(ctx, studentS1, booking.ID, cancelAction(""))
	require.NoError(t, err)

	fresh, err := f.meetings.Create(ctx, studentS1, dto.CreateMeetingRequest{ThreadID: booking.ThreadID})
	require.NoError(t, err)
	assert.NotEqual(t, booking.Meeting.ID, fresh.ID)
	assert.Nil(t, fresh.BookingID)
}

// racingMeetings lets the counterpart act between the service's read and its write.
type racingMeetings struct {
	memoryMeetings
	beforeConfirm func()
}

func (r racingMeetings) Confirm(ctx context.Context, id string) error {
	if r.beforeConfirm != nil {
		r.beforeConfirm()
	}
	return r.memoryMeetings.Confirm(ctx, id)
}

func TestMeetingConfirmLosesRaceToCancel(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	booking, err := f.bookings.Create(ctx, studentS1, bookingRequest("M1", slotA))
	require.NoError(t, err)
	id := booking.Meeting.ID
	_, err = f.meetings.AcceptTerms(ctx, studentS1, id)
	require.NoError(t, err)
	_, err = f.meetings.AcceptTerms(ctx, mentorM1, id)
	require.NoError(t, err)

	store := racingMeetings{memoryMeetings: memoryMeetings{f.store}}
	store.beforeConfirm = func() {
		require.NoError(t, store.memoryMeetings.Cancel(ctx, id, strPtrValue("S1"), nil))
	}
	svc := NewMeetingService(store, memoryThreads{f.store}, memoryUsers{f.store}, f.notes, nil, nil)

	_, err = svc.Confirm(ctx, mentorM1, id)
	appErr := requireAppError(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, string(models.MeetingStatusCancelled), appErr.Details["current_status"])
}

func strPtrValue(v string) *string {
	return &v
}
