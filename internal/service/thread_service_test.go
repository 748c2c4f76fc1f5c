package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

func newThreadFixture() (*ThreadService, *memoryStore, *recordingNotifier) {
	f := newLifecycleFixture()
	svc := NewThreadService(memoryThreads{f.store}, memoryUsers{f.store}, f.notes, nil, zap.NewNop())
	return svc, f.store, f.notes
}

func TestThreadGetOrCreateIsSymmetric(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newThreadFixture()

	fromStudent, err := svc.GetOrCreate(ctx, studentS1, dto.CreateThreadRequest{UserID: "M1"})
	require.NoError(t, err)
	fromMentor, err := svc.GetOrCreate(ctx, mentorM1, dto.CreateThreadRequest{UserID: "S1"})
	require.NoError(t, err)

	assert.Equal(t, fromStudent.ID, fromMentor.ID)
	assert.Equal(t, "M1", fromStudent.Counterpart.ID)
	assert.Equal(t, "S1", fromMentor.Counterpart.ID)
	assert.Equal(t, models.ThreadLink(fromStudent.ID), fromStudent.Link)

	_, err = svc.GetOrCreate(ctx, studentS1, dto.CreateThreadRequest{UserID: "S1"})
	requireAppError(t, err, appErrors.ErrValidation)
	_, err = svc.GetOrCreate(ctx, studentS1, dto.CreateThreadRequest{UserID: "ghost"})
	requireAppError(t, err, appErrors.ErrNotFound)
}

// caseFoldingUsers resolves ids case-insensitively, as a UUID column does.
type caseFoldingUsers struct{ memoryUsers }

func (u caseFoldingUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return u.memoryUsers.FindByID(ctx, strings.ToUpper(id))
}

func TestThreadGetOrCreateRejectsOwnIDInAnotherCase(t *testing.T) {
	ctx := context.Background()
	f := newLifecycleFixture()
	svc := NewThreadService(memoryThreads{f.store}, caseFoldingUsers{memoryUsers{f.store}}, f.notes, nil, zap.NewNop())

	_, err := svc.GetOrCreate(ctx, mentorM1, dto.CreateThreadRequest{UserID: "m1"})
	requireAppError(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.store.threads)

	thread, err := svc.GetOrCreate(ctx, mentorM1, dto.CreateThreadRequest{UserID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "S1", thread.Counterpart.ID)
}

func TestThreadSendNotifiesCounterpart(t *testing.T) {
	ctx := context.Background()
	svc, _, notes := newThreadFixture()
	thread, err := svc.GetOrCreate(ctx, studentS1, dto.CreateThreadRequest{UserID: "M1"})
	require.NoError(t, err)

	msg, err := svc.Send(ctx, studentS1, thread.ID, dto.SendMessageRequest{Content: "  Hello senpai!  "})
	require.NoError(t, err)
	assert.Equal(t, "Hello senpai!", msg.Content)
	assert.Equal(t, "S1", msg.SenderID)

	received := notes.sentTo("M1")
	require.Len(t, received, 1)
	assert.Equal(t, models.NotificationNewMessage, received[0].Type)
	assert.Equal(t, models.ThreadLink(thread.ID), received[0].Link)
	assert.Empty(t, notes.charges)

	messages, page, err := svc.Messages(ctx, mentorM1, thread.ID, dto.PageQuery{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, 1, page.TotalCount)
}

func TestThreadSendByCompanyRecordsCharge(t *testing.T) {
	ctx := context.Background()
	svc, _, notes := newThreadFixture()
	company := actorFor("C1", models.RoleCompany)
	thread, err := svc.GetOrCreate(ctx, company, dto.CreateThreadRequest{UserID: "S1"})
	require.NoError(t, err)

	msg, err := svc.Send(ctx, company, thread.ID, dto.SendMessageRequest{Content: strings.Repeat("x", 120)})
	require.NoError(t, err)

	require.Len(t, notes.charges, 1)
	charge := notes.charges[0]
	assert.Equal(t, models.ChargeEventMessageSent, charge.Kind)
	assert.Equal(t, msg.ID, charge.MessageID)
	assert.Equal(t, "C1", charge.PayerID)
	assert.Equal(t, "S1", charge.RecipientID)

	received := notes.sentTo("S1")
	require.Len(t, received, 1)
	assert.True(t, strings.HasSuffix(received[0].Body, "..."))
}

func TestThreadAccessIsLimitedToParticipants(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newThreadFixture()
	thread, err := svc.GetOrCreate(ctx, studentS1, dto.CreateThreadRequest{UserID: "M1"})
	require.NoError(t, err)

	_, err = svc.Send(ctx, studentS2, thread.ID, dto.SendMessageRequest{Content: "hi"})
	requireAppError(t, err, appErrors.ErrForbidden)
	_, err = svc.Send(ctx, adminA1, thread.ID, dto.SendMessageRequest{Content: "hi"})
	requireAppError(t, err, appErrors.ErrForbidden)
	_, _, err = svc.Messages(ctx, adminA1, thread.ID, dto.PageQuery{})
	require.NoError(t, err)
	_, err = svc.Send(ctx, studentS1, thread.ID, dto.SendMessageRequest{Content: "   "})
	requireAppError(t, err, appErrors.ErrValidation)

	listed, err := svc.List(ctx, mentorM1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "S1", listed[0].Counterpart.ID)
}
