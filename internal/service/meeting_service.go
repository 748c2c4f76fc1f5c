package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/repository"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

type meetingStore interface {
	Create(ctx context.Context, m *models.Meeting) error
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	FindLatestByThread(ctx context.Context, threadID string) (*models.Meeting, error)
	AcceptTerms(ctx context.Context, id string, party models.Party) (*models.Meeting, error)
	SetPostStatus(ctx context.Context, id string, party models.Party, status models.PostStatus) (*models.Meeting, error)
	MarkAdditionalQuestionAnswered(ctx context.Context, id string) (*models.Meeting, error)
	Confirm(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string, by *string, reason *string) error
}

type threadReader interface {
	FindByID(ctx context.Context, id string) (*models.Thread, error)
}

// MeetingService drives the per-party meeting lifecycle.
//
// Each party only ever writes its own side of the record; shared status flips
// are guarded updates, so a lost race surfaces as INVALID_STATE carrying the
// status the caller should resync to.
type MeetingService struct {
	repo     meetingStore
	threads  threadReader
	users    userReader
	notifier notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewMeetingService constructs a MeetingService.
func NewMeetingService(repo meetingStore, threads threadReader, users userReader, notifier notifier, metrics *MetricsService, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{repo: repo, threads: threads, users: users, notifier: notifier, metrics: metrics, logger: logger}
}

// Create opens a meeting on a thread between the calling student and a mentor.
func (s *MeetingService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateMeetingRequest) (*dto.MeetingView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can start a meeting")
	}
	if req.ThreadID == "" {
		return nil, appErrors.Validation("invalid meeting payload", map[string]string{"threadId": "is required"})
	}

	thread, err := s.loadThread(ctx, actor, req.ThreadID)
	if err != nil {
		return nil, err
	}
	mentor, err := s.users.FindByID(ctx, thread.Other(actor.UserID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load counterpart")
	}
	if mentor == nil || mentor.Role != models.RoleOBOG {
		return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "thread counterpart is not a mentor")
	}

	meeting := &models.Meeting{ThreadID: thread.ID, StudentID: actor.UserID, ObogID: mentor.ID}
	if err := s.repo.Create(ctx, meeting); err != nil {
		if errors.Is(err, repository.ErrOpenMeetingExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an open meeting already exists for this thread")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting")
	}

	s.notifier.Notify(ctx, threadNotification(mentor.ID, models.NotificationMeetingCreated, thread.ID,
		"New meeting request", fmt.Sprintf("%s would like to schedule a meeting.", actorName(actor))))
	return s.view(meeting, actor), nil
}

// Get returns a meeting visible to the caller.
func (s *MeetingService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error) {
	meeting, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(meeting, actor), nil
}

// GetByThread returns the most recent meeting of a thread.
func (s *MeetingService) GetByThread(ctx context.Context, actor *models.JWTClaims, threadID string) (*dto.MeetingView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.loadThread(ctx, actor, threadID); err != nil {
		return nil, err
	}
	meeting, err := s.repo.FindLatestByThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thread has no meeting")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return s.view(meeting, actor), nil
}

// AcceptTerms records the caller's acceptance of the meeting terms. Accepting twice is a no-op.
func (s *MeetingService) AcceptTerms(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error) {
	meeting, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if meeting.Status == models.MeetingStatusCancelled {
		return nil, appErrors.InvalidState("meeting is cancelled", string(meeting.Status))
	}
	if meeting.Side(party).TermsAccepted {
		return s.view(meeting, actor), nil
	}

	updated, err := s.repo.AcceptTerms(ctx, id, party)
	if err != nil {
		return nil, s.transitionFailed(ctx, err, id, "meeting was cancelled before terms were accepted")
	}
	s.metrics.MeetingTransition("accept_terms")

	s.notifier.Notify(ctx, threadNotification(updated.Counterpart(party), models.NotificationTermsAccepted, updated.ThreadID,
		"Meeting terms accepted", fmt.Sprintf("%s accepted the meeting terms.", actorName(actor))))
	return s.view(updated, actor), nil
}

// Confirm moves an unconfirmed meeting to confirmed once both parties accepted the terms.
func (s *MeetingService) Confirm(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error) {
	meeting, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if party != models.PartyOBOG {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the mentor can confirm a meeting")
	}
	if !meeting.BothTermsAccepted() {
		return nil, termsNotAccepted(meeting.ID, meeting.Student.TermsAccepted, meeting.Obog.TermsAccepted)
	}
	if meeting.Status != models.MeetingStatusUnconfirmed {
		return nil, appErrors.InvalidState("only unconfirmed meetings can be confirmed", string(meeting.Status))
	}

	if err := s.repo.Confirm(ctx, id); err != nil {
		return nil, s.transitionFailed(ctx, err, id, "meeting changed before it could be confirmed")
	}
	s.metrics.MeetingTransition("confirm")

	updated, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, threadNotification(updated.StudentID, models.NotificationMeetingConfirmed, updated.ThreadID,
		"Meeting confirmed", fmt.Sprintf("%s confirmed the meeting.", actorName(actor))))
	return s.view(updated, actor), nil
}

// Complete records the caller's report that the meeting took place.
func (s *MeetingService) Complete(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error) {
	return s.report(ctx, actor, id, models.PostStatusCompleted)
}

// NoShow records the caller's report that the other party did not attend.
// It never changes the shared status nor anyone's strikes.
func (s *MeetingService) NoShow(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error) {
	return s.report(ctx, actor, id, models.PostStatusNoShow)
}

func (s *MeetingService) report(ctx context.Context, actor *models.JWTClaims, id string, status models.PostStatus) (*dto.MeetingView, error) {
	meeting, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingStatusConfirmed && meeting.Status != models.MeetingStatusCompleted {
		return nil, appErrors.InvalidState("meeting must be confirmed before reporting", string(meeting.Status))
	}

	updated, err := s.repo.SetPostStatus(ctx, id, party, status)
	if err != nil {
		return nil, s.transitionFailed(ctx, err, id, "meeting changed before the report was recorded")
	}
	s.metrics.MeetingTransition(string(status))

	title, body := "Meeting completed", fmt.Sprintf("%s marked the meeting as completed.", actorName(actor))
	if status == models.PostStatusNoShow {
		title, body = "Meeting reported", fmt.Sprintf("%s reported a no-show for the meeting.", actorName(actor))
	}
	s.notifier.Notify(ctx, threadNotification(updated.Counterpart(party), models.NotificationMeetingReported, updated.ThreadID, title, body))
	return s.view(updated, actor), nil
}

// Cancel cancels an open meeting nobody has reported on yet, together with its booking.
func (s *MeetingService) Cancel(ctx context.Context, actor *models.JWTClaims, id string, req dto.CancelRequest) (*dto.MeetingView, error) {
	meeting, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if meeting.Status != models.MeetingStatusUnconfirmed && meeting.Status != models.MeetingStatusConfirmed {
		return nil, appErrors.InvalidState("meeting can no longer be cancelled", string(meeting.Status))
	}
	if meeting.AnyReported() {
		return nil, appErrors.InvalidState("meeting already took place and cannot be cancelled", string(meeting.Status))
	}

	by := actor.UserID
	reason := trimmedOrNil(req.Reason)
	if err := s.repo.Cancel(ctx, id, &by, reason); err != nil {
		return nil, s.transitionFailed(ctx, err, id, "meeting changed before it could be cancelled")
	}
	s.metrics.MeetingTransition("cancel")

	updated, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	body := fmt.Sprintf("%s cancelled the meeting.", actorName(actor))
	if reason != nil {
		body = fmt.Sprintf("%s Reason: %s", body, *reason)
	}
	s.notifier.Notify(ctx, threadNotification(updated.Counterpart(party), models.NotificationMeetingCancelled, updated.ThreadID, "Meeting cancelled", body))
	return s.view(updated, actor), nil
}

// AnswerAdditionalQuestion marks the student's one-time follow-up as answered.
func (s *MeetingService) AnswerAdditionalQuestion(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error) {
	meeting, party, err := s.loadAsParty(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if party != models.PartyStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student answers the additional question")
	}
	if meeting.Student.PostStatus == nil || *meeting.Student.PostStatus != models.PostStatusCompleted {
		return nil, appErrors.InvalidState("report the meeting as completed first", string(meeting.Status))
	}
	if meeting.Student.AdditionalQuestionAnswered {
		return s.view(meeting, actor), nil
	}

	updated, err := s.repo.MarkAdditionalQuestionAnswered(ctx, id)
	if err != nil {
		return nil, s.transitionFailed(ctx, err, id, "meeting changed before the answer was recorded")
	}
	return s.view(updated, actor), nil
}

func (s *MeetingService) load(ctx context.Context, actor *models.JWTClaims, id string) (*models.Meeting, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	meeting, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := meeting.PartyOf(actor.UserID); !ok && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this meeting")
	}
	return meeting, nil
}

// loadAsParty loads the meeting and resolves which side the caller writes.
// Admins can read meetings but never act for a party.
func (s *MeetingService) loadAsParty(ctx context.Context, actor *models.JWTClaims, id string) (*models.Meeting, models.Party, error) {
	if actor == nil {
		return nil, "", appErrors.ErrUnauthorized
	}
	meeting, err := s.reload(ctx, id)
	if err != nil {
		return nil, "", err
	}
	party, ok := meeting.PartyOf(actor.UserID)
	if !ok {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "not a participant of this meeting")
	}
	return meeting, party, nil
}

func (s *MeetingService) reload(ctx context.Context, id string) (*models.Meeting, error) {
	meeting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return meeting, nil
}

func (s *MeetingService) loadThread(ctx context.Context, actor *models.JWTClaims, threadID string) (*models.Thread, error) {
	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thread not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thread")
	}
	if !thread.Has(actor.UserID) && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this thread")
	}
	return thread, nil
}

func (s *MeetingService) transitionFailed(ctx context.Context, err error, id, message string) error {
	if !errors.Is(err, repository.ErrStateChanged) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update meeting")
	}
	current, loadErr := s.repo.FindByID(ctx, id)
	if loadErr != nil {
		return appErrors.Clone(appErrors.ErrInvalidState, message)
	}
	return appErrors.InvalidState(message, string(current.Status))
}

func (s *MeetingService) view(m *models.Meeting, actor *models.JWTClaims) *dto.MeetingView {
	view := dto.NewMeetingView(m, actor.UserID)
	return &view
}

func actorName(actor *models.JWTClaims) string {
	if actor.Name != "" {
		return actor.Name
	}
	return "Your counterpart"
}
