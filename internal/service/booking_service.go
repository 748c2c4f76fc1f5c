package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/repository"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/logger"
)

const (
	bookingResource         = "booking"
	staleCancellationReason = "expired"
	staleSweepBatch         = 100
)

var meetingURLPattern = regexp.MustCompile(`(?i)^https?://\S+$`)

type bookingStore interface {
	HasActive(ctx context.Context, mentorID, slot string) (bool, error)
	Create(ctx context.Context, booking *models.Booking) (*models.Meeting, error)
	FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error)
	Confirm(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string, by *string, reason *string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.Booking, error)
}

type availabilityReader interface {
	Get(ctx context.Context, mentorID string) (*models.Availability, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BookingConfig tunes booking defaults.
type BookingConfig struct {
	DefaultDurationMinutes int
	StaleAfter             time.Duration
}

// BookingService reserves mentor slots and drives the coarse booking status.
type BookingService struct {
	repo         bookingStore
	availability availabilityReader
	users        userReader
	notifier     notifier
	audit        auditRecorder
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	config       BookingConfig
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	repo bookingStore,
	availability availabilityReader,
	users userReader,
	notifier notifier,
	audit auditRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config BookingConfig,
) *BookingService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultDurationMinutes <= 0 {
		config.DefaultDurationMinutes = 60
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 7 * 24 * time.Hour
	}
	return &BookingService{
		repo:         repo,
		availability: availability,
		users:        users,
		notifier:     notifier,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		config:       config,
	}
}

// Create books one of a mentor's offered slots for the calling student.
func (s *BookingService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateBookingRequest) (*dto.BookingView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request bookings")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid booking payload")
	}

	mentor, err := s.users.FindByID(ctx, req.MentorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	if mentor == nil || mentor.Role != models.RoleOBOG {
		return nil, appErrors.Clone(appErrors.ErrInvalidTarget, "target user is not a mentor")
	}

	availability, err := s.availability.Get(ctx, mentor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if availability == nil || len(availability.Slots()) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoAvailability, "mentor has not published any availability")
	}

	slot := strings.TrimSpace(req.Slot)
	if !availability.Offers(slot) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrSlotNotOffered, "requested slot is not offered by the mentor"),
			map[string]interface{}{"slots": availability.Slots()})
	}

	taken, err := s.repo.HasActive(ctx, mentor.ID, slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot")
	}
	if taken {
		s.metrics.BookingConflict()
		return nil, appErrors.Clone(appErrors.ErrSlotConflict, "slot already booked")
	}

	meetingURL, err := normalizeMeetingURL(req.MeetingURL)
	if err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	duration := s.config.DefaultDurationMinutes
	if req.DurationMinutes != nil {
		duration = *req.DurationMinutes
	}
	booking := &models.Booking{
		StudentID:       student.ID,
		MentorID:        mentor.ID,
		Slot:            slot,
		DurationMinutes: duration,
		Notes:           trimmedOrNil(req.Notes),
		MeetingURL:      meetingURL,
	}

	meeting, err := s.repo.Create(ctx, booking)
	if err != nil {
		if errors.Is(err, repository.ErrActiveSlotTaken) {
			s.metrics.BookingConflict()
			return nil, appErrors.Clone(appErrors.ErrSlotConflict, "slot already booked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	s.metrics.BookingCreated()

	s.notifier.Notify(ctx, threadNotification(mentor.ID, models.NotificationBookingRequest, booking.ThreadID,
		"New booking request",
		fmt.Sprintf("%s requested a meeting at %s.", displayName(student.Public()), slot)))

	detail := &models.BookingDetail{
		Booking:        *booking,
		Student:        student.Public(),
		Mentor:         mentor.Public(),
		MeetingID:      &meeting.ID,
		MeetingStatus:  &meeting.Status,
		MeetingVersion: &meeting.Version,
	}
	falseFlag := false
	detail.StudentTermsAccepted = &falseFlag
	detail.ObogTermsAccepted = &falseFlag
	detail.AdditionalQuestionAnswered = &falseFlag

	view := dto.NewBookingView(detail, actor.UserID)
	return &view, nil
}

// Get returns a booking visible to the caller.
func (s *BookingService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.BookingView, error) {
	detail, err := s.loadForActor(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	view := dto.NewBookingView(detail, actor.UserID)
	return &view, nil
}

// List returns the caller's bookings; admins see all bookings.
func (s *BookingService) List(ctx context.Context, actor *models.JWTClaims, query dto.BookingListQuery) ([]dto.BookingView, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err, "invalid booking filter")
	}

	page, size := normalizePaging(query.Page, query.Limit)
	filter := models.BookingFilter{
		StudentID: query.StudentID,
		MentorID:  query.MentorID,
		Status:    models.BookingStatus(query.Status),
		Page:      page,
		PageSize:  size,
	}
	if !actor.IsAdmin() {
		filter.ParticipantID = actor.UserID
	}

	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	views := make([]dto.BookingView, 0, len(details))
	for i := range details {
		views = append(views, dto.NewBookingView(&details[i], actor.UserID))
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update applies a confirm or cancel action.
func (s *BookingService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateBookingRequest) (*dto.BookingView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid booking action")
	}
	detail, err := s.loadForActor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case dto.BookingActionConfirm:
		err = s.confirm(ctx, actor, detail)
	case dto.BookingActionCancel:
		err = s.cancel(ctx, actor, detail, trimmedOrNil(req.Reason))
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

func (s *BookingService) confirm(ctx context.Context, actor *models.JWTClaims, detail *models.BookingDetail) error {
	if actor.UserID != detail.MentorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the mentor can confirm a booking")
	}

	studentAccepted, obogAccepted := flag(detail.StudentTermsAccepted), flag(detail.ObogTermsAccepted)
	if !studentAccepted || !obogAccepted {
		meetingID := ""
		if detail.MeetingID != nil {
			meetingID = *detail.MeetingID
		}
		return termsNotAccepted(meetingID, studentAccepted, obogAccepted)
	}
	if detail.Status != models.BookingStatusPending {
		return appErrors.InvalidState("only pending bookings can be confirmed", string(detail.Status))
	}

	if err := s.repo.Confirm(ctx, detail.ID); err != nil {
		return s.transitionFailed(ctx, err, detail.ID, "booking changed before it could be confirmed")
	}
	s.metrics.MeetingTransition("confirm")

	s.notifier.Notify(ctx, threadNotification(detail.StudentID, models.NotificationBookingConfirmed, detail.ThreadID,
		"Booking confirmed",
		fmt.Sprintf("%s confirmed your meeting at %s.", displayName(detail.Mentor), detail.Slot)))
	return nil
}

func (s *BookingService) cancel(ctx context.Context, actor *models.JWTClaims, detail *models.BookingDetail, reason *string) error {
	if !detail.Status.IsActive() {
		return appErrors.InvalidState("booking is already cancelled", string(detail.Status))
	}
	if detail.StudentPostStatus != nil || detail.ObogPostStatus != nil {
		return appErrors.InvalidState("meeting already took place and cannot be cancelled", string(detail.Status))
	}

	by := actor.UserID
	if err := s.repo.Cancel(ctx, detail.ID, &by, reason); err != nil {
		return s.transitionFailed(ctx, err, detail.ID, "booking changed before it could be cancelled")
	}
	s.metrics.MeetingTransition("cancel")
	s.recordCancellation(ctx, &by, detail, reason)

	body := fmt.Sprintf("The meeting at %s was cancelled.", detail.Slot)
	if reason != nil {
		body = fmt.Sprintf("%s Reason: %s", body, *reason)
	}
	for _, recipient := range []string{detail.StudentID, detail.MentorID} {
		if recipient == actor.UserID {
			continue
		}
		s.notifier.Notify(ctx, threadNotification(recipient, models.NotificationBookingCancelled, detail.ThreadID, "Booking cancelled", body))
	}
	return nil
}

// SweepStale cancels bookings left pending longer than the configured age.
func (s *BookingService) SweepStale(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx, s.logger)
	cutoff := time.Now().UTC().Add(-s.config.StaleAfter)
	stale, err := s.repo.ListStale(ctx, cutoff, staleSweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale bookings: %w", err)
	}

	reason := staleCancellationReason
	cancelled := 0
	for i := range stale {
		booking := stale[i]
		if err := s.repo.Cancel(ctx, booking.ID, nil, &reason); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				continue
			}
			log.Warn("failed to expire booking", zap.String("booking_id", booking.ID), zap.Error(err))
			continue
		}
		cancelled++
		s.recordCancellation(ctx, nil, &models.BookingDetail{Booking: booking}, &reason)
		body := fmt.Sprintf("The booking request for %s expired without confirmation.", booking.Slot)
		for _, recipient := range []string{booking.StudentID, booking.MentorID} {
			s.notifier.Notify(ctx, threadNotification(recipient, models.NotificationBookingCancelled, booking.ThreadID, "Booking expired", body))
		}
	}
	if cancelled > 0 {
		log.Info("expired stale bookings", zap.Int("count", cancelled), zap.Time("cutoff", cutoff))
	}
	return cancelled, nil
}

func (s *BookingService) loadForActor(ctx context.Context, actor *models.JWTClaims, id string) (*models.BookingDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if !actor.IsAdmin() && !detail.IsParticipant(actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this booking")
	}
	return detail, nil
}

// transitionFailed turns a lost compare-and-swap into INVALID_STATE carrying the fresh status.
func (s *BookingService) transitionFailed(ctx context.Context, err error, id, message string) error {
	if !errors.Is(err, repository.ErrStateChanged) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}
	current, loadErr := s.repo.FindDetailByID(ctx, id)
	if loadErr != nil {
		return appErrors.Clone(appErrors.ErrInvalidState, message)
	}
	return appErrors.InvalidState(message, string(current.Status))
}

func (s *BookingService) recordCancellation(ctx context.Context, by *string, detail *models.BookingDetail, reason *string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"status": models.BookingStatusCancelled, "reason": reason})
	id := detail.ID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     by,
		Action:     models.AuditActionBookingCancel,
		Resource:   bookingResource,
		ResourceID: &id,
		OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, detail.Status)),
		NewValues:  payload,
	}); err != nil {
		logger.FromContext(ctx, s.logger).Warn("failed to record booking cancel audit log", zap.String("booking_id", id), zap.Error(err))
	}
}

func termsNotAccepted(meetingID string, studentAccepted, obogAccepted bool) error {
	details := map[string]interface{}{
		"student_terms_accepted": studentAccepted,
		"obog_terms_accepted":    obogAccepted,
	}
	if meetingID != "" {
		details["meeting_id"] = meetingID
		details["redirect"] = fmt.Sprintf("/meetings/%s/terms", meetingID)
	}
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrTermsNotAccepted, "both parties must accept the meeting terms before confirming"), details)
}

func normalizeMeetingURL(raw *string) (*string, error) {
	value := trimmedOrNil(raw)
	if value == nil {
		return nil, nil
	}
	if !meetingURLPattern.MatchString(*value) {
		return nil, appErrors.Clone(appErrors.ErrInvalidURL, "meeting url must start with http:// or https://")
	}
	return value, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func flag(b *bool) bool {
	return b != nil && *b
}
