package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/jobs"
)

const (
	jobTypeNotification = "notification"
	jobTypeChargeEvent  = "charge_event"
)

// notifier is the fire-and-forget side channel used by lifecycle services.
type notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
}

type chargeEventStore interface {
	CreateChargeEvent(ctx context.Context, ev *models.ChargeEvent) error
}

// NotificationService persists notifications and charge events off the
// request path. Enqueue failures are logged and counted, never returned.
type NotificationService struct {
	store   notificationStore
	charges chargeEventStore
	metrics *MetricsService
	logger  *zap.Logger
	queue   *jobs.Queue
}

// NewNotificationService wires the dispatcher queue. Call Start before serving traffic.
func NewNotificationService(store notificationStore, charges chargeEventStore, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{store: store, charges: charges, metrics: metrics, logger: logger}
	cfg.Logger = logger
	cfg.OnDrop = func(job jobs.Job, err error) {
		s.metrics.Notification(NotificationOutcomeFailed)
	}
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the dispatcher workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains nothing and waits for in-flight deliveries.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues a notification for asynchronous delivery.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if n.UserID == "" {
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{Type: jobTypeNotification, Payload: n}); err != nil {
		s.metrics.Notification(NotificationOutcomeDropped)
		s.logger.Warn("notification dropped",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return
	}
	s.metrics.Notification(NotificationOutcomeQueued)
}

// RecordCharge queues a charge event for the payment collaborator.
func (s *NotificationService) RecordCharge(ctx context.Context, ev models.ChargeEvent) {
	if s.charges == nil {
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{Type: jobTypeChargeEvent, Payload: ev}); err != nil {
		s.logger.Warn("charge event dropped",
			zap.String("thread_id", ev.ThreadID),
			zap.String("message_id", ev.MessageID),
			zap.Error(err))
	}
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	page, size := normalizePaging(query.Page, query.Limit)
	items, total, err := s.store.ListByUser(ctx, userID, query.UnreadOnly, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	found, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	switch payload := job.Payload.(type) {
	case models.Notification:
		if err := s.store.Create(ctx, &payload); err != nil {
			return err
		}
		s.metrics.Notification(NotificationOutcomeDelivered)
		return nil
	case models.ChargeEvent:
		return s.charges.CreateChargeEvent(ctx, &payload)
	default:
		s.logger.Error("unknown notification job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func threadNotification(userID string, kind models.NotificationType, threadID, title, body string) models.Notification {
	return models.Notification{
		UserID: userID,
		Type:   kind,
		Title:  title,
		Body:   body,
		Link:   models.ThreadLink(threadID),
	}
}

func displayName(p models.PublicProfile) string {
	if p.Nickname != nil && *p.Nickname != "" {
		return *p.Nickname
	}
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("user %s", p.ID)
}
