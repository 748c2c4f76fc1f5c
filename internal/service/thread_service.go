package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

const messagePreviewLength = 80

type threadStore interface {
	GetOrCreate(ctx context.Context, a, b string) (*models.Thread, error)
	FindByID(ctx context.Context, id string) (*models.Thread, error)
	ListForUser(ctx context.Context, userID string) ([]models.ThreadSummary, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, threadID string, page, pageSize int) ([]models.Message, int, error)
}

// messageDispatcher delivers the side effects of a sent message.
type messageDispatcher interface {
	notifier
	RecordCharge(ctx context.Context, ev models.ChargeEvent)
}

// ThreadService manages two-party message threads.
type ThreadService struct {
	repo       threadStore
	users      userReader
	dispatcher messageDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewThreadService constructs a ThreadService.
func NewThreadService(repo threadStore, users userReader, dispatcher messageDispatcher, validate *validator.Validate, logger *zap.Logger) *ThreadService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThreadService{repo: repo, users: users, dispatcher: dispatcher, validator: validate, logger: logger}
}

// GetOrCreate returns the caller's thread with another user, opening it if needed.
func (s *ThreadService) GetOrCreate(ctx context.Context, actor *models.JWTClaims, req dto.CreateThreadRequest) (*dto.ThreadView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid thread payload")
	}
	other, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	// Compare stored ids: the requested id may be any textual form of the caller's own.
	if other.ID == actor.UserID {
		return nil, appErrors.Validation("invalid thread payload", map[string]string{"userId": "must be another user"})
	}

	thread, err := s.repo.GetOrCreate(ctx, actor.UserID, other.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open thread")
	}
	view := dto.NewThreadView(thread, other.Public(), nil)
	return &view, nil
}

// List returns the caller's threads, most recently active first.
func (s *ThreadService) List(ctx context.Context, actor *models.JWTClaims) ([]dto.ThreadView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	summaries, err := s.repo.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list threads")
	}
	views := make([]dto.ThreadView, 0, len(summaries))
	for i := range summaries {
		views = append(views, dto.NewThreadView(&summaries[i].Thread, summaries[i].Counterpart, summaries[i].LastMessageAt))
	}
	return views, nil
}

// Messages returns a page of a thread's messages in chronological order.
func (s *ThreadService) Messages(ctx context.Context, actor *models.JWTClaims, threadID string, query dto.PageQuery) ([]models.Message, *models.Pagination, error) {
	if _, err := s.loadForActor(ctx, actor, threadID, true); err != nil {
		return nil, nil, err
	}
	page, size := normalizePaging(query.Page, query.Limit)
	messages, total, err := s.repo.ListMessages(ctx, threadID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Send appends a message from the caller and notifies the other participant.
// Messages sent by company accounts also produce a charge event.
func (s *ThreadService) Send(ctx context.Context, actor *models.JWTClaims, threadID string, req dto.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid message payload")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErrors.Validation("invalid message payload", map[string]string{"content": "is required"})
	}
	thread, err := s.loadForActor(ctx, actor, threadID, false)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ThreadID: thread.ID, SenderID: actor.UserID, Content: content}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	recipient := thread.Other(actor.UserID)
	s.dispatcher.Notify(ctx, threadNotification(recipient, models.NotificationNewMessage, thread.ID,
		fmt.Sprintf("New message from %s", actorName(actor)), preview(content)))
	if actor.Role == models.RoleCompany {
		s.dispatcher.RecordCharge(ctx, models.ChargeEvent{
			Kind:        models.ChargeEventMessageSent,
			ThreadID:    thread.ID,
			MessageID:   msg.ID,
			PayerID:     actor.UserID,
			RecipientID: recipient,
		})
	}
	return msg, nil
}

func (s *ThreadService) loadForActor(ctx context.Context, actor *models.JWTClaims, threadID string, adminReadable bool) (*models.Thread, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	thread, err := s.repo.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thread not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load thread")
	}
	if !thread.Has(actor.UserID) && !(adminReadable && actor.IsAdmin()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this thread")
	}
	return thread, nil
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= messagePreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:messagePreviewLength]) + "..."
}
