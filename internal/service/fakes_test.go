package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/repository"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

// memoryStore mimics the relational store closely enough for the lifecycle
// services: guarded updates fail with ErrStateChanged and the active-slot
// uniqueness is enforced on insert, like the partial unique index.
type memoryStore struct {
	mu           sync.Mutex
	seq          int
	users        map[string]*models.User
	availability map[string]*models.Availability
	threads      map[string]*models.Thread
	messages     []models.Message
	bookings     map[string]*models.Booking
	meetings     map[string]*models.Meeting
	audits       []*models.AuditLog
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:        map[string]*models.User{},
		availability: map[string]*models.Availability{},
		threads:      map[string]*models.Thread{},
		bookings:     map[string]*models.Booking{},
		meetings:     map[string]*models.Meeting{},
	}
}

func (s *memoryStore) addUser(id string, role models.UserRole, name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: id, Name: name, Email: id + "@example.com", Role: role, Active: true}
	s.users[id] = u
	return u
}

func (s *memoryStore) setAvailability(mentorID, csv string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[mentorID] = &models.Availability{MentorID: mentorID, TimesCSV: csv, UpdatedAt: time.Now().UTC()}
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memoryStore) threadLocked(a, b string) *models.Thread {
	low, high := models.OrderedPair(a, b)
	for _, t := range s.threads {
		if t.ParticipantLow == low && t.ParticipantHigh == high {
			return t
		}
	}
	now := time.Now().UTC()
	t := &models.Thread{ID: s.nextID("thread"), ParticipantLow: low, ParticipantHigh: high, CreatedAt: now, UpdatedAt: now}
	s.threads[t.ID] = t
	return t
}

func (s *memoryStore) meetingForBookingLocked(bookingID string) *models.Meeting {
	for _, m := range s.meetings {
		if m.BookingID != nil && *m.BookingID == bookingID {
			return m
		}
	}
	return nil
}

func (s *memoryStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, log)
	return nil
}

type memoryUsers struct{ *memoryStore }

func (u memoryUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

type memoryAvailability struct{ *memoryStore }

func (a memoryAvailability) Get(ctx context.Context, mentorID string) (*models.Availability, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	av, ok := a.availability[mentorID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *av
	return &cp, nil
}

func (a memoryAvailability) Upsert(ctx context.Context, av *models.Availability) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	av.UpdatedAt = time.Now().UTC()
	cp := *av
	a.availability[av.MentorID] = &cp
	return nil
}

type memoryThreads struct{ *memoryStore }

func (t memoryThreads) GetOrCreate(ctx context.Context, a, b string) (*models.Thread, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *t.threadLocked(a, b)
	return &cp, nil
}

func (t memoryThreads) FindByID(ctx context.Context, id string) (*models.Thread, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	thread, ok := t.threads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *thread
	return &cp, nil
}

func (t memoryThreads) ListForUser(ctx context.Context, userID string) ([]models.ThreadSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.ThreadSummary
	for _, thread := range t.threads {
		if !thread.Has(userID) {
			continue
		}
		out = append(out, models.ThreadSummary{Thread: *thread, Counterpart: t.users[thread.Other(userID)].Public()})
	}
	return out, nil
}

func (t memoryThreads) CreateMessage(ctx context.Context, msg *models.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg.ID = t.nextID("msg")
	msg.CreatedAt = time.Now().UTC()
	t.messages = append(t.messages, *msg)
	return nil
}

func (t memoryThreads) ListMessages(ctx context.Context, threadID string, page, pageSize int) ([]models.Message, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.Message
	for _, m := range t.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

type memoryBookings struct{ *memoryStore }

func (b memoryBookings) HasActive(ctx context.Context, mentorID, slot string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeLocked(mentorID, slot), nil
}

func (b memoryBookings) activeLocked(mentorID, slot string) bool {
	for _, existing := range b.bookings {
		if existing.MentorID == mentorID && existing.Slot == slot && existing.Status.IsActive() {
			return true
		}
	}
	return false
}

func (b memoryBookings) Create(ctx context.Context, booking *models.Booking) (*models.Meeting, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.activeLocked(booking.MentorID, booking.Slot) {
		return nil, repository.ErrActiveSlotTaken
	}
	now := time.Now().UTC()
	thread := b.threadLocked(booking.StudentID, booking.MentorID)
	booking.ID = b.nextID("booking")
	booking.ThreadID = thread.ID
	booking.Status = models.BookingStatusPending
	booking.CreatedAt, booking.UpdatedAt = now, now
	stored := *booking
	b.bookings[booking.ID] = &stored

	bookingID := booking.ID
	meeting := &models.Meeting{
		ID:        b.nextID("meeting"),
		BookingID: &bookingID,
		ThreadID:  thread.ID,
		StudentID: booking.StudentID,
		ObogID:    booking.MentorID,
		Status:    models.MeetingStatusUnconfirmed,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.meetings[meeting.ID] = meeting
	cp := *meeting
	return &cp, nil
}

func (b memoryBookings) FindDetailByID(ctx context.Context, id string) (*models.BookingDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	booking, ok := b.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return b.detailLocked(booking), nil
}

func (b memoryBookings) detailLocked(booking *models.Booking) *models.BookingDetail {
	d := &models.BookingDetail{
		Booking: *booking,
		Student: b.users[booking.StudentID].Public(),
		Mentor:  b.users[booking.MentorID].Public(),
	}
	if m := b.meetingForBookingLocked(booking.ID); m != nil {
		id, status, version := m.ID, m.Status, m.Version
		st, ot, aq := m.Student.TermsAccepted, m.Obog.TermsAccepted, m.Student.AdditionalQuestionAnswered
		d.MeetingID, d.MeetingStatus, d.MeetingVersion = &id, &status, &version
		d.StudentTermsAccepted, d.ObogTermsAccepted, d.AdditionalQuestionAnswered = &st, &ot, &aq
		d.StudentPostStatus, d.ObogPostStatus = m.Student.PostStatus, m.Obog.PostStatus
	}
	return d
}

func (b memoryBookings) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.BookingDetail
	for _, booking := range b.bookings {
		switch {
		case filter.ParticipantID != "" && !booking.IsParticipant(filter.ParticipantID):
			continue
		case filter.StudentID != "" && booking.StudentID != filter.StudentID:
			continue
		case filter.MentorID != "" && booking.MentorID != filter.MentorID:
			continue
		case filter.Status != "" && booking.Status != filter.Status:
			continue
		}
		out = append(out, *b.detailLocked(booking))
	}
	return out, len(out), nil
}

func (b memoryBookings) Confirm(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	booking, ok := b.bookings[id]
	if !ok || booking.Status != models.BookingStatusPending {
		return repository.ErrStateChanged
	}
	m := b.meetingForBookingLocked(id)
	if m == nil || m.Status != models.MeetingStatusUnconfirmed || !m.BothTermsAccepted() {
		return repository.ErrStateChanged
	}
	m.Status = models.MeetingStatusConfirmed
	m.Version++
	booking.Status = models.BookingStatusConfirmed
	return nil
}

func (b memoryBookings) Cancel(ctx context.Context, id string, by *string, reason *string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	booking, ok := b.bookings[id]
	if !ok || !booking.Status.IsActive() {
		return repository.ErrStateChanged
	}
	m := b.meetingForBookingLocked(id)
	if m != nil && (m.AnyReported() || (m.Status != models.MeetingStatusUnconfirmed && m.Status != models.MeetingStatusConfirmed)) {
		return repository.ErrStateChanged
	}
	b.cancelLocked(booking, m, by, reason)
	return nil
}

func (s *memoryStore) cancelLocked(booking *models.Booking, m *models.Meeting, by, reason *string) {
	now := time.Now().UTC()
	if booking != nil {
		booking.Status = models.BookingStatusCancelled
		booking.CancelledAt, booking.CancelledBy, booking.CancellationReason = &now, by, reason
	}
	if m != nil {
		m.Status = models.MeetingStatusCancelled
		m.Version++
		m.CancelledAt, m.CancelledBy, m.CancellationReason = &now, by, reason
	}
}

func (b memoryBookings) ListStale(ctx context.Context, before time.Time, limit int) ([]models.Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Booking
	for _, booking := range b.bookings {
		if booking.Status == models.BookingStatusPending && booking.CreatedAt.Before(before) {
			out = append(out, *booking)
		}
	}
	return out, nil
}

type memoryMeetings struct{ *memoryStore }

func (m memoryMeetings) Create(ctx context.Context, meeting *models.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.meetings {
		open := existing.Status == models.MeetingStatusUnconfirmed || existing.Status == models.MeetingStatusConfirmed
		if existing.ThreadID == meeting.ThreadID && open {
			return repository.ErrOpenMeetingExists
		}
	}
	now := time.Now().UTC()
	meeting.ID = m.nextID("meeting")
	meeting.Status = models.MeetingStatusUnconfirmed
	meeting.Version = 1
	meeting.CreatedAt, meeting.UpdatedAt = now, now
	cp := *meeting
	m.meetings[meeting.ID] = &cp
	return nil
}

func (m memoryMeetings) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *meeting
	return &cp, nil
}

func (m memoryMeetings) FindLatestByThread(ctx context.Context, threadID string) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Meeting
	for _, meeting := range m.meetings {
		if meeting.ThreadID == threadID && (latest == nil || meeting.ID > latest.ID) {
			latest = meeting
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	cp := *latest
	return &cp, nil
}

func (m memoryMeetings) update(id string, guard func(*models.Meeting) bool, apply func(*models.Meeting)) (*models.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meeting, ok := m.meetings[id]
	if !ok || !guard(meeting) {
		return nil, repository.ErrStateChanged
	}
	apply(meeting)
	meeting.UpdatedAt = time.Now().UTC()
	cp := *meeting
	return &cp, nil
}

func (m memoryMeetings) AcceptTerms(ctx context.Context, id string, party models.Party) (*models.Meeting, error) {
	return m.update(id,
		func(mt *models.Meeting) bool { return mt.Status != models.MeetingStatusCancelled },
		func(mt *models.Meeting) { mt.Side(party).TermsAccepted = true })
}

func (m memoryMeetings) SetPostStatus(ctx context.Context, id string, party models.Party, status models.PostStatus) (*models.Meeting, error) {
	return m.update(id,
		func(mt *models.Meeting) bool {
			return mt.Status == models.MeetingStatusConfirmed || mt.Status == models.MeetingStatusCompleted
		},
		func(mt *models.Meeting) {
			reported := status
			mt.Side(party).PostStatus = &reported
			if mt.Status == models.MeetingStatusConfirmed && status == models.PostStatusCompleted {
				mt.Status = models.MeetingStatusCompleted
				mt.Version++
			}
		})
}

func (m memoryMeetings) MarkAdditionalQuestionAnswered(ctx context.Context, id string) (*models.Meeting, error) {
	return m.update(id,
		func(mt *models.Meeting) bool {
			return mt.Student.PostStatus != nil && *mt.Student.PostStatus == models.PostStatusCompleted
		},
		func(mt *models.Meeting) { mt.Student.AdditionalQuestionAnswered = true })
}

func (m memoryMeetings) Confirm(ctx context.Context, id string) error {
	_, err := m.update(id,
		func(mt *models.Meeting) bool { return mt.Status == models.MeetingStatusUnconfirmed && mt.BothTermsAccepted() },
		func(mt *models.Meeting) {
			mt.Status = models.MeetingStatusConfirmed
			mt.Version++
			if mt.BookingID != nil {
				if b, ok := m.bookings[*mt.BookingID]; ok && b.Status == models.BookingStatusPending {
					b.Status = models.BookingStatusConfirmed
				}
			}
		})
	return err
}

func (m memoryMeetings) Cancel(ctx context.Context, id string, by *string, reason *string) error {
	_, err := m.update(id,
		func(mt *models.Meeting) bool {
			open := mt.Status == models.MeetingStatusUnconfirmed || mt.Status == models.MeetingStatusConfirmed
			return open && !mt.AnyReported()
		},
		func(mt *models.Meeting) {
			var booking *models.Booking
			if mt.BookingID != nil {
				if b, ok := m.bookings[*mt.BookingID]; ok && b.Status.IsActive() {
					booking = b
				}
			}
			m.cancelLocked(booking, mt, by, reason)
		})
	return err
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []models.Notification
	charges       []models.ChargeEvent
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) RecordCharge(ctx context.Context, ev models.ChargeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges = append(r.charges, ev)
}

func (r *recordingNotifier) sentTo(userID string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
	r.charges = nil
}

// lifecycleFixture wires the booking and meeting services over one store:
// students S1/S2, mentors M1 (with availability) and M2 (without), company C1, admin A1.
type lifecycleFixture struct {
	store    *memoryStore
	notes    *recordingNotifier
	bookings *BookingService
	meetings *MeetingService
}

const (
	slotA = "2024-03-01 14:00"
	slotB = "2024-03-01 15:00"
)

func newLifecycleFixture() *lifecycleFixture {
	store := newMemoryStore()
	store.addUser("S1", models.RoleStudent, "Aiko")
	store.addUser("S2", models.RoleStudent, "Bao")
	store.addUser("M1", models.RoleOBOG, "Kenji")
	store.addUser("M2", models.RoleOBOG, "Mei")
	store.addUser("C1", models.RoleCompany, "Acme")
	store.addUser("A1", models.RoleAdmin, "Admin")
	store.setAvailability("M1", slotA+", "+slotB)

	notes := &recordingNotifier{}
	users := memoryUsers{store}
	return &lifecycleFixture{
		store: store,
		notes: notes,
		bookings: NewBookingService(memoryBookings{store}, memoryAvailability{store}, users, notes, store,
			nil, nil, zap.NewNop(), BookingConfig{}),
		meetings: NewMeetingService(memoryMeetings{store}, memoryThreads{store}, users, notes, nil, zap.NewNop()),
	}
}

func actorFor(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role, Name: id}
}

var (
	studentS1 = actorFor("S1", models.RoleStudent)
	studentS2 = actorFor("S2", models.RoleStudent)
	mentorM1  = actorFor("M1", models.RoleOBOG)
	adminA1   = actorFor("A1", models.RoleAdmin)
)

func requireAppError(t *testing.T, err error, expected *appErrors.Error) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, expected.Code, appErr.Code, appErr.Message)
	require.Equal(t, expected.Status, appErr.Status)
	return appErr
}
