package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
)

type reportSourceStub struct {
	filter models.MeetingReportFilter
	rows   []models.MeetingReport
}

func (s *reportSourceStub) ListReports(ctx context.Context, filter models.MeetingReportFilter) ([]models.MeetingReport, error) {
	s.filter = filter
	return s.rows, nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func postStatusPtr(s models.PostStatus) *models.PostStatus {
	return &s
}

func sampleReports() []models.MeetingReport {
	slot := "2024-03-01 14:00"
	return []models.MeetingReport{{
		MeetingID:         "m-1",
		Slot:              &slot,
		StudentID:         "s1",
		StudentName:       "Aiko",
		ObogID:            "m1",
		ObogName:          "Kenji",
		Status:            models.MeetingStatusCompleted,
		StudentPostStatus: postStatusPtr(models.PostStatusCompleted),
		ObogPostStatus:    postStatusPtr(models.PostStatusNoShow),
		StudentStrikes:    1,
		UpdatedAt:         time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
	}}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestExportServiceMeetingReportsCSV(t *testing.T) {
	source := &reportSourceStub{rows: sampleReports()}
	audit := &auditStub{}
	svc := NewExportService(source, audit, nil, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }

	file, err := svc.ExportMeetingReports(context.Background(), adminClaims(), dto.MeetingExportQuery{DisputedOnly: true, Since: "2024-03-01"})
	require.NoError(t, err)

	assert.Equal(t, "meeting_reports_20240305_100000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Meeting,Slot,Student,Student report,Strikes,Mentor,Mentor report,Status,Disputed,Updated", lines[0])
	assert.Equal(t, "m-1,2024-03-01 14:00,Aiko,completed,1,Kenji,no_show,completed,true,2024-03-02T09:00:00Z", lines[1])

	assert.True(t, source.filter.OnlyDisputed)
	require.NotNil(t, source.filter.Since)
	assert.Equal(t, "2024-03-01", source.filter.Since.Format("2006-01-02"))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionExport, audit.logs[0].Action)
}

func TestExportServiceMeetingReportsPDF(t *testing.T) {
	svc := NewExportService(&reportSourceStub{rows: sampleReports()}, nil, nil, zap.NewNop(), nil, nil)

	file, err := svc.ExportMeetingReports(context.Background(), adminClaims(), dto.MeetingExportQuery{Format: dto.ExportFormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportServiceRejectsNonAdmin(t *testing.T) {
	svc := NewExportService(&reportSourceStub{}, nil, nil, zap.NewNop(), nil, nil)

	_, err := svc.ExportMeetingReports(context.Background(), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, dto.MeetingExportQuery{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&reportSourceStub{}, nil, nil, zap.NewNop(), nil, nil)

	_, err := svc.ExportMeetingReports(context.Background(), adminClaims(), dto.MeetingExportQuery{Format: "xlsx"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	fields, ok := appErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "format")
}
