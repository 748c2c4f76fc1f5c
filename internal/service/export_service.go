package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	appErrors "github.com/Noah-Truong/Senpai-Career-sub002/pkg/errors"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/export"
)

type meetingReportSource interface {
	ListReports(ctx context.Context, filter models.MeetingReportFilter) ([]models.MeetingReport, error)
}

// renderer turns a dataset into a downloadable document.
type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

var meetingReportColumns = []export.Column{
	{Key: "meeting_id", Title: "Meeting", Width: 2},
	{Key: "slot", Title: "Slot", Width: 1.5},
	{Key: "student", Title: "Student", Width: 1.5},
	{Key: "student_report", Title: "Student report"},
	{Key: "student_strikes", Title: "Strikes", Width: 0.6},
	{Key: "obog", Title: "Mentor", Width: 1.5},
	{Key: "obog_report", Title: "Mentor report"},
	{Key: "status", Title: "Status"},
	{Key: "disputed", Title: "Disputed", Width: 0.7},
	{Key: "updated_at", Title: "Updated", Width: 1.5},
}

// ExportService renders moderation exports of meetings with their post-meeting reports.
type ExportService struct {
	reports   meetingReportSource
	audit     auditRecorder
	renderers map[dto.ExportFormat]renderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the CSV and PDF exporters.
func NewExportService(reports meetingReportSource, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, csv, pdf renderer) *ExportService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports:   reports,
		audit:     audit,
		renderers: map[dto.ExportFormat]renderer{dto.ExportFormatCSV: csv, dto.ExportFormatPDF: pdf},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// ExportMeetingReports renders every reported meeting, optionally only the
// disputed ones (at least one no-show report), for admin review.
func (s *ExportService) ExportMeetingReports(ctx context.Context, actor *models.JWTClaims, query dto.MeetingExportQuery) (*dto.ExportFile, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can export meeting reports")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, validationError(err, "invalid export query")
	}
	format := query.Format
	if format == "" {
		format = dto.ExportFormatCSV
	}
	r := s.renderers[format]

	filter := models.MeetingReportFilter{OnlyDisputed: query.DisputedOnly}
	if query.Since != "" {
		since, err := time.Parse("2006-01-02", query.Since)
		if err != nil {
			return nil, appErrors.Validation("invalid export query", map[string]string{"since": "must match 2006-01-02"})
		}
		filter.Since = &since
	}

	rows, err := s.reports.ListReports(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting reports")
	}

	generatedAt := s.now().UTC()
	body, err := r.Render(buildMeetingReportDataset(rows, query.DisputedOnly))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.recordExport(ctx, actor, format, len(rows))

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("meeting_reports_%s.%s", generatedAt.Format("20060102_150405"), r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

func buildMeetingReportDataset(rows []models.MeetingReport, disputedOnly bool) export.Dataset {
	title := "Meeting reports"
	if disputedOnly {
		title = "Disputed meeting reports"
	}
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, map[string]string{
			"meeting_id":      row.MeetingID,
			"slot":            deref(row.Slot),
			"student":         row.StudentName,
			"student_report":  postStatusLabel(row.StudentPostStatus),
			"student_strikes": strconv.Itoa(row.StudentStrikes),
			"obog":            row.ObogName,
			"obog_report":     postStatusLabel(row.ObogPostStatus),
			"status":          string(row.Status),
			"disputed":        strconv.FormatBool(isDisputed(row)),
			"updated_at":      row.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Title: title, Columns: meetingReportColumns, Rows: data}
}

func isDisputed(row models.MeetingReport) bool {
	return postStatusLabel(row.StudentPostStatus) == string(models.PostStatusNoShow) ||
		postStatusLabel(row.ObogPostStatus) == string(models.PostStatusNoShow)
}

func postStatusLabel(s *models.PostStatus) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(string(*s))
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func (s *ExportService) recordExport(ctx context.Context, actor *models.JWTClaims, format dto.ExportFormat, count int) {
	if s.audit == nil {
		return
	}
	values, _ := json.Marshal(map[string]interface{}{"format": format, "rows": count})
	actorID := actor.UserID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    &actorID,
		Action:    models.AuditActionExport,
		Resource:  "meeting_reports",
		NewValues: values,
	}); err != nil {
		s.logger.Warn("failed to record export audit log", zap.Error(err))
	}
}
