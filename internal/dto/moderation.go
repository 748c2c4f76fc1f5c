package dto

// ExportFormat selects the moderation export renderer.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// MeetingExportQuery carries GET /admin/meetings/export parameters.
type MeetingExportQuery struct {
	Format       ExportFormat `form:"format" validate:"omitempty,oneof=csv pdf"`
	DisputedOnly bool         `form:"disputed"`
	Since        string       `form:"since" validate:"omitempty,datetime=2006-01-02"`
}

// ExportFile is a rendered export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
