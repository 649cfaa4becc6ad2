package models

import "time"

// ExportFormat selects the rendered output type for record exports.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// Export job lifecycle states.
const (
	ExportStatusPending = "PENDING"
	ExportStatusRunning = "RUNNING"
	ExportStatusDone    = "DONE"
	ExportStatusFailed  = "FAILED"
)

// ExportJob tracks one asynchronous record export request.
type ExportJob struct {
	ID          string       `db:"id" json:"id"`
	WorkspaceID string       `db:"workspace_id" json:"workspace_id"`
	TemplateID  string       `db:"template_id" json:"template_id"`
	Format      ExportFormat `db:"format" json:"format"`
	Status      string       `db:"status" json:"status"`
	FilePath    *string      `db:"file_path" json:"file_path,omitempty"`
	DownloadURL *string      `db:"download_url" json:"download_url,omitempty"`
	ExpiresAt   *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	Error       *string      `db:"error" json:"error,omitempty"`
	RequestedBy string       `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
