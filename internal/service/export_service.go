package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
	"github.com/tracevault/tracevault-api/pkg/export"
	"github.com/tracevault/tracevault-api/pkg/jobs"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id, status string, jobErr *string) error
	UpdateResult(ctx context.Context, id, filePath, downloadURL string, expiresAt time.Time) error
}

type exportRecordReader interface {
	ListAllByTemplate(ctx context.Context, templateID string) ([]models.Record, error)
}

type exportTemplateReader interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
	ListProperties(ctx context.Context, templateID string, activeOnly bool) ([]models.PropertyDefinition, error)
}

type exportValueReader interface {
	GetValues(ctx context.Context, recordID string) ([]models.PropertyValue, error)
}

type exportBlobStorage interface {
	Save(locator string, data []byte) (string, error)
	Open(locator string) (*os.File, error)
}

type exportURLSigner interface {
	Generate(resourceID, locator string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (string, string, time.Time, error)
}

// ExportRequest asks for all records of a template rendered to a file.
type ExportRequest struct {
	TemplateID string              `json:"template_id" validate:"required"`
	Format     models.ExportFormat `json:"format" validate:"required"`
}

// ExportService renders record exports asynchronously through the job
// queue. Requests return a pending job immediately; workers fill in the
// file and a signed download URL.
type ExportService struct {
	exports   exportJobRepository
	records   exportRecordReader
	templates exportTemplateReader
	values    exportValueReader
	storage   exportBlobStorage
	signer    exportURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	queue     *jobs.Queue
	resultTTL time.Duration
	logger    *zap.Logger
	timeout   time.Duration
}

// ExportServiceConfig tunes export behaviour.
type ExportServiceConfig struct {
	ResultTTL time.Duration
}

// NewExportService constructs an ExportService. Attach the queue with
// SetQueue before serving requests.
func NewExportService(exports exportJobRepository, records exportRecordReader, templates exportTemplateReader, values exportValueReader, storage exportBlobStorage, signer exportURLSigner, cfg ExportServiceConfig, logger *zap.Logger, timeout time.Duration) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	resultTTL := cfg.ResultTTL
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	return &ExportService{
		exports:   exports,
		records:   records,
		templates: templates,
		values:    values,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		resultTTL: resultTTL,
		logger:    logger,
		timeout:   timeout,
	}
}

// SetQueue wires the worker queue. Split from the constructor because the
// queue's handler is this service's Process method.
func (s *ExportService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Request validates the export and enqueues it.
func (s *ExportService) Request(ctx context.Context, scope models.SessionScope, req ExportRequest) (*models.ExportJob, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue is not running")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	template, err := s.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, storeErr(err, "failed to load template")
	}
	if template.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		WorkspaceID: scope.WorkspaceID,
		TemplateID:  template.ID,
		Format:      req.Format,
		Status:      models.ExportStatusPending,
		RequestedBy: scope.UserID,
	}
	if err := s.exports.Create(ctx, job); err != nil {
		return nil, storeErr(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "record_export"}); err != nil {
		reason := err.Error()
		if updateErr := s.exports.UpdateStatus(ctx, job.ID, models.ExportStatusFailed, &reason); updateErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	s.logger.Info("export requested",
		zap.String("job_id", job.ID),
		zap.String("template_id", template.ID),
		zap.String("format", string(req.Format)))
	return job, nil
}

// Status returns an export job for polling.
func (s *ExportService) Status(ctx context.Context, scope models.SessionScope, id string) (*models.ExportJob, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	job, err := s.exports.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, storeErr(err, "failed to load export job")
	}
	if job.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// Download validates a signed export token and opens the rendered file.
func (s *ExportService) Download(ctx context.Context, token string) (*models.ExportJob, io.ReadCloser, error) {
	jobID, locator, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	job, err := s.exports.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, storeErr(err, "failed to load export job")
	}
	if job.FilePath == nil || *job.FilePath != locator {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	file, err := s.storage.Open(locator)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return job, file, nil
}

// Process is the queue handler: it renders the export and records the
// result. Returned errors trigger the queue's retry policy.
func (s *ExportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.exports.FindByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}
	if err := s.exports.UpdateStatus(ctx, job.ID, models.ExportStatusRunning, nil); err != nil {
		return fmt.Errorf("mark export running: %w", err)
	}

	if err := s.render(ctx, job); err != nil {
		reason := err.Error()
		if updateErr := s.exports.UpdateStatus(ctx, job.ID, models.ExportStatusFailed, &reason); updateErr != nil {
			s.logger.Warn("failed to mark export failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) error {
	template, err := s.templates.FindByID(ctx, job.TemplateID)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}
	properties, err := s.templates.ListProperties(ctx, job.TemplateID, false)
	if err != nil {
		return fmt.Errorf("load properties: %w", err)
	}
	records, err := s.records.ListAllByTemplate(ctx, job.TemplateID)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	dataset, err := s.buildDataset(ctx, properties, records)
	if err != nil {
		return err
	}

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, template.Name)
	default:
		err = fmt.Errorf("unsupported format %q", job.Format)
	}
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	locator := fmt.Sprintf("%s/%s.%s", job.WorkspaceID, job.ID, job.Format)
	if _, err := s.storage.Save(locator, payload); err != nil {
		return fmt.Errorf("store export file: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, locator)
	if err != nil {
		return fmt.Errorf("sign download url: %w", err)
	}
	downloadURL := fmt.Sprintf("/api/v1/exports/download/%s", token)
	expiresAt := time.Now().UTC().Add(s.resultTTL)

	if err := s.exports.UpdateResult(ctx, job.ID, locator, downloadURL, expiresAt); err != nil {
		return fmt.Errorf("record export result: %w", err)
	}

	s.logger.Info("export completed",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Format)),
		zap.Int("records", len(records)))
	return nil
}

// buildDataset flattens records into rows keyed by property name. Headers
// include archived properties so historical values still get a column.
func (s *ExportService) buildDataset(ctx context.Context, properties []models.PropertyDefinition, records []models.Record) (export.Dataset, error) {
	headers := make([]string, 0, len(properties)+2)
	headers = append(headers, "record_id", "created_at")
	nameByProperty := make(map[string]string, len(properties))
	for _, p := range properties {
		headers = append(headers, p.Name)
		nameByProperty[p.ID] = p.Name
	}

	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		values, err := s.values.GetValues(ctx, record.ID)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("load values for record %s: %w", record.ID, err)
		}
		row := map[string]string{
			"record_id":  record.ID,
			"created_at": record.CreatedAt.UTC().Format(time.RFC3339),
		}
		for _, value := range values {
			name, ok := nameByProperty[value.PropertyID]
			if !ok || value.Value == nil {
				continue
			}
			row[name] = *value.Value
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}
