package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tracevault/tracevault-api/internal/models"
	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

type documentRepository interface {
	Create(ctx context.Context, document *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, workspaceID string, page, size int) ([]models.Document, int, error)
	Delete(ctx context.Context, id string) error
}

type documentBlobStorage interface {
	SaveStream(locator string, r io.Reader) (string, error)
	Open(locator string) (*os.File, error)
	Delete(locator string) error
}

type documentURLSigner interface {
	Generate(resourceID, locator string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (string, string, time.Time, error)
}

// DocumentUpload carries an incoming file and its metadata.
type DocumentUpload struct {
	Filename string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// SignedDownload is a time-limited download grant for a document.
type SignedDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentServiceConfig bounds uploads.
type DocumentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService manages document metadata and the blobs behind it.
type DocumentService struct {
	docs    documentRepository
	storage documentBlobStorage
	signer  documentURLSigner
	config  DocumentServiceConfig
	logger  *zap.Logger
	timeout time.Duration
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(docs documentRepository, storage documentBlobStorage, signer documentURLSigner, config DocumentServiceConfig, logger *zap.Logger, timeout time.Duration) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{docs: docs, storage: storage, signer: signer, config: config, logger: logger, timeout: timeout}
}

// Upload stores the blob under a workspace-scoped locator and records its
// metadata. A failed metadata write cleans the orphaned blob back up.
func (s *DocumentService) Upload(ctx context.Context, scope models.SessionScope, upload DocumentUpload) (*models.Document, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	name := strings.TrimSpace(upload.Filename)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "filename is required")
	}
	if upload.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is required")
	}
	if s.config.MaxFileSizeBytes > 0 && upload.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	if !s.mimeAllowed(upload.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type is not allowed")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	id := uuid.NewString()
	locator := fmt.Sprintf("%s/%s%s", scope.WorkspaceID, id, filepath.Ext(name))

	if _, err := s.storage.SaveStream(locator, upload.Reader); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	document := &models.Document{
		ID:             id,
		WorkspaceID:    scope.WorkspaceID,
		Name:           name,
		StorageLocator: locator,
		MimeType:       upload.MimeType,
		SizeBytes:      upload.Size,
	}
	if err := s.docs.Create(ctx, document); err != nil {
		if cleanupErr := s.storage.Delete(locator); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned blob", zap.String("locator", locator), zap.Error(cleanupErr))
		}
		return nil, storeErr(err, "failed to save document metadata")
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", document.ID),
		zap.String("workspace_id", scope.WorkspaceID),
		zap.Int64("size_bytes", document.SizeBytes))
	return document, nil
}

// Get loads a document's metadata.
func (s *DocumentService) Get(ctx context.Context, scope models.SessionScope, id string) (*models.Document, error) {
	if !scope.Member() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	return s.loadScoped(ctx, scope, id)
}

// List returns workspace documents, newest first.
func (s *DocumentService) List(ctx context.Context, scope models.SessionScope, page, size int) ([]models.Document, int, error) {
	if !scope.Member() {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "not a member of this workspace")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	documents, total, err := s.docs.List(ctx, scope.WorkspaceID, page, size)
	if err != nil {
		return nil, 0, storeErr(err, "failed to list documents")
	}
	return documents, total, nil
}

// SignedURL issues a time-limited download token for a document.
func (s *DocumentService) SignedURL(ctx context.Context, scope models.SessionScope, id string) (*SignedDownload, error) {
	document, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(document.ID, document.StorageLocator)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &SignedDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// Download validates a signed token and returns the document with an open
// reader on its blob. The caller owns closing the reader.
func (s *DocumentService) Download(ctx context.Context, token string) (*models.Document, io.ReadCloser, error) {
	documentID, locator, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	document, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, nil, storeErr(err, "failed to load document")
	}
	if document.StorageLocator != locator {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	file, err := s.storage.Open(locator)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document blob")
	}
	return document, file, nil
}

// Delete removes a document, its link rules and finally the stored bytes.
// Admin only.
func (s *DocumentService) Delete(ctx context.Context, scope models.SessionScope, id string) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only workspace admins may delete documents")
	}
	ctx, cancel := boundedCtx(ctx, s.timeout)
	defer cancel()

	document, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, document.ID); err != nil {
		return storeErr(err, "failed to delete document")
	}
	if err := s.storage.Delete(document.StorageLocator); err != nil {
		s.logger.Warn("failed to delete document blob",
			zap.String("locator", document.StorageLocator), zap.Error(err))
	}
	s.logger.Info("document deleted", zap.String("document_id", document.ID))
	return nil
}

func (s *DocumentService) loadScoped(ctx context.Context, scope models.SessionScope, id string) (*models.Document, error) {
	document, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, storeErr(err, "failed to load document")
	}
	if document.WorkspaceID != scope.WorkspaceID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return document, nil
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
