package models

import "time"

// Document is workspace-owned file metadata; the bytes live in blob storage
// under StorageLocator.
type Document struct {
	ID             string    `db:"id" json:"id"`
	WorkspaceID    string    `db:"workspace_id" json:"workspace_id"`
	Name           string    `db:"name" json:"name"`
	StorageLocator string    `db:"storage_locator" json:"storage_locator"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	SizeBytes      int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// LinkedDocumentRule associates a document with every record of a template
// whose value for a property normalizes to ValueNorm. Multiple identical
// rules are permitted and match independently.
type LinkedDocumentRule struct {
	ID          string    `db:"id" json:"id"`
	WorkspaceID string    `db:"workspace_id" json:"workspace_id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	TemplateID  string    `db:"template_id" json:"template_id"`
	PropertyID  string    `db:"property_id" json:"property_id"`
	ValueRaw    string    `db:"value_raw" json:"value_raw"`
	ValueNorm   string    `db:"value_norm" json:"value_norm"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
