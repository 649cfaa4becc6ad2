package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RecordKind distinguishes assets from log entries in the records table.
type RecordKind string

const (
	RecordKindAsset RecordKind = "asset"
	RecordKindLog   RecordKind = "log"
)

// SnapshotField is one field definition frozen into a log entry at save
// time. Once written it is never regenerated from the live property table.
type SnapshotField struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         PropertyType `json:"type"`
	DisplayOrder int          `json:"display_order"`
}

// FieldSnapshot is the ordered field list persisted as JSONB on a log entry.
type FieldSnapshot []SnapshotField

// Value implements driver.Valuer for JSONB persistence.
func (f FieldSnapshot) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (f *FieldSnapshot) Scan(src interface{}) error {
	if src == nil {
		*f = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan field snapshot: unexpected type %T", src)
	}
	return json.Unmarshal(raw, f)
}

// ValueMap holds a log entry's values keyed by snapshot field name.
type ValueMap map[string]string

// Value implements driver.Valuer for JSONB persistence.
func (m ValueMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (m *ValueMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan value map: unexpected type %T", src)
	}
	return json.Unmarshal(raw, m)
}

// Record is an asset or a log entry instantiated from a template.
// FieldsSnapshot and ValueMap are populated for log entries only.
type Record struct {
	ID             string        `db:"id" json:"id"`
	WorkspaceID    string        `db:"workspace_id" json:"workspace_id"`
	TemplateID     string        `db:"template_id" json:"template_id"`
	Kind           RecordKind    `db:"kind" json:"kind"`
	AssetID        *string       `db:"asset_id" json:"asset_id,omitempty"`
	FieldsSnapshot FieldSnapshot `db:"fields_snapshot" json:"fields_snapshot,omitempty"`
	ValueMap       ValueMap      `db:"value_map" json:"value_map,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// RenderedField pairs a snapshot field with its recorded value for display.
type RenderedField struct {
	Name         string       `json:"name"`
	Type         PropertyType `json:"type"`
	DisplayOrder int          `json:"display_order"`
	Value        *string      `json:"value"`
}
