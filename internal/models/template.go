package models

import (
	"fmt"
	"strconv"
	"time"
)

// TemplateKind partitions templates between long-lived assets and
// append-only log entries.
type TemplateKind string

const (
	TemplateKindAsset TemplateKind = "asset"
	TemplateKindLog   TemplateKind = "log"
)

// Valid reports whether the kind is one of the closed set.
func (k TemplateKind) Valid() bool {
	return k == TemplateKindAsset || k == TemplateKindLog
}

// PropertyType is the closed set of value kinds a property may carry.
// Raw values are always stored as text and cast at read boundaries.
type PropertyType string

const (
	PropertyTypeText   PropertyType = "text"
	PropertyTypeNumber PropertyType = "number"
	PropertyTypeDate   PropertyType = "date"
)

// Valid reports whether the type is one of the closed set.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeText, PropertyTypeNumber, PropertyTypeDate:
		return true
	}
	return false
}

// Cast converts a stored raw value into its typed representation.
func (t PropertyType) Cast(raw string) (interface{}, error) {
	switch t {
	case PropertyTypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("cast %q as number: %w", raw, err)
		}
		return n, nil
	case PropertyTypeDate:
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			return ts, nil
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("cast %q as date: %w", raw, err)
		}
		return ts, nil
	case PropertyTypeText:
		return raw, nil
	}
	return nil, fmt.Errorf("unknown property type %q", t)
}

// Template is a named schema for a class of records.
type Template struct {
	ID          string       `db:"id" json:"id"`
	WorkspaceID string       `db:"workspace_id" json:"workspace_id"`
	Name        string       `db:"name" json:"name"`
	Kind        TemplateKind `db:"kind" json:"kind"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// TemplateWithCount decorates a template with its dependent record count.
type TemplateWithCount struct {
	Template
	RecordCount int `db:"record_count" json:"record_count"`
}

// PropertyDefinition is one typed, orderable field belonging to a template.
// is_active=false is a soft delete: the definition disappears from
// new-record forms but stays resolvable for historical snapshots.
type PropertyDefinition struct {
	ID           string       `db:"id" json:"id"`
	TemplateID   string       `db:"template_id" json:"template_id"`
	Name         string       `db:"name" json:"name"`
	Type         PropertyType `db:"type" json:"type"`
	DefaultValue *string      `db:"default_value" json:"default_value,omitempty"`
	DisplayOrder int          `db:"display_order" json:"display_order"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
