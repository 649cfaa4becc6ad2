package models

// PropertyValue is one EAV row: a record's stored value for a property.
// Value is nil when the property is unset; empty strings are never stored.
type PropertyValue struct {
	RecordID   string  `db:"record_id" json:"record_id"`
	PropertyID string  `db:"property_id" json:"property_id"`
	Value      *string `db:"value" json:"value"`
}

// ValueEntry is the write-side shape for setting a record's value.
type ValueEntry struct {
	PropertyID string `json:"property_id" validate:"required"`
	Value      string `json:"value"`
}

// ValueSuggestion is one distinct historical value with its frequency.
type ValueSuggestion struct {
	Value string `db:"value" json:"value"`
	Count int    `db:"count" json:"count"`
}
