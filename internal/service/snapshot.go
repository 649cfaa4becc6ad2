package service

import (
	"sort"
	"strconv"

	"github.com/tracevault/tracevault-api/internal/models"
)

// CaptureSnapshot freezes the active property definitions of a log template
// into an ordered, self-contained field list. Later edits to the template
// never touch the copy.
func CaptureSnapshot(props []models.PropertyDefinition) models.FieldSnapshot {
	snapshot := make(models.FieldSnapshot, 0, len(props))
	for _, p := range props {
		snapshot = append(snapshot, models.SnapshotField{
			ID:           p.ID,
			Name:         p.Name,
			Type:         p.Type,
			DisplayOrder: p.DisplayOrder,
		})
	}
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].DisplayOrder < snapshot[j].DisplayOrder
	})
	return snapshot
}

// RenderFromSnapshot materialises a log entry for display using only the
// entry's own frozen field list and value map. Fields without a stored
// value render with a nil value rather than being dropped.
func RenderFromSnapshot(rec *models.Record) []models.RenderedField {
	if len(rec.FieldsSnapshot) > 0 {
		fields := make([]models.RenderedField, 0, len(rec.FieldsSnapshot))
		for _, f := range rec.FieldsSnapshot {
			var value *string
			if v, ok := rec.ValueMap[f.Name]; ok {
				value = strptr(v)
			}
			fields = append(fields, models.RenderedField{
				Name:         f.Name,
				Type:         f.Type,
				DisplayOrder: f.DisplayOrder,
				Value:        value,
			})
		}
		return fields
	}
	return renderLegacy(rec.ValueMap)
}

// renderLegacy handles entries written before snapshots existed. The only
// information available is the value map itself, so names come from its
// keys and the type is inferred, conservatively, per value.
func renderLegacy(values models.ValueMap) []models.RenderedField {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]models.RenderedField, 0, len(names))
	for i, name := range names {
		fields = append(fields, models.RenderedField{
			Name:         name,
			Type:         inferType(values[name]),
			DisplayOrder: i,
			Value:        strptr(values[name]),
		})
	}
	return fields
}

// inferType guesses a display type from a bare value. Only numbers are
// inferred; date detection from free text is too error-prone, so anything
// non-numeric renders as text.
func inferType(value string) models.PropertyType {
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return models.PropertyTypeNumber
	}
	return models.PropertyTypeText
}

func strptr(s string) *string {
	return &s
}
