package services

import (
	"github.com/iota-uz/userimport/modules/userimport/domain/field"
)

// HeaderMapping is the positional result of mapping a header row: Columns[i]
// is the field for column i, or "" when the header was not recognized.
type HeaderMapping struct {
	Columns []field.Field
	present map[field.Field]int
}

// Has reports whether f has a column.
func (m HeaderMapping) Has(f field.Field) bool {
	_, ok := m.present[f]
	return ok
}

// Index returns the column of f.
func (m HeaderMapping) Index(f field.Field) (int, bool) {
	i, ok := m.present[f]
	return i, ok
}

// Fields returns the recognized fields in column order.
func (m HeaderMapping) Fields() []field.Field {
	out := make([]field.Field, 0, len(m.present))
	for i, f := range m.Columns {
		if f == "" {
			continue
		}
		if idx := m.present[f]; idx == i {
			out = append(out, f)
		}
	}
	return out
}

// MapHeader resolves header cells through the alias table. Unknown headers are
// dropped; a repeated field keeps its first column. Missing required columns
// fail the whole import.
func MapHeader(header RawRow) (HeaderMapping, error) {
	m := HeaderMapping{
		Columns: make([]field.Field, len(header)),
		present: make(map[field.Field]int, len(header)),
	}
	for i, h := range header {
		f, ok := field.Lookup(h)
		if !ok {
			continue
		}
		m.Columns[i] = f
		if _, dup := m.present[f]; !dup {
			m.present[f] = i
		}
	}

	var missing []string
	for _, f := range field.Required() {
		if !m.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return m, &ImportError{
			Code:    ErrMissingRequiredColumns.Code,
			Message: ErrMissingRequiredColumns.Message,
			Missing: missing,
		}
	}
	return m, nil
}
