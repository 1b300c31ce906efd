// Package dataset holds the tabular model of an uploaded file and the
// preprocessing that turns it into a numeric feature matrix.
package dataset

import "math"

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindBool    Kind = "bool"
	KindText    Kind = "text"
)

// Column is one named column of an uploaded file.
// Numeric columns hold float64 values with NaN for missing cells; other
// columns hold nil for missing cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Dataset is the parsed upload. Column order follows the file.
type Dataset struct {
	Columns []Column
	Rows    int
}

// Names returns the column names in file order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []any {
	out := make([]any, len(d.Columns))
	for j, c := range d.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// IsMissing reports whether v is a missing cell.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}
