package analysis

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

// ResultSet is an annotated table. It marshals to a JSON array of objects
// whose keys keep column order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (s ResultSet) Len() int { return len(s.Rows) }

func (s ResultSet) MarshalJSON() ([]byte, error) {
	keys := make([][]byte, len(s.Columns))
	for i, c := range s.Columns {
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range s.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, v := range row {
			if j > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(jsonSafe(v))
			if err != nil {
				return nil, err
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			buf.Write(b)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// jsonSafe maps NaN and ±Inf to nil at any depth; JSON has no representation
// for them. Nested slices and maps are copied, the row itself is not touched.
func jsonSafe(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = jsonSafe(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonSafe(e)
		}
		return out
	}
	return v
}

// EncodeCSV renders s with a header row. An empty set yields the header only.
func EncodeCSV(s ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(s.Columns))
	for _, row := range s.Rows {
		for j, v := range row {
			record[j] = formatCell(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(jsonSafe(x))
		if err != nil {
			return ""
		}
		return string(b)
	}
}
