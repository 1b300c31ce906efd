package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Clever/csvlint"
)

// ErrNoColumns is returned for uploads without a header or records.
var ErrNoColumns = errors.New("no columns to parse from file")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// naValues are the cell texts treated as missing in CSV input.
var naValues = map[string]struct{}{
	"":         {},
	"NA":       {},
	"N/A":      {},
	"n/a":      {},
	"NaN":      {},
	"nan":      {},
	"-NaN":     {},
	"-nan":     {},
	"null":     {},
	"NULL":     {},
	"None":     {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"<NA>":     {},
}

// Parse decodes an upload, choosing the format by file extension:
// ".json" is read as JSON, anything else as CSV.
func Parse(filename string, data []byte) (*Dataset, error) {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return ParseJSON(data)
	}
	return ParseCSV(data)
}

// ParseCSV decodes comma separated data with a header row.
func ParseCSV(data []byte) (*Dataset, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoColumns
	}

	invalids, _, err := csvlint.Validate(bytes.NewReader(data), ',', false)
	if err != nil {
		return nil, err
	}
	if len(invalids) > 0 {
		return nil, invalids[0]
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, err
	}

	names := uniqueNames(header)
	cells := make([][]string, len(names))
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i := range names {
			v := ""
			if i < len(record) {
				v = record[i]
			}
			cells[i] = append(cells[i], v)
		}
		rows++
	}

	ds := &Dataset{Rows: rows, Columns: make([]Column, len(names))}
	for i, name := range names {
		ds.Columns[i] = csvColumn(name, cells[i])
	}
	return ds, nil
}

func csvColumn(name string, cells []string) Column {
	kind := inferCSVKind(cells)
	values := make([]any, len(cells))
	for i, c := range cells {
		_, missing := naValues[c]
		switch {
		case kind == KindNumeric && missing:
			values[i] = math.NaN()
		case kind == KindNumeric:
			f, _ := strconv.ParseFloat(strings.TrimSpace(c), 64)
			values[i] = f
		case missing:
			values[i] = nil
		case kind == KindBool:
			values[i] = strings.EqualFold(strings.TrimSpace(c), "true")
		default:
			values[i] = c
		}
	}
	return Column{Name: name, Kind: kind, Values: values}
}

func inferCSVKind(cells []string) Kind {
	numeric, boolean := true, true
	for _, c := range cells {
		if _, missing := naValues[c]; missing {
			continue
		}
		t := strings.TrimSpace(c)
		if _, err := strconv.ParseFloat(t, 64); err != nil {
			numeric = false
		}
		if !strings.EqualFold(t, "true") && !strings.EqualFold(t, "false") {
			boolean = false
		}
		if !numeric && !boolean {
			return KindText
		}
	}
	if numeric {
		// all-missing columns land here too
		return KindNumeric
	}
	return KindBool
}

// uniqueNames fills blank headers and suffixes duplicates with ".N".
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		}
		if _, ok := seen[name]; !ok {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// ParseJSON decodes either an array of records or an object of columns
// ({"col": [...]} or {"col": {"0": ...}}).
func ParseJSON(data []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	switch tok {
	case json.Delim('['):
		err = readRecords(dec, b)
	case json.Delim('{'):
		err = readColumns(dec, b)
	default:
		return nil, fmt.Errorf("expected an array of records or an object of columns, got %v", tok)
	}
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return b.build(), nil
}

func readRecords(dec *json.Decoder, b *builder) error {
	for row := 0; dec.More(); row++ {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if tok != json.Delim('{') {
			return fmt.Errorf("record %d is not an object", row)
		}
		b.rows = row + 1
		for dec.More() {
			key, err := readKey(dec)
			if err != nil {
				return err
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return err
			}
			b.set(key, row, v)
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

func readColumns(dec *json.Decoder, b *builder) error {
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		b.column(key)

		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('['):
			for row := 0; dec.More(); row++ {
				var v any
				if err := dec.Decode(&v); err != nil {
					return err
				}
				b.set(key, row, v)
			}
		case json.Delim('{'):
			for row := 0; dec.More(); row++ {
				if _, err := readKey(dec); err != nil {
					return err
				}
				var v any
				if err := dec.Decode(&v); err != nil {
					return err
				}
				b.set(key, row, v)
			}
		default:
			return fmt.Errorf("column %q is not an array or object", key)
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// builder collects sparse JSON cells keyed by column and row.
type builder struct {
	order []string
	cells map[string]map[int]any
	rows  int
}

func newBuilder() *builder {
	return &builder{cells: make(map[string]map[int]any)}
}

func (b *builder) column(name string) map[int]any {
	col, ok := b.cells[name]
	if !ok {
		col = make(map[int]any)
		b.cells[name] = col
		b.order = append(b.order, name)
	}
	return col
}

func (b *builder) set(name string, row int, v any) {
	b.column(name)[row] = v
	if row+1 > b.rows {
		b.rows = row + 1
	}
}

func (b *builder) build() *Dataset {
	ds := &Dataset{Rows: b.rows, Columns: make([]Column, len(b.order))}
	for i, name := range b.order {
		ds.Columns[i] = jsonColumn(name, b.cells[name], b.rows)
	}
	return ds
}

func jsonColumn(name string, cells map[int]any, rows int) Column {
	numeric, boolean := true, true
	for _, v := range cells {
		switch v.(type) {
		case nil:
		case json.Number:
			boolean = false
		case bool:
			numeric = false
		default:
			numeric, boolean = false, false
		}
	}
	kind := KindText
	switch {
	case numeric:
		kind = KindNumeric
	case boolean:
		kind = KindBool
	}

	values := make([]any, rows)
	for i := range values {
		v := normalizeJSON(cells[i])
		if kind == KindNumeric && v == nil {
			values[i] = math.NaN()
			continue
		}
		values[i] = v
	}
	return Column{Name: name, Kind: kind, Values: values}
}

// normalizeJSON converts json.Number to float64, recursively. Out of range
// literals come back as ±Inf; inside arrays and objects they become nil.
func normalizeJSON(v any) any {
	if n, ok := v.(json.Number); ok {
		f, _ := n.Float64()
		return f
	}
	return normalizeNested(v)
}

func normalizeNested(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return nil
		}
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNested(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeNested(x[k])
		}
		return x
	}
	return v
}
