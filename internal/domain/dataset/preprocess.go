package dataset

import "math"

// Matrix is the numeric feature view of a Dataset, row-major.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Preprocess keeps the numeric columns of ds and fills their missing cells
// with the column mean over present values. Non-numeric columns are dropped.
// A column with no present values keeps NaN. Row count is preserved.
func Preprocess(ds *Dataset) *Matrix {
	var cols []Column
	for _, c := range ds.Columns {
		if c.Kind == KindNumeric {
			cols = append(cols, c)
		}
	}

	m := &Matrix{
		Columns: make([]string, len(cols)),
		Rows:    make([][]float64, ds.Rows),
	}
	for i := range m.Rows {
		m.Rows[i] = make([]float64, len(cols))
	}

	for j, c := range cols {
		m.Columns[j] = c.Name
		mean := columnMean(c.Values)
		for i, v := range c.Values {
			f, _ := v.(float64)
			if math.IsNaN(f) {
				f = mean
			}
			m.Rows[i][j] = f
		}
	}
	return m
}

func columnMean(values []any) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
