package table

import "math"

// ColumnKind distinguishes numeric columns from closed-vocabulary
// categorical columns.
type ColumnKind int

const (
	Numeric ColumnKind = iota
	Categorical
)

// Column is one typed column of a cleaned frame. Numeric columns use NaN
// for missing values; categorical columns use the empty string.
type Column struct {
	Name   string
	Kind   ColumnKind
	Floats []float64
	Labels []string
}

// Frame is the typed form of a cleaned table: column oriented, with the
// original row keys carried alongside.
type Frame struct {
	Keys    []int
	Columns []Column
}

// Nrow returns the number of rows in the frame.
func (f *Frame) Nrow() int {
	return len(f.Keys)
}

// Column returns the named column, or nil when absent.
func (f *Frame) Column(name string) *Column {
	for i := range f.Columns {
		if f.Columns[i].Name == name {
			return &f.Columns[i]
		}
	}
	return nil
}

// NumericNames returns the names of all numeric columns in frame order.
func (f *Frame) NumericNames() []string {
	var names []string
	for _, c := range f.Columns {
		if c.Kind == Numeric {
			names = append(names, c.Name)
		}
	}
	return names
}

// CategoricalNames returns the names of all categorical columns in frame
// order, excluding the named target column.
func (f *Frame) CategoricalNames(target string) []string {
	var names []string
	for _, c := range f.Columns {
		if c.Kind == Categorical && c.Name != target {
			names = append(names, c.Name)
		}
	}
	return names
}

// AddNumeric appends a numeric column. The values slice must match Nrow.
func (f *Frame) AddNumeric(name string, values []float64) {
	f.Columns = append(f.Columns, Column{Name: name, Kind: Numeric, Floats: values})
}

// AddCategorical appends a categorical column. The labels slice must
// match Nrow.
func (f *Frame) AddCategorical(name string, labels []string) {
	f.Columns = append(f.Columns, Column{Name: name, Kind: Categorical, Labels: labels})
}

// MissingNumeric returns a NaN-filled column of n values, used when the
// fitted vocabulary expects a column the current batch does not carry.
func MissingNumeric(n int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}
