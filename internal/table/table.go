package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Row is a single listing record. Key is assigned once at ingestion and
// survives every filtering stage, so predictions can be re-attached to
// the original record without positional re-alignment.
type Row struct {
	Key   int
	Cells map[string]string
}

// Table is an ordered collection of rows sharing one header.
type Table struct {
	Columns []string
	Rows    []Row
}

// IsNA reports whether a raw cell value counts as missing.
// Matches the markers commonly left behind by spreadsheet exports.
func IsNA(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "na", "nan", "n/a", "null", "none":
		return true
	}
	return false
}

// Get returns the cell value for col, or "" when the column is absent.
func (r Row) Get(col string) string {
	return r.Cells[col]
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// AddColumn appends a column; existing rows get the empty value.
func (t *Table) AddColumn(col string) {
	if t.HasColumn(col) {
		return
	}
	t.Columns = append(t.Columns, col)
}

// DropColumn removes a column from the header and every row.
func (t *Table) DropColumn(col string) {
	out := t.Columns[:0]
	for _, c := range t.Columns {
		if c != col {
			out = append(out, c)
		}
	}
	t.Columns = out
	for i := range t.Rows {
		delete(t.Rows[i].Cells, col)
	}
}

// Clone returns a deep copy. Pipeline stages never mutate their input.
func (t *Table) Clone() *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	out.Rows = make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		cells := make(map[string]string, len(r.Cells))
		for k, v := range r.Cells {
			cells[k] = v
		}
		out.Rows[i] = Row{Key: r.Key, Cells: cells}
	}
	return out
}

// Filter returns a new table holding only rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Keys returns the row keys in table order.
func (t *Table) Keys() []int {
	keys := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		keys[i] = r.Key
	}
	return keys
}

// ReadCSV parses a delimited file into a table, assigning sequential row
// keys starting at 0. The header row is taken verbatim; callers normalize
// column names separately.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	t := &Table{Columns: append([]string(nil), header...)}
	key := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record %d: %w", key, err)
		}
		cells := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				cells[col] = record[i]
			}
		}
		t.Rows = append(t.Rows, Row{Key: key, Cells: cells})
		key++
	}
	return t, nil
}

// WriteCSV writes the table back out as delimited text.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row.Cells[col]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record %d: %w", row.Key, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ParseFloat parses a cell as a number. Returns ok=false for missing or
// unparseable values.
func ParseFloat(v string) (float64, bool) {
	if IsNA(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInt parses a cell as an integer, accepting integral floats
// ("2", "2.0"). Returns ok=false for missing or unparseable values.
func ParseInt(v string) (int64, bool) {
	f, ok := ParseFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
