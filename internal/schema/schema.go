// Package schema validates the raw listing header and projects it down
// to the canonical field set the pipeline operates on.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdx-proptype/internal/table"
)

// ExpectedColumns is the full 28-column export header, in canonical form
// (lowercased, spaces replaced with underscores, periods stripped).
var ExpectedColumns = []string{
	"mls#", "type", "prop_cat", "prop_cond", "tax", "address", "city",
	"zip", "area", "bd", "baths", "#_levels", "apx_sqft", "price_sqft",
	"sld_price_sqft", "lot_size", "pend_date", "dom", "cdom", "list_date",
	"list_price", "sold_date", "price", "yr_built", "hoa_dues", "#_garage",
	"#_fireplaces", "terms",
}

// keep lists the canonical columns the model pipeline consumes. Listing
// identifiers, redundant price fields and free-text terms are projected
// out here; this projection is fixed, not configurable.
var keep = []string{
	"prop_cond", "type", "city", "zip", "area", "bd", "baths", "#_levels",
	"apx_sqft", "yr_built", "hoa_dues", "#_garage", "#_fireplaces",
}

// rename maps kept export column names to the field names used by the
// cleaning and encoding stages.
var rename = map[string]string{
	"type":         "property_type",
	"prop_cond":    "property_condition",
	"city":         "city",
	"zip":          "zip_code",
	"area":         "area",
	"bd":           "bedrooms",
	"baths":        "bathrooms",
	"#_levels":     "num_levels",
	"apx_sqft":     "approx_sqft",
	"yr_built":     "year_built",
	"hoa_dues":     "hoa_dues",
	"#_garage":     "num_garage",
	"#_fireplaces": "num_fireplaces",
}

// Error reports a header that does not match the expected export format.
// It is fatal: no row processing happens on a malformed header.
type Error struct {
	Missing    []string
	Unexpected []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected columns: %s", strings.Join(e.Unexpected, ", ")))
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// CanonicalName lowercases a header cell, replaces spaces with
// underscores and strips periods, so "Prop. Cond." and "prop_cond"
// validate the same way.
func CanonicalName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ".", "")
	return s
}

// Normalize validates the raw table header against the expected 28-column
// export format, then projects and renames to the canonical pipeline
// fields. The input table is not modified.
func Normalize(raw *table.Table) (*table.Table, error) {
	canonical := make([]string, len(raw.Columns))
	for i, c := range raw.Columns {
		canonical[i] = CanonicalName(c)
	}

	have := make(map[string]string, len(canonical)) // canonical -> original
	for i, c := range canonical {
		have[c] = raw.Columns[i]
	}

	var missing, unexpected []string
	expected := make(map[string]bool, len(ExpectedColumns))
	for _, c := range ExpectedColumns {
		expected[c] = true
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	for _, c := range canonical {
		if !expected[c] {
			unexpected = append(unexpected, c)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return nil, &Error{Missing: missing, Unexpected: unexpected}
	}

	out := &table.Table{}
	for _, c := range keep {
		out.Columns = append(out.Columns, rename[c])
	}
	out.Rows = make([]table.Row, len(raw.Rows))
	for i, r := range raw.Rows {
		cells := make(map[string]string, len(keep))
		for _, c := range keep {
			cells[rename[c]] = r.Cells[have[c]]
		}
		out.Rows[i] = table.Row{Key: r.Key, Cells: cells}
	}
	return out, nil
}

// RawColumn finds the original header name for a canonical column, so
// pre-projection checks can read cells from the raw table. Returns ok
// false when the column is absent.
func RawColumn(raw *table.Table, canonical string) (string, bool) {
	for _, c := range raw.Columns {
		if CanonicalName(c) == canonical {
			return c, true
		}
	}
	return "", false
}
