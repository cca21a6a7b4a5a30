// Package clean applies the fixed row-cleaning and feature-engineering
// policy to a schema-normalized listing table. Every step is guarded by
// column presence so partial schemas pass through the same ordered
// sequence, and every dropped row is accounted for in the report.
package clean

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/pdx-proptype/internal/table"
)

// ReferenceYear anchors the property-age feature. Frozen to match the
// year the model was trained.
const ReferenceYear = 2025

// TargetTypes is the closed set of property types the model predicts.
var TargetTypes = []string{"attachd", "condo", "detachd"}

// AllowedCities is the service-area city list the model was trained on.
var AllowedCities = []string{"portland", "beaverton", "hillsboro", "lake oswego", "west linn"}

// prunedTypes are low-signal property types removed from the dataset
// entirely rather than predicted.
var prunedTypes = []string{"in-park", "flthome", "res-mfg", "plncomm"}

// excludedCities passed the allow-list historically but sit outside the
// current service area; dropped even when the allow-list admits them.
var excludedCities = []string{
	"forest grove", "cornelius", "aloha", "gaston",
	"tualatin", "gresham", "gales creek", "milwaukie", "newberg",
}

// currencyColumns carry dollar amounts with formatting noise.
var currencyColumns = []string{"area", "list_price", "price"}

// integerColumns are count-like fields coerced to nullable integers.
var integerColumns = []string{
	"bedrooms", "num_levels", "approx_sqft", "days_on_market",
	"list_price", "price", "num_garage", "num_fireplaces",
	"year_built", "full_bath", "half_bath",
}

// garageOutlier is a known data-entry artifact: no listing has 14 garages.
const garageOutlier = 14

var (
	hoaNoiseRe   = regexp.MustCompile(`(?i)\$|,|usd|/mo|per\s*month|monthly`)
	hoaNumberRe  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	bedTokenRe   = regexp.MustCompile(`(?i)\bbd\b`)
	zipPrefixMap = map[string]string{
		"972": "urban_portland",
		"970": "suburban_west_south",
		"971": "suburban_northwest",
	}
)

// Severity classifies a cleaning warning.
type Severity int

const (
	// SeverityDrop marks a warning tied to removed rows.
	SeverityDrop Severity = iota
	// SeverityQuality marks a default-fill that degrades prediction
	// quality without blocking processing.
	SeverityQuality
)

// Warning is a user-visible message produced while cleaning a batch.
type Warning struct {
	Severity Severity
	Message  string
}

// Report accounts for every row removed and every default filled during
// one cleaning pass.
type Report struct {
	RowsIn   int
	RowsOut  int
	Drops    map[string]int
	Warnings []Warning
}

func newReport(rowsIn int) *Report {
	return &Report{RowsIn: rowsIn, Drops: map[string]int{}}
}

func (r *Report) drop(reason string, n int) {
	if n > 0 {
		r.Drops[reason] += n
	}
}

func (r *Report) warnDrop(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Warning{Severity: SeverityDrop, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnQuality(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Warning{Severity: SeverityQuality, Message: fmt.Sprintf(format, args...)})
}

// DroppedTotal returns the number of rows removed across all reasons.
func (r *Report) DroppedTotal() int {
	total := 0
	for _, n := range r.Drops {
		total += n
	}
	return total
}

type state struct {
	t   *table.Table
	rep *Report
}

// step is one guarded transformation. Steps run in fixed order; a step
// whose guard fails is skipped, never an error.
type step struct {
	name  string
	guard func(*state) bool
	apply func(*state)
}

func hasCol(cols ...string) func(*state) bool {
	return func(s *state) bool {
		for _, c := range cols {
			if !s.t.HasColumn(c) {
				return false
			}
		}
		return true
	}
}

func always(*state) bool { return true }

var steps = []step{
	{"normalize_text", always, normalizeText},
	{"filter_property_type", hasCol("property_type"), filterPropertyType},
	{"filter_city", hasCol("city"), filterCity},
	{"filter_missing_zip", hasCol("zip_code"), filterMissing("zip_code", "zip code")},
	{"filter_missing_area", hasCol("area"), filterMissing("area", "area")},
	{"filter_missing_year_built", hasCol("year_built"), filterMissing("year_built", "year built")},
	{"drop_garage_outlier", hasCol("num_garage"), dropGarageOutlier},
	{"impute_hoa_dues", hasCol("hoa_dues"), imputeHOADues},
	{"fill_defaults", always, fillDefaults},
	{"drop_missing_sqft", hasCol("approx_sqft"), dropMissingSqft},
	{"drop_bad_bedroom_token", hasCol("bedrooms"), dropBadBedroomToken},
	{"split_bathrooms", hasCol("bathrooms"), splitBathrooms},
	{"coerce_integers", always, coerceIntegers},
	{"normalize_zip", hasCol("zip_code"), normalizeZip},
	{"prune_property_types", hasCol("property_type"), prunePropertyTypes},
	{"prune_cities", hasCol("city"), pruneCities},
	{"derive_bath_to_bed_ratio", hasCol("full_bath", "half_bath", "bedrooms"), deriveBathToBedRatio},
	{"derive_property_age", hasCol("year_built"), derivePropertyAge},
	{"derive_zip_prefix_group", hasCol("zip_code"), deriveZipPrefixGroup},
}

// Clean runs the full ordered cleaning and feature-engineering sequence
// over a schema-normalized table. The input is never mutated; the report
// carries every drop count and warning for the batch.
func Clean(in *table.Table) (*table.Table, *Report) {
	s := &state{t: in.Clone(), rep: newReport(len(in.Rows))}
	for _, st := range steps {
		if st.guard(s) {
			st.apply(s)
		}
	}
	s.rep.RowsOut = len(s.t.Rows)
	return s.t, s.rep
}

// normalizeText NFKC-normalizes, trims, and lowercases every cell, and
// strips currency formatting ($ , trailing .00) from dollar columns.
func normalizeText(s *state) {
	currency := map[string]bool{}
	for _, c := range currencyColumns {
		currency[c] = true
	}
	for i := range s.t.Rows {
		for _, col := range s.t.Columns {
			v := s.t.Rows[i].Cells[col]
			v = norm.NFKC.String(v)
			if currency[col] {
				v = strings.ReplaceAll(v, "$", "")
				v = strings.ReplaceAll(v, ",", "")
				v = strings.ReplaceAll(v, ".00", "")
			}
			s.t.Rows[i].Cells[col] = strings.ToLower(strings.TrimSpace(v))
		}
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// filterPropertyType keeps only rows whose type is in the closed target
// set; anything else (including missing) cannot be predicted.
func filterPropertyType(s *state) {
	before := len(s.t.Rows)
	s.t = s.t.Filter(func(r table.Row) bool {
		return contains(TargetTypes, r.Get("property_type"))
	})
	if n := before - len(s.t.Rows); n > 0 {
		s.rep.drop("property_type_outside_target_set", n)
		s.rep.warnDrop("found %d row(s) with property type outside %v; rows removed", n, TargetTypes)
	}
}

// filterCity drops rows with an unknown or missing city. The two cases
// are reported separately so audits can tell bad data from out-of-area
// listings.
func filterCity(s *state) {
	unknownSeen := map[string]bool{}
	missing, unknown := 0, 0
	s.t = s.t.Filter(func(r table.Row) bool {
		v := r.Get("city")
		if table.IsNA(v) {
			missing++
			return false
		}
		if !contains(AllowedCities, v) {
			unknown++
			unknownSeen[v] = true
			return false
		}
		return true
	})
	if unknown > 0 {
		names := make([]string, 0, len(unknownSeen))
		for c := range unknownSeen {
			names = append(names, c)
		}
		sort.Strings(names)
		s.rep.drop("unknown_city", unknown)
		s.rep.warnDrop("found city values not recognized by the model; removing %d row(s) (cities: %s)",
			unknown, strings.Join(names, ", "))
	}
	if missing > 0 {
		s.rep.drop("missing_city", missing)
		s.rep.warnDrop("city is missing values; %d row(s) removed", missing)
	}
}

// filterMissing builds a step that drops rows where a required column is
// missing, with a per-field drop reason and warning.
func filterMissing(col, label string) func(*state) {
	reason := "missing_" + col
	return func(s *state) {
		before := len(s.t.Rows)
		s.t = s.t.Filter(func(r table.Row) bool {
			return !table.IsNA(r.Get(col))
		})
		if n := before - len(s.t.Rows); n > 0 {
			s.rep.drop(reason, n)
			s.rep.warnDrop("%s is missing values; %d row(s) removed", label, n)
		}
	}
}

func dropGarageOutlier(s *state) {
	before := len(s.t.Rows)
	s.t = s.t.Filter(func(r table.Row) bool {
		n, ok := table.ParseInt(r.Get("num_garage"))
		return !ok || n != garageOutlier
	})
	if n := before - len(s.t.Rows); n > 0 {
		s.rep.drop("garage_count_outlier", n)
	}
}

// parseHOA extracts the first numeric token from a free-text HOA dues
// value ("$150/mo", "200 monthly"). Returns ok=false when no number is
// present.
func parseHOA(v string) (float64, bool) {
	if table.IsNA(v) {
		return 0, false
	}
	cleaned := hoaNoiseRe.ReplaceAllString(v, "")
	tok := hoaNumberRe.FindString(cleaned)
	if tok == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// imputeHOADues parses dues out of free text and fills unparseable rows
// with the median dues for their property type, computed over the
// current batch. A type group with no valid values falls back to 0.
// Note the batch dependence: a single-row batch has no median and gets 0.
func imputeHOADues(s *state) {
	byType := map[string][]float64{}
	for i := range s.t.Rows {
		if f, ok := parseHOA(s.t.Rows[i].Cells["hoa_dues"]); ok {
			byType[s.t.Rows[i].Cells["property_type"]] = append(byType[s.t.Rows[i].Cells["property_type"]], f)
		}
	}
	medians := map[string]float64{}
	for typ, vals := range byType {
		medians[typ] = median(vals)
	}

	imputed := 0
	for i := range s.t.Rows {
		f, ok := parseHOA(s.t.Rows[i].Cells["hoa_dues"])
		if !ok {
			f = medians[s.t.Rows[i].Cells["property_type"]] // zero when group has no valid values
			imputed++
		}
		s.t.Rows[i].Cells["hoa_dues"] = formatFloat(f)
	}
	if imputed > 0 {
		s.rep.warnQuality("hoa dues missing or unparseable for %d row(s); imputed with property-type median (may reduce prediction accuracy)", imputed)
	}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// fillDefaults best-effort fills low-impact fields. Each fill degrades
// prediction quality rather than blocking, and is surfaced as a
// non-blocking warning.
func fillDefaults(s *state) {
	defaults := []struct {
		col   string
		value string
		label string
	}{
		{"num_fireplaces", "0", "number of fireplaces"},
		{"hoa_dues", "0", "hoa dues"},
		{"property_condition", "resale", "property condition"},
		{"num_levels", "1", "number of levels"},
	}
	for _, d := range defaults {
		if !s.t.HasColumn(d.col) {
			continue
		}
		filled := 0
		for i := range s.t.Rows {
			if table.IsNA(s.t.Rows[i].Cells[d.col]) {
				s.t.Rows[i].Cells[d.col] = d.value
				filled++
			}
		}
		if filled > 0 {
			s.rep.warnQuality("%s missing for %d row(s); filled with %q (may reduce prediction accuracy)",
				d.label, filled, d.value)
		}
	}
}

// dropMissingSqft removes rows without square footage: there is no
// sensible imputation for the dominant size signal.
func dropMissingSqft(s *state) {
	before := len(s.t.Rows)
	s.t = s.t.Filter(func(r table.Row) bool {
		return !table.IsNA(r.Get("approx_sqft"))
	})
	if n := before - len(s.t.Rows); n > 0 {
		s.rep.drop("missing_approx_sqft", n)
		s.rep.warnDrop("approximate square footage is missing values; %d row(s) removed", n)
	}
}

// dropBadBedroomToken removes rows where the bedroom count field carries
// an embedded "bd" marker instead of a number.
func dropBadBedroomToken(s *state) {
	before := len(s.t.Rows)
	s.t = s.t.Filter(func(r table.Row) bool {
		return !bedTokenRe.MatchString(r.Get("bedrooms"))
	})
	if n := before - len(s.t.Rows); n > 0 {
		s.rep.drop("bad_bedroom_token", n)
	}
}

// splitBathrooms decomposes a decimal bathroom count into independent
// full and half counts: "2.1" means 2 full baths and 1 half bath, not
// 2.5 baths. A missing half count defaults to 0.
func splitBathrooms(s *state) {
	s.t.AddColumn("full_bath")
	s.t.AddColumn("half_bath")
	for i := range s.t.Rows {
		v := s.t.Rows[i].Cells["bathrooms"]
		full, half := "", "0"
		if !table.IsNA(v) {
			parts := strings.SplitN(v, ".", 2)
			if _, err := strconv.Atoi(parts[0]); err == nil {
				full = parts[0]
			}
			if len(parts) == 2 {
				if _, err := strconv.Atoi(parts[1]); err == nil {
					half = parts[1]
				}
			}
		}
		s.t.Rows[i].Cells["full_bath"] = full
		s.t.Rows[i].Cells["half_bath"] = half
	}
	s.t.DropColumn("bathrooms")
}

// coerceIntegers canonicalizes count-like fields to integer form;
// unparseable values become explicit nulls.
func coerceIntegers(s *state) {
	for _, col := range integerColumns {
		if !s.t.HasColumn(col) {
			continue
		}
		for i := range s.t.Rows {
			if n, ok := table.ParseInt(s.t.Rows[i].Cells[col]); ok {
				s.t.Rows[i].Cells[col] = strconv.FormatInt(n, 10)
			} else {
				s.t.Rows[i].Cells[col] = ""
			}
		}
	}
}

// normalizeZip coerces zip codes to numeric and zero-pads to 5 digits.
func normalizeZip(s *state) {
	for i := range s.t.Rows {
		if f, ok := table.ParseFloat(s.t.Rows[i].Cells["zip_code"]); ok {
			s.t.Rows[i].Cells["zip_code"] = fmt.Sprintf("%05d", int64(math.Round(f)))
		} else {
			s.t.Rows[i].Cells["zip_code"] = ""
		}
	}
}

func prunePropertyTypes(s *state) {
	before := len(s.t.Rows)
	s.t = s.t.Filter(func(r table.Row) bool {
		return !contains(prunedTypes, r.Get("property_type"))
	})
	if n := before - len(s.t.Rows); n > 0 {
		s.rep.drop("pruned_property_type", n)
	}
}

func pruneCities(s *state) {
	before := len(s.t.Rows)
	s.t = s.t.Filter(func(r table.Row) bool {
		return !contains(excludedCities, strings.TrimSpace(r.Get("city")))
	})
	if n := before - len(s.t.Rows); n > 0 {
		s.rep.drop("excluded_city", n)
	}
}

// deriveBathToBedRatio adds (full + 0.5*half) / bedrooms, rounded to two
// decimals, 0 when the bedroom count is missing or non-positive.
func deriveBathToBedRatio(s *state) {
	s.t.AddColumn("bath_to_bed_ratio")
	for i := range s.t.Rows {
		ratio := 0.0
		bd, bdOK := table.ParseFloat(s.t.Rows[i].Cells["bedrooms"])
		full, fullOK := table.ParseFloat(s.t.Rows[i].Cells["full_bath"])
		half, halfOK := table.ParseFloat(s.t.Rows[i].Cells["half_bath"])
		if bdOK && bd > 0 && fullOK && halfOK {
			ratio = math.Round((full+0.5*half)/bd*100) / 100
		}
		s.t.Rows[i].Cells["bath_to_bed_ratio"] = formatFloat(ratio)
	}
}

// derivePropertyAge adds the age in years relative to the reference
// year, stored as a discrete category per exact age.
func derivePropertyAge(s *state) {
	s.t.AddColumn("property_age")
	for i := range s.t.Rows {
		if yr, ok := table.ParseInt(s.t.Rows[i].Cells["year_built"]); ok {
			s.t.Rows[i].Cells["property_age"] = strconv.FormatInt(ReferenceYear-yr, 10)
		} else {
			s.t.Rows[i].Cells["property_age"] = ""
		}
	}
}

// ZipPrefixGroup maps the first three digits of a zero-padded zip code
// to a coarse geographic bucket.
func ZipPrefixGroup(zip string) string {
	if len(zip) < 3 {
		return "other"
	}
	if g, ok := zipPrefixMap[zip[:3]]; ok {
		return g
	}
	return "other"
}

func deriveZipPrefixGroup(s *state) {
	s.t.AddColumn("zip_prefix_group")
	for i := range s.t.Rows {
		s.t.Rows[i].Cells["zip_prefix_group"] = ZipPrefixGroup(s.t.Rows[i].Cells["zip_code"])
	}
}
