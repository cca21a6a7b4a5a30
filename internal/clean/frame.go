package clean

import (
	"math"

	"github.com/pdx-proptype/internal/table"
)

// numericFields lists cleaned columns carried as numbers, in the order
// the encoder sees them at fit time.
var numericFields = []string{
	"bedrooms", "num_levels", "approx_sqft", "days_on_market",
	"list_price", "price", "year_built", "hoa_dues", "num_garage",
	"num_fireplaces", "full_bath", "half_bath", "bath_to_bed_ratio",
}

// categoricalFields lists cleaned columns carried as closed categories.
// property_type is the prediction target; the rest are model inputs.
var categoricalFields = []string{
	"property_type", "property_condition", "city", "area", "zip_code",
	"property_age", "zip_prefix_group",
}

// TargetColumn is the label the model predicts.
const TargetColumn = "property_type"

// ToFrame converts a cleaned table into its typed column form. Missing
// numeric cells become NaN, missing categorical cells the empty string.
// Only columns present in the table appear in the frame.
func ToFrame(t *table.Table) *table.Frame {
	f := &table.Frame{Keys: t.Keys()}
	for _, col := range numericFields {
		if !t.HasColumn(col) {
			continue
		}
		vals := make([]float64, len(t.Rows))
		for i, r := range t.Rows {
			if v, ok := table.ParseFloat(r.Get(col)); ok {
				vals[i] = v
			} else {
				vals[i] = math.NaN()
			}
		}
		f.AddNumeric(col, vals)
	}
	for _, col := range categoricalFields {
		if !t.HasColumn(col) {
			continue
		}
		labels := make([]string, len(t.Rows))
		for i, r := range t.Rows {
			if v := r.Get(col); !table.IsNA(v) {
				labels[i] = v
			}
		}
		f.AddCategorical(col, labels)
	}
	return f
}
