package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pdx-proptype/internal/artifact"
	"github.com/pdx-proptype/internal/clean"
	"github.com/pdx-proptype/internal/encode"
	"github.com/pdx-proptype/internal/model"
	"github.com/pdx-proptype/internal/schema"
	"github.com/pdx-proptype/internal/table"
)

var exportHeader = []string{
	"MLS#", "Type", "Prop. Cat.", "Prop. Cond.", "Tax", "Address", "City",
	"Zip", "Area", "BD", "Baths", "# Levels", "Apx Sqft", "Price SqFt",
	"Sld Price Sqft", "Lot Size", "Pend. Date", "DOM", "CDOM", "List Date",
	"List Price", "Sold Date", "Price", "Yr. Built", "HOA Dues", "# Garage",
	"# Fireplaces", "Terms",
}

// listing builds one raw row; overrides patch the detached-house default.
func listing(key int, overrides map[string]string) table.Row {
	cells := map[string]string{
		"MLS#": fmt.Sprintf("m%d", key), "Type": "DETACHD", "Prop. Cat.": "RES",
		"Prop. Cond.": "RESALE", "Tax": "5000", "Address": "123 Main St",
		"City": "Portland", "Zip": "97201", "Area": "$148.00", "BD": "4",
		"Baths": "2.1", "# Levels": "2", "Apx Sqft": "3200",
		"Price SqFt": "200", "Sld Price Sqft": "200", "Lot Size": "5000",
		"Pend. Date": "2025-01-01", "DOM": "30", "CDOM": "30",
		"List Date": "2024-12-01", "List Price": "$650,000",
		"Sold Date": "2025-02-01", "Price": "$640,000", "Yr. Built": "1995",
		"HOA Dues": "0", "# Garage": "2", "# Fireplaces": "1", "Terms": "cash",
	}
	for k, v := range overrides {
		cells[k] = v
	}
	return table.Row{Key: key, Cells: cells}
}

func rawTable(rows ...table.Row) *table.Table {
	return &table.Table{Columns: append([]string(nil), exportHeader...), Rows: rows}
}

// condoOverrides makes a listing that is unambiguously a condo.
func condoOverrides(sqft, hoa string) map[string]string {
	return map[string]string{
		"Type": "CONDO", "City": "Beaverton", "Zip": "97005",
		"BD": "1", "Baths": "1", "Apx Sqft": sqft, "HOA Dues": hoa,
		"# Levels": "1", "# Garage": "0", "# Fireplaces": "0",
	}
}

// trainBundle fits the vocabulary and forest on a separable synthetic
// batch, the same way the train command does.
func trainBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	var rows []table.Row
	key := 0
	for i := 0; i < 10; i++ {
		rows = append(rows, listing(key, map[string]string{
			"Apx Sqft": fmt.Sprintf("%d", 3000+i*50),
		}))
		key++
		rows = append(rows, listing(key, condoOverrides(fmt.Sprintf("%d", 800+i*20), "300")))
		key++
	}

	validated, err := schema.Normalize(rawTable(rows...))
	if err != nil {
		t.Fatalf("Training schema: %v", err)
	}
	cleaned, _ := clean.Clean(validated)
	frame := clean.ToFrame(cleaned)

	target := frame.Column(clean.TargetColumn)
	labels := encode.FitLabels(target.Labels)
	y := make([]int, len(target.Labels))
	for i, label := range target.Labels {
		y[i], _ = labels.Encode(label)
	}

	scaler := encode.FitScaler(frame)
	oneHot := encode.FitOneHot(frame, clean.TargetColumn)
	enc, _ := encode.Transform(frame, scaler, oneHot)

	dtypes := map[string]string{}
	for _, n := range scaler.Features {
		dtypes[n] = "float64"
	}
	for _, n := range oneHot.FeatureNames() {
		dtypes[n] = "uint8"
	}

	forest := model.Fit(enc.M, y, model.Config{NumTrees: 50, MaxDepth: 8, MinSamplesSplit: 2, Seed: 42})
	return &artifact.Bundle{
		FeatureNames:        enc.Names,
		NumericFeatures:     scaler.Features,
		CategoricalFeatures: oneHot.FeatureNames(),
		DTypes:              dtypes,
		Scaler:              *scaler,
		OneHot:              *oneHot,
		Labels:              *labels,
		Forest:              *forest,
	}
}

func TestRunEndToEnd(t *testing.T) {
	runner := New(trainBundle(t))

	raw := rawTable(
		listing(0, map[string]string{"Apx Sqft": "3100"}),
		listing(1, condoOverrides("850", "300")),
		listing(2, map[string]string{"City": "Seattle"}), // dropped: unknown city
	)

	annotated, report, err := runner.Run(raw)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.RowsIn != 3 || report.RowsOut != 2 {
		t.Fatalf("RowsIn/RowsOut = %d/%d, want 3/2", report.RowsIn, report.RowsOut)
	}
	if report.Drops["unknown_city"] != 1 {
		t.Errorf("Drop accounting: %v", report.Drops)
	}
	if len(annotated.Rows) != 2 {
		t.Fatalf("Annotated rows = %d, want 2", len(annotated.Rows))
	}
	if annotated.Columns[len(annotated.Columns)-1] != PredictedColumn {
		t.Errorf("Last column = %q, want %q", annotated.Columns[len(annotated.Columns)-1], PredictedColumn)
	}

	// row identity: predictions re-attach to the original records
	byKey := map[int]table.Row{}
	for _, r := range annotated.Rows {
		byKey[r.Key] = r
	}
	if _, ok := byKey[2]; ok {
		t.Error("Dropped row appears in the annotated output")
	}
	house, condo := byKey[0], byKey[1]
	if house.Get("MLS#") != "m0" || condo.Get("MLS#") != "m1" {
		t.Error("Original cells not carried through to the annotated output")
	}
	if got := house.Get(PredictedColumn); got != "detachd" {
		t.Errorf("House predicted %q, want detachd", got)
	}
	if got := condo.Get(PredictedColumn); got != "condo" {
		t.Errorf("Condo predicted %q, want condo", got)
	}
}

func TestRunSchemaError(t *testing.T) {
	runner := New(trainBundle(t))
	raw := rawTable(listing(0, nil))
	raw.Columns = raw.Columns[:20]

	_, _, err := runner.Run(raw)
	var schemaErr *schema.Error
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected schema error, got %v", err)
	}
}

func TestRunAllRowsDropped(t *testing.T) {
	runner := New(trainBundle(t))
	raw := rawTable(listing(0, map[string]string{"Type": "FARM"}))

	annotated, report, err := runner.Run(raw)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(annotated.Rows) != 0 {
		t.Errorf("Expected empty annotated table, got %d rows", len(annotated.Rows))
	}
	if report.RowsOut != 0 || report.Drops["property_type_outside_target_set"] != 1 {
		t.Errorf("Report = %+v", report)
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	runner := New(trainBundle(t))
	raw := rawTable(listing(0, nil))

	if _, _, err := runner.Run(raw); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if raw.Rows[0].Get("City") != "Portland" {
		t.Error("Run mutated the raw input")
	}
	if len(raw.Columns) != 28 {
		t.Error("Run modified the raw header")
	}
	if _, ok := raw.Rows[0].Cells[PredictedColumn]; ok {
		t.Error("Run attached predictions to the input rows")
	}
}

func TestRunSuccessiveBatchesIndependent(t *testing.T) {
	runner := New(trainBundle(t))

	first := rawTable(listing(0, nil))
	second := rawTable(listing(0, condoOverrides("850", "300")))

	_, firstReport, err := runner.Run(first)
	if err != nil {
		t.Fatal(err)
	}
	_, secondReport, err := runner.Run(second)
	if err != nil {
		t.Fatal(err)
	}
	if firstReport.RowsIn != 1 || secondReport.RowsIn != 1 {
		t.Error("Reports leaked state between runs")
	}

	again, _, err := runner.Run(first)
	if err != nil {
		t.Fatal(err)
	}
	if got := again.Rows[0].Get(PredictedColumn); got != "detachd" {
		t.Errorf("Re-running the first batch predicted %q", got)
	}
}

func TestRunUnknownCategoryCountsNotErrors(t *testing.T) {
	runner := New(trainBundle(t))
	raw := rawTable(listing(0, map[string]string{"Area": "$999.00"})) // area unseen at fit time

	annotated, report, err := runner.Run(raw)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(annotated.Rows) != 1 {
		t.Fatal("Row with unseen category should still be predicted")
	}
	if report.UnknownCategories == 0 {
		t.Error("Unseen categorical value should be counted in the report")
	}
}

func TestRunQualityWarnings(t *testing.T) {
	runner := New(trainBundle(t))
	raw := rawTable(listing(0, map[string]string{"Tax": ""}))

	_, report, err := runner.Run(raw)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var taxWarn bool
	for _, w := range report.Warnings {
		if w.Severity == clean.SeverityQuality && strings.Contains(w.Message, "tax") {
			taxWarn = true
		}
	}
	if !taxWarn {
		t.Error("Missing tax values should surface a quality warning")
	}
}
