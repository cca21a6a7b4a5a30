// Package pipeline sequences the inference stages: schema validation,
// cleaning, encoding, column reconciliation, model prediction, and label
// decode, re-attaching predictions to the original rows that survived
// filtering.
package pipeline

import (
	"time"

	"github.com/pdx-proptype/internal/artifact"
	"github.com/pdx-proptype/internal/clean"
	"github.com/pdx-proptype/internal/debug"
	"github.com/pdx-proptype/internal/encode"
	"github.com/pdx-proptype/internal/schema"
	"github.com/pdx-proptype/internal/table"
)

// PredictedColumn is the name of the column appended to surviving rows.
const PredictedColumn = "Predicted Type"

// OutputFilename is the fixed name of the exported predictions file.
const OutputFilename = "Dataset_Predictions.csv"

// qualityChecks are raw-table fields whose missing values degrade
// prediction accuracy without (at this point) blocking processing. They
// are checked pre-projection so fields the pipeline drops (tax) still
// get surfaced.
var qualityChecks = []struct {
	canonical string
	label     string
}{
	{"prop_cond", "property condition"},
	{"tax", "tax"},
	{"apx_sqft", "approximate square footage"},
	{"hoa_dues", "hoa dues"},
}

// Report aggregates everything observable about one inference run.
type Report struct {
	RowsIn            int
	RowsOut           int
	Drops             map[string]int
	Warnings          []clean.Warning
	UnknownCategories int
	Duration          time.Duration
}

// Runner executes inference runs against one loaded artifact bundle.
// The bundle is shared read-only; Run keeps all per-batch state local,
// so a single Runner is safe for successive or concurrent batches.
type Runner struct {
	Bundle *artifact.Bundle
	Debug  bool
}

// New creates a runner over a loaded bundle.
func New(b *artifact.Bundle) *Runner {
	return &Runner{Bundle: b}
}

// Run processes one raw listing table to completion and returns the
// original surviving rows annotated with the predicted property type.
// The input table is not modified. A schema mismatch is the only
// row-processing error; everything row-scoped lands in the report.
func (r *Runner) Run(raw *table.Table) (*table.Table, *Report, error) {
	start := time.Now()
	defer debug.Timing(r.Debug, "inference run")()

	validated, err := schema.Normalize(raw)
	if err != nil {
		return nil, nil, err
	}
	debug.Output(r.Debug, "schema validated: %d rows, %d columns kept", len(validated.Rows), len(validated.Columns))

	report := &Report{RowsIn: len(raw.Rows)}
	r.checkQuality(raw, report)

	cleaned, cleanReport := clean.Clean(validated)
	report.Drops = cleanReport.Drops
	report.Warnings = append(report.Warnings, cleanReport.Warnings...)
	report.RowsOut = len(cleaned.Rows)
	debug.Output(r.Debug, "cleaned: %d of %d rows survived (%d dropped)",
		report.RowsOut, report.RowsIn, cleanReport.DroppedTotal())

	annotated := &table.Table{Columns: append(append([]string(nil), raw.Columns...), PredictedColumn)}
	if len(cleaned.Rows) == 0 {
		report.Duration = time.Since(start)
		return annotated, report, nil
	}

	frame := clean.ToFrame(cleaned)
	enc, unknown := encode.Transform(frame, &r.Bundle.Scaler, &r.Bundle.OneHot)
	report.UnknownCategories = unknown
	if unknown > 0 {
		debug.Output(r.Debug, "encoding: %d unseen categorical value(s) mapped to all-zero", unknown)
	}

	reconciled := encode.Reconcile(enc, r.Bundle.FeatureNames, r.Bundle.DTypes)
	preds := r.Bundle.Forest.Predict(reconciled.M)

	labels := make(map[int]string, len(preds))
	for i, key := range frame.Keys {
		labels[key] = r.Bundle.Labels.Decode(preds[i])
	}

	for _, row := range raw.Rows {
		label, ok := labels[row.Key]
		if !ok {
			continue
		}
		cells := make(map[string]string, len(row.Cells)+1)
		for k, v := range row.Cells {
			cells[k] = v
		}
		cells[PredictedColumn] = label
		annotated.Rows = append(annotated.Rows, table.Row{Key: row.Key, Cells: cells})
	}

	report.Duration = time.Since(start)
	return annotated, report, nil
}

// checkQuality surfaces missing values in accuracy-relevant raw fields,
// including fields the projection discards before cleaning.
func (r *Runner) checkQuality(raw *table.Table, report *Report) {
	for _, check := range qualityChecks {
		col, ok := schema.RawColumn(raw, check.canonical)
		if !ok {
			continue
		}
		missing := 0
		for _, row := range raw.Rows {
			if table.IsNA(row.Get(col)) {
				missing++
			}
		}
		if missing > 0 {
			report.Warnings = append(report.Warnings, clean.Warning{
				Severity: clean.SeverityQuality,
				Message:  check.label + " has missing values; this may negatively affect prediction accuracy",
			})
		}
	}
}
