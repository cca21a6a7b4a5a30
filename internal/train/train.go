// Package train fits the encoding vocabulary and the classifier on a
// cleaned training table and writes the artifact bundle the inference
// pipeline loads at startup.
package train

import (
	"fmt"
	"os"

	"github.com/pdx-proptype/internal/artifact"
	"github.com/pdx-proptype/internal/clean"
	"github.com/pdx-proptype/internal/debug"
	"github.com/pdx-proptype/internal/encode"
	"github.com/pdx-proptype/internal/model"
	"github.com/pdx-proptype/internal/schema"
	"github.com/pdx-proptype/internal/table"
)

// Summary describes one completed training run.
type Summary struct {
	RowsIn      int
	RowsTrained int
	Features    int
	Classes     []string
	CleanReport *clean.Report
}

// Run reads a raw training CSV, runs the same cleaning pipeline used at
// inference, fits the scaler / one-hot vocabulary / label codec, trains
// the forest, and saves the bundle to artifactPath.
func Run(csvPath, artifactPath string, cfg model.Config, debugOn bool) (*Summary, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open training CSV: %w", err)
	}
	defer f.Close()

	raw, err := table.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse training CSV: %w", err)
	}

	validated, err := schema.Normalize(raw)
	if err != nil {
		return nil, err
	}

	cleaned, report := clean.Clean(validated)
	debug.Output(debugOn, "training data cleaned: %d of %d rows kept", len(cleaned.Rows), len(raw.Rows))
	if len(cleaned.Rows) == 0 {
		return nil, fmt.Errorf("no training rows survived cleaning")
	}

	frame := clean.ToFrame(cleaned)
	target := frame.Column(clean.TargetColumn)
	if target == nil {
		return nil, fmt.Errorf("training data has no %s column after cleaning", clean.TargetColumn)
	}

	labels := encode.FitLabels(target.Labels)
	y := make([]int, len(target.Labels))
	for i, label := range target.Labels {
		code, ok := labels.Encode(label)
		if !ok {
			return nil, fmt.Errorf("label %q missing from fitted classes", label)
		}
		y[i] = code
	}

	scaler := encode.FitScaler(frame)
	oneHot := encode.FitOneHot(frame, clean.TargetColumn)
	enc, _ := encode.Transform(frame, scaler, oneHot)

	dtypes := make(map[string]string, len(enc.Names))
	for _, name := range scaler.Features {
		dtypes[name] = "float64"
	}
	for _, name := range oneHot.FeatureNames() {
		dtypes[name] = "uint8"
	}

	debug.Output(debugOn, "fitting forest: %d rows, %d features, %d classes",
		frame.Nrow(), len(enc.Names), len(labels.Classes))
	forest := model.Fit(enc.M, y, cfg)

	bundle := &artifact.Bundle{
		FeatureNames:        enc.Names,
		NumericFeatures:     scaler.Features,
		CategoricalFeatures: oneHot.FeatureNames(),
		DTypes:              dtypes,
		Scaler:              *scaler,
		OneHot:              *oneHot,
		Labels:              *labels,
		Forest:              *forest,
	}
	if err := artifact.Save(artifactPath, bundle); err != nil {
		return nil, err
	}

	return &Summary{
		RowsIn:      len(raw.Rows),
		RowsTrained: frame.Nrow(),
		Features:    len(enc.Names),
		Classes:     labels.Classes,
		CleanReport: report,
	}, nil
}
