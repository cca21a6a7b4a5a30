// Package artifact persists and loads the fitted model bundle: the
// trained classifier plus every statistic and vocabulary the encoding
// stage needs to reproduce the training-time transform at inference.
// The bundle is written once by the train command and loaded read-only
// at process start; it is never mutated afterwards.
package artifact

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pdx-proptype/internal/encode"
	"github.com/pdx-proptype/internal/model"
)

// Bundle is the fitted vocabulary and model, frozen at training time.
type Bundle struct {
	// FeatureNames is the exact model input column order.
	FeatureNames []string
	// NumericFeatures and CategoricalFeatures partition FeatureNames:
	// scaler inputs and expanded one-hot column names respectively.
	NumericFeatures     []string
	CategoricalFeatures []string
	// DTypes records the training-time dtype per feature column.
	DTypes map[string]string

	Scaler encode.Scaler
	OneHot encode.OneHot
	Labels encode.LabelCodec
	Forest model.Forest
}

// LoadError is fatal at startup: a required artifact file is missing or
// unreadable, so the pipeline refuses to start.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model artifacts from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Save writes the bundle to path.
func Save(path string, b *Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}
	return nil
}

// Load reads a bundle written by Save. The returned bundle must be
// treated as read-only; concurrent inference runs share it by reference.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	var b Bundle
	if err := gob.NewDecoder(f).Decode(&b); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(b.FeatureNames) == 0 || len(b.Labels.Classes) == 0 || len(b.Forest.Trees) == 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("artifact bundle is incomplete")}
	}
	return &b, nil
}
