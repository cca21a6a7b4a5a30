package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdx-proptype/internal/encode"
	"github.com/pdx-proptype/internal/model"

	"gonum.org/v1/gonum/mat"
)

func testBundle() *Bundle {
	X := mat.NewDense(4, 2, []float64{0, 0, 0, 1, 10, 10, 10, 11})
	forest := model.Fit(X, []int{0, 0, 1, 1}, model.Config{NumTrees: 3, MaxDepth: 3, MinSamplesSplit: 2, Seed: 1})
	return &Bundle{
		FeatureNames:        []string{"approx_sqft", "city_portland"},
		NumericFeatures:     []string{"approx_sqft"},
		CategoricalFeatures: []string{"city_portland"},
		DTypes:              map[string]string{"approx_sqft": "float64", "city_portland": "uint8"},
		Scaler:              encode.Scaler{Features: []string{"approx_sqft"}, Mean: []float64{1500}, Scale: []float64{500}},
		OneHot:              encode.OneHot{Columns: []string{"city"}, Categories: [][]string{{"portland"}}},
		Labels:              encode.LabelCodec{Classes: []string{"attachd", "condo", "detachd"}},
		Forest:              *forest,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_artifacts.gob")
	if err := Save(path, testBundle()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.FeatureNames) != 2 || loaded.FeatureNames[0] != "approx_sqft" {
		t.Errorf("FeatureNames = %v", loaded.FeatureNames)
	}
	if loaded.Scaler.Mean[0] != 1500 {
		t.Errorf("Scaler mean = %v", loaded.Scaler.Mean[0])
	}
	if loaded.Labels.Decode(1) != "condo" {
		t.Errorf("Labels decode = %q", loaded.Labels.Decode(1))
	}
	if len(loaded.Forest.Trees) != 3 {
		t.Errorf("Forest trees = %d", len(loaded.Forest.Trees))
	}
	if loaded.DTypes["city_portland"] != "uint8" {
		t.Errorf("DTypes = %v", loaded.DTypes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.gob"))
	if err == nil {
		t.Fatal("Expected error for missing artifact file")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected *LoadError, got %T", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("LoadError should wrap the underlying file error")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gob")
	if err := os.WriteFile(path, []byte("not a gob stream"), 0644); err != nil {
		t.Fatal(err)
	}
	var loadErr *LoadError
	if _, err := Load(path); !errors.As(err, &loadErr) {
		t.Fatalf("Expected *LoadError for corrupt file, got %v", err)
	}
}

func TestLoadIncompleteBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gob")
	if err := Save(path, &Bundle{FeatureNames: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for bundle without classes or trees")
	}
}
