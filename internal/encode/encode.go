// Package encode applies a previously fitted numeric scaler, one-hot
// vocabulary, and label codec to cleaned listing frames. Fit happens
// once during training; Transform never mutates fitted state, so the
// same vocabulary can be shared read-only across inference runs.
package encode

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/pdx-proptype/internal/table"
)

// Scaler standardizes numeric features using statistics frozen at
// training time.
type Scaler struct {
	Features []string
	Mean     []float64
	Scale    []float64
}

// FitScaler computes per-feature mean and standard deviation over every
// numeric column of the frame, skipping missing values.
func FitScaler(f *table.Frame) *Scaler {
	s := &Scaler{}
	for _, c := range f.Columns {
		if c.Kind != table.Numeric {
			continue
		}
		mean, scale := meanScale(c.Floats)
		s.Features = append(s.Features, c.Name)
		s.Mean = append(s.Mean, mean)
		s.Scale = append(s.Scale, scale)
	}
	return s
}

func meanScale(vals []float64) (mean, scale float64) {
	n := 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			mean += v
			n++
		}
	}
	if n == 0 {
		return 0, 1
	}
	mean /= float64(n)
	for _, v := range vals {
		if !math.IsNaN(v) {
			d := v - mean
			scale += d * d
		}
	}
	scale = math.Sqrt(scale / float64(n))
	if scale == 0 {
		// constant feature: leave values centered, not divided away
		scale = 1
	}
	return mean, scale
}

// Transform standardizes one value of feature i. NaN propagates: a
// missing value stays missing through scaling.
func (s *Scaler) Transform(i int, v float64) float64 {
	return (v - s.Mean[i]) / s.Scale[i]
}

// OneHot holds the fitted category vocabulary per categorical column.
type OneHot struct {
	Columns    []string
	Categories [][]string
}

// FitOneHot records the sorted distinct non-missing categories of every
// categorical column except the target.
func FitOneHot(f *table.Frame, target string) *OneHot {
	o := &OneHot{}
	for _, c := range f.Columns {
		if c.Kind != table.Categorical || c.Name == target {
			continue
		}
		seen := map[string]bool{}
		for _, v := range c.Labels {
			if v != "" {
				seen[v] = true
			}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		o.Columns = append(o.Columns, c.Name)
		o.Categories = append(o.Categories, cats)
	}
	return o
}

// FeatureNames returns the expanded one-hot column names, one per
// (column, category) pair, in fitted order.
func (o *OneHot) FeatureNames() []string {
	var names []string
	for i, col := range o.Columns {
		for _, cat := range o.Categories[i] {
			names = append(names, col+"_"+cat)
		}
	}
	return names
}

// Width returns the total number of expanded one-hot columns.
func (o *OneHot) Width() int {
	n := 0
	for _, cats := range o.Categories {
		n += len(cats)
	}
	return n
}

// LabelCodec maps target class names to dense integer codes and back.
type LabelCodec struct {
	Classes []string
}

// NormalizeLabel canonicalizes a class string for stable encoding.
// Missing labels encode as the literal class "nan".
func NormalizeLabel(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return "nan"
	}
	return s
}

// FitLabels records the sorted distinct normalized classes.
func FitLabels(labels []string) *LabelCodec {
	seen := map[string]bool{}
	for _, v := range labels {
		seen[NormalizeLabel(v)] = true
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return &LabelCodec{Classes: classes}
}

// Encode returns the integer code for a class, ok=false when the class
// was not seen at fit time.
func (l *LabelCodec) Encode(label string) (int, bool) {
	want := NormalizeLabel(label)
	for i, c := range l.Classes {
		if c == want {
			return i, true
		}
	}
	return 0, false
}

// Decode returns the class string for a predicted integer code.
func (l *LabelCodec) Decode(code int) string {
	if code < 0 || code >= len(l.Classes) {
		return ""
	}
	return l.Classes[code]
}

// Mapping returns the class-name to code table, matching the mapping
// recorded in the training artifacts.
func (l *LabelCodec) Mapping() map[string]int {
	m := make(map[string]int, len(l.Classes))
	for i, c := range l.Classes {
		m[c] = i
	}
	return m
}

// Encoded is a numeric feature matrix with named columns: scaled numeric
// features first, then the expanded one-hot blocks.
type Encoded struct {
	Names []string
	M     *mat.Dense
}

// Transform encodes a cleaned frame against the fitted vocabulary.
// Numeric features absent from the batch become NaN columns; categorical
// values unseen at training time (or missing columns) yield all-zero
// one-hot blocks and are counted, not rejected. An empty frame yields a
// nil matrix.
func Transform(f *table.Frame, sc *Scaler, oh *OneHot) (*Encoded, int) {
	n := f.Nrow()
	names := append(append([]string(nil), sc.Features...), oh.FeatureNames()...)
	if n == 0 {
		return &Encoded{Names: names}, 0
	}
	m := mat.NewDense(n, len(names), nil)

	for j, feat := range sc.Features {
		col := f.Column(feat)
		for i := 0; i < n; i++ {
			v := math.NaN()
			if col != nil && col.Kind == table.Numeric {
				v = col.Floats[i]
			}
			m.Set(i, j, sc.Transform(j, v))
		}
	}

	unknown := 0
	offset := len(sc.Features)
	for ci, colName := range oh.Columns {
		cats := oh.Categories[ci]
		col := f.Column(colName)
		for i := 0; i < n; i++ {
			v := ""
			if col != nil && col.Kind == table.Categorical {
				v = col.Labels[i]
			}
			matched := false
			for k, cat := range cats {
				if v == cat {
					m.Set(i, offset+k, 1)
					matched = true
					break
				}
			}
			if !matched && v != "" {
				unknown++
			}
		}
		offset += len(cats)
	}

	return &Encoded{Names: names, M: m}, unknown
}
