package encode

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Reconcile reorders encoded columns to the exact feature order recorded
// at training time and applies the recorded dtypes best-effort. Columns
// in the training order but absent from the batch become all-missing;
// extra encoded columns are dropped. A cast that cannot be performed
// leaves the column unchanged.
func Reconcile(enc *Encoded, featureOrder []string, dtypes map[string]string) *Encoded {
	out := &Encoded{Names: append([]string(nil), featureOrder...)}
	if enc.M == nil || len(featureOrder) == 0 {
		return out
	}

	index := make(map[string]int, len(enc.Names))
	for i, name := range enc.Names {
		index[name] = i
	}

	rows, _ := enc.M.Dims()
	m := mat.NewDense(rows, len(featureOrder), nil)
	for j, name := range featureOrder {
		src, present := index[name]
		integral := isIntegerDType(dtypes[name])
		for i := 0; i < rows; i++ {
			v := math.NaN()
			if present {
				v = enc.M.At(i, src)
			}
			if integral && !math.IsNaN(v) {
				v = math.Trunc(v)
			}
			m.Set(i, j, v)
		}
	}
	out.M = m
	return out
}

// isIntegerDType reports whether the recorded dtype calls for an integer
// cast. Unrecognized dtypes are left alone, matching the best-effort
// cast policy.
func isIntegerDType(dtype string) bool {
	switch dtype {
	case "int8", "int16", "int32", "int64", "uint8", "uint16", "uint32", "uint64":
		return true
	}
	return false
}
