// Package normalize maps raw numeric measures onto [0,1] with min-max
// scaling.
//
// Degenerate ranges (max == min, a single value, or no finite values) map
// every output to 0, never NaN or 1. Missing and non-finite inputs are
// excluded from the range and emitted as 0.
//
// Min-max scaling is not idempotent in general: re-normalizing a subset
// changes its min and max. Only a sequence whose min is exactly 0 and max
// exactly 1 comes back unchanged.
package normalize

import (
	"math"
	"sort"

	"github.com/papapumpkin/pares/internal/diag"
)

const stage = "normalize"

// MinMax scales values to [0,1], preserving length and order. NaN and
// ±Inf count as missing. label names the measure in diagnostics.
func MinMax(label string, values []float64) diag.Outcome[[]float64] {
	out := make([]float64, len(values))
	var ds diag.List

	lo, hi := math.Inf(1), math.Inf(-1)
	missing := 0
	for _, v := range values {
		if !finite(v) {
			missing++
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if missing > 0 {
		ds.Add(stage, label, diag.KindMissingValue, "%d of %d values missing or non-numeric; scored 0", missing, len(values))
	}
	if missing == len(values) || hi == lo {
		if len(values) > 0 {
			ds.Add(stage, label, diag.KindDegenerateRange, "range is degenerate (%d finite values); all scores 0", len(values)-missing)
		}
		return diag.Ok(out, ds...)
	}

	span := hi - lo
	scale := func(v float64) float64 { return (v - lo) / span }
	if math.IsInf(span, 0) {
		// Halved operands keep the span finite when hi-lo exceeds MaxFloat64.
		half := hi/2 - lo/2
		scale = func(v float64) float64 { return (v/2 - lo/2) / half }
	}
	for i, v := range values {
		if !finite(v) {
			continue
		}
		out[i] = clamp01(scale(v))
	}
	return diag.Ok(out, ds...)
}

// ByGroup normalizes values separately within each group key; groups[i]
// is the key for values[i]. Output keeps input order.
func ByGroup(label string, groups []string, values []float64) diag.Outcome[[]float64] {
	out := make([]float64, len(values))
	var ds diag.List

	idx := make(map[string][]int)
	for i, g := range groups {
		idx[g] = append(idx[g], i)
	}
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		positions := idx[k]
		sub := make([]float64, len(positions))
		for j, p := range positions {
			sub[j] = values[p]
		}
		res := MinMax(label+"@"+k, sub)
		ds.Extend(res.Diagnostics)
		for j, p := range positions {
			out[p] = res.Value[j]
		}
	}
	return diag.Ok(out, ds...)
}

// Map normalizes a keyed set of values. Keys are processed in sorted order
// so diagnostics are deterministic.
func Map(label string, values map[string]float64) diag.Outcome[map[string]float64] {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vs := make([]float64, len(keys))
	for i, k := range keys {
		vs[i] = values[k]
	}
	res := MinMax(label, vs)
	out := make(map[string]float64, len(keys))
	for i, k := range keys {
		out[k] = res.Value[i]
	}
	return diag.Ok(out, res.Diagnostics...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
