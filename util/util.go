// Package util contains misc internal utilities.
package util

import (
	"math"
	"sort"
)

// Limiter describes a software limit on an axis, [Min, Max]
type Limiter struct {
	Min float64 `json:"min" yaml:"Min"`
	Max float64 `json:"max" yaml:"Max"`
}

// Check returns true if min <= input <= max
func (l Limiter) Check(input float64) bool {
	return input >= l.Min && input <= l.Max
}

// Float32sToFloat64s widens a slice of float32
func Float32sToFloat64s(fs []float32) []float64 {
	out := make([]float64, len(fs))
	for i, f := range fs {
		out[i] = float64(f)
	}
	return out
}

// Linspace returns n evenly spaced values over [start, stop]
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// MeanStd returns the mean and population standard deviation of xs
func MeanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

// UniqueSortedFloats returns the distinct values of xs in ascending order
func UniqueSortedFloats(xs []float64) []float64 {
	cpy := append([]float64(nil), xs...)
	sort.Float64s(cpy)
	out := cpy[:0]
	for i, x := range cpy {
		if i == 0 || x != cpy[i-1] {
			out = append(out, x)
		}
	}
	return out
}
