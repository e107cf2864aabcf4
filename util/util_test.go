package util_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/nasa-jpl/nanosquared/util"
)

func ExampleLinspace() {
	fmt.Println(util.Linspace(-1, 1, 5))
	// Output: [-1 -0.5 0 0.5 1]
}

func ExampleUniqueSortedFloats() {
	fmt.Println(util.UniqueSortedFloats([]float64{3, 1, 2, 3, 1}))
	// Output: [1 2 3]
}

func ExampleMeanStd() {
	mean, std := util.MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	fmt.Println(mean, std)
	// Output: 5 2
}

func TestLimiterCheck(t *testing.T) {
	l := util.Limiter{Min: -5, Max: 5}
	if !l.Check(5) || l.Check(5.01) || !l.Check(-5) {
		t.Error("limiter bounds should be inclusive")
	}
}

func TestMeanStdEmpty(t *testing.T) {
	mean, std := util.MeanStd(nil)
	if !math.IsNaN(mean) || !math.IsNaN(std) {
		t.Errorf("expected NaN for an empty slice, got %f %f", mean, std)
	}
}
