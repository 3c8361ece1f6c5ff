package scraper

import (
	"math"
	"testing"
)

func accumulate(values ...float64) welford {
	var w welford
	for _, v := range values {
		w.add(v)
	}
	return w
}

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestWelford_ConstantValues(t *testing.T) {
	w := accumulate(10, 10, 10, 10)
	if got := w.variance(); got != 0 {
		t.Errorf("variance of constant values = %v, want 0", got)
	}
	if w.mean != 10 {
		t.Errorf("mean = %v, want 10", w.mean)
	}
}

func TestWelford_PopulationVariance(t *testing.T) {
	// Population convention: divide by n, so [1,2,3,4] gives 1.25.
	w := accumulate(1, 2, 3, 4)
	if got := w.variance(); !almostEqual(got, 1.25, 1e-12) {
		t.Errorf("variance = %v, want 1.25", got)
	}
	if !almostEqual(w.mean, 2.5, 1e-12) {
		t.Errorf("mean = %v, want 2.5", w.mean)
	}
}

func TestWelford_Empty(t *testing.T) {
	var w welford
	if got := w.variance(); got != 0 {
		t.Errorf("variance with no observations = %v, want 0", got)
	}
}

func TestWelford_SingleValue(t *testing.T) {
	w := accumulate(0.042)
	if got := w.variance(); got != 0 {
		t.Errorf("variance of one observation = %v, want 0", got)
	}
}

func TestWelford_StableUnderLargeOffset(t *testing.T) {
	// Naive sum-of-squares loses the small spread against the 1e9 offset;
	// the streaming update must not.
	const offset = 1e9
	w := accumulate(offset+1, offset+2, offset+3, offset+4)
	if got := w.variance(); !almostEqual(got, 1.25, 1e-6) {
		t.Errorf("variance under offset = %v, want 1.25", got)
	}
}
