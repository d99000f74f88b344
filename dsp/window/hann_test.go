package window

import (
	"math"
	"testing"
)

func TestHannEndpoints(t *testing.T) {
	h := NewHann(8, true)
	coeffs := h.Coefficients()

	if len(coeffs) != 8 {
		t.Fatalf("Coefficients() length = %d, want 8", len(coeffs))
	}
	if coeffs[0] != 0 {
		t.Errorf("periodic Hann coeffs[0] = %g, want 0", coeffs[0])
	}
	if math.Abs(coeffs[4]-1) > 1e-15 {
		t.Errorf("periodic Hann coeffs[size/2] = %g, want 1", coeffs[4])
	}

	sym := NewHann(9, false)
	symCoeffs := sym.Coefficients()
	if math.Abs(symCoeffs[8]) > 1e-15 {
		t.Errorf("symmetric Hann last coefficient = %g, want 0", symCoeffs[8])
	}
}

func TestHannPeriodicOverlapAdd(t *testing.T) {
	// The periodic form sums to exactly one at half-window hops
	const size = 64
	h := NewHann(size, true)
	coeffs := h.Coefficients()

	for i := 0; i < size/2; i++ {
		sum := coeffs[i] + coeffs[i+size/2]
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("overlap-add at %d = %g, want 1", i, sum)
		}
	}
}

func TestHannApply(t *testing.T) {
	h := NewHann(4, true)

	signal := []float64{1, 1, 1, 1}
	windowed := h.Apply(signal)
	if windowed == nil {
		t.Fatal("Apply() returned nil for matching length")
	}
	for i, want := range h.Coefficients() {
		if math.Abs(windowed[i]-want) > 1e-15 {
			t.Errorf("windowed[%d] = %g, want %g", i, windowed[i], want)
		}
	}

	if got := h.Apply([]float64{1, 2}); got != nil {
		t.Errorf("Apply() with wrong length = %v, want nil", got)
	}

	if err := h.ApplyInPlace([]float64{1, 2, 3}); err == nil {
		t.Error("ApplyInPlace() with wrong length should error")
	}
}
