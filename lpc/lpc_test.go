package lpc

import (
	"math"
	"testing"
)

func sineSamples(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(1000 * math.Sin(float64(i)*0.2))
	}
	return out
}

func TestAutocorrelationSymmetryAtLagZero(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5}
	autoc := Autocorrelation(samples, 4)
	var want float64
	for _, s := range samples {
		want += s * s
	}
	if autoc[0] != want {
		t.Errorf("autoc[0] = %v, want %v", autoc[0], want)
	}
}

func TestLevinsonDurbinErrorIsNonIncreasing(t *testing.T) {
	samples := make([]float64, 256)
	for i := range samples {
		s := sineSamples(256)[i]
		samples[i] = float64(s)
	}
	autoc := Autocorrelation(samples, 8)
	_, errs := LevinsonDurbin(autoc, 8)
	for i := 1; i < len(errs); i++ {
		if errs[i] > errs[i-1]+1e-6 {
			t.Errorf("error increased from order %d to %d: %v -> %v", i, i+1, errs[i-1], errs[i])
		}
	}
}

func TestQuantizeRespectsPrecisionBound(t *testing.T) {
	coeffs := []float64{1.9, -0.8, 0.3, -0.05}
	q, ok := Quantize(coeffs, 12)
	if !ok {
		t.Fatal("expected successful quantization")
	}
	limit := int32(1) << 11
	for i, c := range q.Coeffs {
		if c >= limit || c < -limit {
			t.Errorf("coeff %d = %d out of %d-bit range", i, c, q.Precision)
		}
	}
}

func TestResidualRestoreRoundTrip(t *testing.T) {
	samples := sineSamples(64)
	floatSamples := make([]float64, len(samples))
	for i, s := range samples {
		floatSamples[i] = float64(s)
	}

	const order = 4
	autoc := Autocorrelation(floatSamples, order)
	coeffsByOrder, _ := LevinsonDurbin(autoc, order)
	q, ok := Quantize(coeffsByOrder[order-1], 12)
	if !ok {
		t.Fatal("quantization failed")
	}

	res := Residual(samples, q.Coeffs, q.Shift, nil)
	got := Restore(samples, q.Coeffs, q.Shift, res, nil)
	if len(got) != len(samples) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(samples))
	}
	for i, s := range samples {
		if got[i] != s {
			t.Errorf("sample %d: got %d, want %d", i, got[i], s)
		}
	}
}

func TestResidual32MatchesResidual(t *testing.T) {
	samples := sineSamples(32)
	coeffs := []int32{2, -1}
	const shift = 1

	wide := Residual(samples, coeffs, shift, nil)
	narrow := Residual32(samples, coeffs, shift, nil)
	if len(wide) != len(narrow) {
		t.Fatalf("length mismatch: %d vs %d", len(wide), len(narrow))
	}
	for i := range wide {
		if wide[i] != int64(narrow[i]) {
			t.Errorf("sample %d: wide=%d narrow=%d", i, wide[i], narrow[i])
		}
	}
}

func TestQuantizeRejectsNegativeShift(t *testing.T) {
	// A coefficient far larger than 2^(precision-1) forces ceil(log2(cmax))
	// above precision-1, which must report failure rather than clamp.
	_, ok := Quantize([]float64{1 << 20}, 5)
	if ok {
		t.Error("expected quantization to fail for an oversized coefficient at low precision")
	}
}
