package fixed

import "testing"

func TestResidualRestoreRoundTrip(t *testing.T) {
	samples := []int32{10, 12, 11, 15, 20, 18, 17, 16, 30, -5, -10, 0}
	for order := 0; order <= MaxOrder; order++ {
		res := Residual(samples, order, nil)
		got := Restore(samples, order, res, nil)
		if len(got) != len(samples) {
			t.Fatalf("order %d: length mismatch: got %d, want %d", order, len(got), len(samples))
		}
		for i, s := range samples {
			if got[i] != s {
				t.Errorf("order %d: sample %d: got %d, want %d", order, i, got[i], s)
			}
		}
	}
}

func TestBestOrderPrefersLowerEntropyForLinearRamp(t *testing.T) {
	samples := make([]int32, 64)
	for i := range samples {
		samples[i] = int32(i) * 3
	}
	order, _ := BestOrder(samples, MaxOrder)
	if order != 2 {
		t.Errorf("linear ramp: got order %d, want 2", order)
	}
}

func TestBestOrderConstant(t *testing.T) {
	samples := make([]int32, 32)
	for i := range samples {
		samples[i] = 42
	}
	order, _ := BestOrder(samples, MaxOrder)
	if order != 1 {
		t.Errorf("constant signal: got order %d, want 1", order)
	}
}
