package rice

import (
	"math/rand"
	"testing"

	"github.com/soundkit/flaccore/bitio"
)

func gaussianResiduals(n int, scale int64, seed int64) []int64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(r.NormFloat64() * float64(scale))
	}
	return out
}

func TestPlanAndEncodeDecodeRoundTrip(t *testing.T) {
	const blocksize = 64
	const predOrder = 2
	residual := gaussianResiduals(blocksize-predOrder, 50, 1)

	plan := PlanPartitions(residual, predOrder, blocksize, 0, 4, 2)
	if len(plan.Partitions) == 0 {
		t.Fatal("expected a non-empty plan")
	}

	// Encode and decode share one BitBuffer: the read side drains bytes
	// the write side just appended, the same way the verify tailer reads
	// back an encoder's own output without a separate I/O path.
	b := bitio.New(nil)
	if err := Encode(b, residual, predOrder, blocksize, plan); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := b.ZeroPadToByteBoundary(); err != nil {
		t.Fatal(err)
	}

	got, err := Decode(b, predOrder, blocksize)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(residual) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(residual))
	}
	for i := range residual {
		if got[i] != residual[i] {
			t.Errorf("residual %d: got %d, want %d", i, got[i], residual[i])
		}
	}
}

func TestEscapedPartitionRoundTrip(t *testing.T) {
	const blocksize = 16
	const predOrder = 0
	residual := []int64{1 << 20, -(1 << 20), 3, -3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	plan := PlanPartitions(residual, predOrder, blocksize, 0, 0, 0)
	if !plan.Partitions[0].Escaped {
		t.Fatal("expected the large-outlier partition to be escaped")
	}

	b := bitio.New(nil)
	if err := Encode(b, residual, predOrder, blocksize, plan); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := b.ZeroPadToByteBoundary(); err != nil {
		t.Fatal(err)
	}

	got, err := Decode(b, predOrder, blocksize)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range residual {
		if got[i] != residual[i] {
			t.Errorf("residual %d: got %d, want %d", i, got[i], residual[i])
		}
	}
}

func TestPlanPicksLowerCostOrderForCorrelatedResiduals(t *testing.T) {
	const blocksize = 32
	const predOrder = 0
	residual := make([]int64, blocksize)
	for i := range residual {
		if i < blocksize/2 {
			residual[i] = 1
		} else {
			residual[i] = 1000
		}
	}
	plan := PlanPartitions(residual, predOrder, blocksize, 0, 2, 0)
	if plan.Order == 0 {
		t.Error("expected partitioning to beat a single partition for a residual with two distinct regimes")
	}
}
