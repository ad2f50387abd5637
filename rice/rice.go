// Package rice implements the core's partitioned Rice entropy coder: per
// partition parameter estimation and search, escape-coded raw partitions,
// and the encode/decode pair that reads and writes through a
// github.com/soundkit/flaccore/bitio.BitBuffer so partition bits count
// toward the enclosing frame's CRC-16 the same way every other frame
// field does.
//
// The partitioning scheme mirrors the bitstream's PARTITIONED_RICE
// layout: a 4-bit partition order followed by 2^order partitions, each
// with its own 4-bit Rice parameter or, on escape (parameter 0xF), a
// 5-bit raw bit width followed by raw samples. Only this 4-bit parameter
// form is implemented; the 5-bit parameter variant is not.
package rice

import (
	"math"
	"math/bits"

	"github.com/soundkit/flaccore/bitio"
)

// MaxParameter is the largest non-escape Rice parameter for the 4-bit
// parameter encoding (method 0); 0xF (15) is reserved as the escape
// marker.
const MaxParameter = 14

// escapeParam is the bit pattern, within a 4-bit parameter field, that
// marks an escaped (raw-binary) partition.
const escapeParam = 0xF

// Partition describes one partition's chosen coding: either a Rice
// parameter, or (if Escaped) a raw bit width.
type Partition struct {
	Param    uint
	Escaped  bool
	RawWidth uint
}

// Plan is the result of searching partition orders: the chosen order,
// one Partition per 2^Order partitions, and the total estimated bit
// cost (used by the subframe encoder to compare against Fixed/LPC/
// Verbatim alternatives).
type Plan struct {
	Order      uint
	Partitions []Partition
	Bits       uint64
}

// bestParameterForPartition returns the Rice parameter minimizing the
// exact encoded bit count for the given residuals, searching outward
// from the mean-absolute-value estimate by searchDist in each
// direction, plus the exact bit cost at that parameter.
func bestParameterForPartition(residuals []int64, searchDist uint) (param uint, costBits uint64) {
	estimate := estimateParameter(residuals)
	lo := int(estimate) - int(searchDist)
	if lo < 0 {
		lo = 0
	}
	hi := int(estimate) + int(searchDist)
	if hi > MaxParameter {
		hi = MaxParameter
	}

	bestParam := uint(lo)
	bestBits := uint64(math.MaxUint64)
	for p := lo; p <= hi; p++ {
		c := partitionCostBits(residuals, uint(p))
		if c < bestBits {
			bestBits = c
			bestParam = uint(p)
		}
	}
	return bestParam, bestBits
}

// estimateParameter returns floor(log2(mean(|residual|))) clamped to
// [0, MaxParameter], the standard cheap starting point for the Rice
// parameter search.
func estimateParameter(residuals []int64) uint {
	if len(residuals) == 0 {
		return 0
	}
	var sum uint64
	for _, r := range residuals {
		sum += zigzagAbs(r)
	}
	mean := float64(sum) / float64(len(residuals))
	if mean < 1 {
		return 0
	}
	p := uint(math.Log2(mean))
	if p > MaxParameter {
		p = MaxParameter
	}
	return p
}

func zigzagAbs(r int64) uint64 {
	if r < 0 {
		return uint64(-r)
	}
	return uint64(r)
}

// partitionCostBits returns the exact number of bits a partition's
// residuals would occupy under Rice parameter k: each residual costs
// k binary bits plus (folded>>k)+1 unary bits.
func partitionCostBits(residuals []int64, k uint) uint64 {
	var total uint64
	for _, r := range residuals {
		folded := foldSigned64(r)
		total += uint64(folded>>k) + 1 + uint64(k)
	}
	return total
}

func foldSigned64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// rawWidthFor returns the number of two's-complement bits needed to
// represent every value in residuals, the width used when a partition
// is escaped.
func rawWidthFor(residuals []int64) uint {
	var maxAbs int64
	for _, r := range residuals {
		a := r
		if a < 0 {
			a = -a - 1 // two's complement can hold one more negative value per width
		}
		if a > maxAbs {
			maxAbs = a
		}
	}
	w := uint(bits.Len64(uint64(maxAbs))) + 1
	if w < 2 {
		w = 2
	}
	if w > 31 {
		w = 31
	}
	return w
}

// PlanPartitions searches partition orders minPartOrder..maxPartOrder
// (skipping any order whose 2^order partitions do not divide blocksize
// evenly, or, above order 0, whose partition size is not larger than
// predOrder) and returns the cheapest partitioning, escaping
// any partition whose Rice cost exceeds its raw-binary cost.
func PlanPartitions(residual []int64, predOrder int, blocksize int, minPartOrder, maxPartOrder uint, searchDist uint) Plan {
	best := Plan{Bits: math.MaxUint64}
	for order := minPartOrder; order <= maxPartOrder; order++ {
		parts := uint(1) << order
		if blocksize%int(parts) != 0 {
			continue
		}
		if blocksize/int(parts) <= predOrder && order > 0 {
			continue
		}
		plan, ok := planAtOrder(residual, predOrder, blocksize, order, parts, searchDist)
		if !ok {
			continue
		}
		if plan.Bits < best.Bits {
			best = plan
		}
	}
	if best.Partitions == nil {
		// Fall back to order 0 (always valid: a single partition covering
		// every residual).
		best, _ = planAtOrder(residual, predOrder, blocksize, 0, 1, searchDist)
	}
	return best
}

func planAtOrder(residual []int64, predOrder, blocksize int, order, parts, searchDist uint) (Plan, bool) {
	partitions := make([]Partition, parts)
	var totalBits uint64 = 4 // partition-order field
	idx := 0
	for i := uint(0); i < parts; i++ {
		n := blocksize / int(parts)
		if i == 0 {
			n -= predOrder
		}
		if n < 0 || idx+n > len(residual) {
			return Plan{}, false
		}
		chunk := residual[idx : idx+n]
		idx += n

		param, riceBits := bestParameterForPartition(chunk, searchDist)
		rawWidth := rawWidthFor(chunk)
		rawBits := uint64(rawWidth) * uint64(n)

		paramFieldBits := uint64(4)
		escapeBits := uint64(4+5) + rawBits // 4-bit escape marker + 5-bit width, matching Encode
		if escapeBits < riceBits+paramFieldBits {
			partitions[i] = Partition{Escaped: true, RawWidth: rawWidth}
			totalBits += escapeBits
		} else {
			partitions[i] = Partition{Param: param}
			totalBits += paramFieldBits + riceBits
		}
	}
	return Plan{Order: order, Partitions: partitions, Bits: totalBits}, true
}

// Encode writes a full partitioned-Rice-coded residual vector (4-bit
// partition order, then each partition's parameter/escape field and
// samples) to b, following plan.
func Encode(b *bitio.BitBuffer, residual []int64, predOrder, blocksize int, plan Plan) error {
	if err := b.WriteRawUint(uint64(plan.Order), 4); err != nil {
		return err
	}
	parts := uint(1) << plan.Order
	idx := 0
	for i := uint(0); i < parts; i++ {
		n := blocksize / int(parts)
		if i == 0 {
			n -= predOrder
		}
		chunk := residual[idx : idx+n]
		idx += n

		part := plan.Partitions[i]
		if part.Escaped {
			if err := b.WriteRawUint(escapeParam, 4); err != nil {
				return err
			}
			if err := b.WriteRawUint(uint64(part.RawWidth), 5); err != nil {
				return err
			}
			for _, r := range chunk {
				if err := b.WriteRawInt(r, part.RawWidth); err != nil {
					return err
				}
			}
			continue
		}

		if err := b.WriteRawUint(uint64(part.Param), 4); err != nil {
			return err
		}
		for _, r := range chunk {
			if err := b.WriteRiceSigned(int32(r), part.Param); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode is the dual of Encode: it reads the partition order, then each
// partition's parameter/escape field and residuals, returning the full
// residual vector of length blocksize-predOrder.
func Decode(b *bitio.BitBuffer, predOrder, blocksize int) ([]int64, error) {
	partOrderU, err := b.ReadRawUint(4)
	if err != nil {
		return nil, err
	}
	partOrder := uint(partOrderU)
	parts := uint(1) << partOrder

	residual := make([]int64, 0, blocksize-predOrder)
	for i := uint(0); i < parts; i++ {
		n := blocksize / int(parts)
		if i == 0 {
			n -= predOrder
		}

		param, err := b.ReadRawUint(4)
		if err != nil {
			return nil, err
		}
		if param == escapeParam {
			widthU, err := b.ReadRawUint(5)
			if err != nil {
				return nil, err
			}
			width := uint(widthU)
			for j := 0; j < n; j++ {
				v, err := b.ReadRawInt(width)
				if err != nil {
					return nil, err
				}
				residual = append(residual, v)
			}
			continue
		}

		for j := 0; j < n; j++ {
			v, err := b.ReadRiceSigned(uint(param))
			if err != nil {
				return nil, err
			}
			residual = append(residual, int64(v))
		}
	}
	return residual, nil
}
