package frame

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/soundkit/flaccore/bitio"
	"github.com/soundkit/flaccore/fixed"
	"github.com/soundkit/flaccore/lpc"
	"github.com/soundkit/flaccore/rice"
)

// PredictorType identifies a subframe's encoding (spec §3).
type PredictorType int

const (
	PredConstant PredictorType = iota
	PredVerbatim
	PredFixed
	PredLPC
)

// Subframe is one channel's encoding within a frame (spec §3, §4.5).
type Subframe struct {
	Type       PredictorType
	Order      int // Fixed: 0-4. LPC: 1-32.
	WastedBits uint

	// LPC-only.
	QLPPrecision uint
	QLPShift     int32
	QLPCoeffs    []int32

	// Fixed/LPC: the Order warm-up samples, already right-shifted by
	// WastedBits.
	Warmup []int32
	// Fixed/LPC: residuals after predictor subtraction.
	Residual []int64
	// Constant: one value. Verbatim: blockSize values. Both already
	// right-shifted by WastedBits.
	Samples []int32

	// Partitioning chosen for Fixed/LPC residual coding.
	RicePlan rice.Plan

	ricePartMin, ricePartMax uint
	riceSearchDist           uint
}

func subframeTypeCode(sf Subframe) uint64 {
	switch sf.Type {
	case PredConstant:
		return 0x00
	case PredVerbatim:
		return 0x01
	case PredFixed:
		return 0x08 | uint64(sf.Order)
	case PredLPC:
		return 0x20 | uint64(sf.Order-1)
	}
	panic("frame: unhandled predictor type")
}

// EncodeSubframe writes sf's header and payload to b, at the given
// effective bits-per-sample (the channel's bps before WastedBits is
// subtracted back out — the header's wasted-bits field records
// WastedBits itself) and blockSize (needed to size Verbatim/Fixed/LPC
// payloads).
func EncodeSubframe(b *bitio.BitBuffer, sf Subframe, bps uint8, blockSize int) error {
	if err := b.WriteRawUint(0, 1); err != nil { // zero-bit padding
		return err
	}
	if err := b.WriteRawUint(subframeTypeCode(sf), 6); err != nil {
		return err
	}
	if sf.WastedBits > 0 {
		if err := b.WriteRawUint(1, 1); err != nil {
			return err
		}
		if err := b.WriteUnary(uint64(sf.WastedBits - 1)); err != nil {
			return err
		}
	} else {
		if err := b.WriteRawUint(0, 1); err != nil {
			return err
		}
	}

	effBps := uint(bps) - sf.WastedBits

	switch sf.Type {
	case PredConstant:
		return b.WriteRawInt(int64(sf.Samples[0]), effBps)

	case PredVerbatim:
		for _, s := range sf.Samples {
			if err := b.WriteRawInt(int64(s), effBps); err != nil {
				return err
			}
		}
		return nil

	case PredFixed:
		for _, w := range sf.Warmup {
			if err := b.WriteRawInt(int64(w), effBps); err != nil {
				return err
			}
		}
		return rice.Encode(b, sf.Residual, sf.Order, blockSize, sf.RicePlan)

	case PredLPC:
		for _, w := range sf.Warmup {
			if err := b.WriteRawInt(int64(w), effBps); err != nil {
				return err
			}
		}
		if err := b.WriteRawUint(uint64(sf.QLPPrecision-1), 4); err != nil {
			return err
		}
		if err := b.WriteRawInt(int64(sf.QLPShift), 5); err != nil {
			return err
		}
		for _, c := range sf.QLPCoeffs {
			if err := b.WriteRawInt(int64(c), sf.QLPPrecision); err != nil {
				return err
			}
		}
		return rice.Encode(b, sf.Residual, sf.Order, blockSize, sf.RicePlan)
	}
	return fmt.Errorf("frame.EncodeSubframe: unhandled predictor type %d", sf.Type)
}

// DecodeSubframe reads one subframe from b, given the frame's effective
// bits-per-sample for this channel and its block size.
func DecodeSubframe(b *bitio.BitBuffer, bps uint8, blockSize int) (Subframe, error) {
	var sf Subframe

	pad, err := b.ReadRawUint(1)
	if err != nil {
		return sf, err
	}
	if pad != 0 {
		return sf, errors.New("frame.DecodeSubframe: non-zero padding bit")
	}
	typeCode, err := b.ReadRawUint(6)
	if err != nil {
		return sf, err
	}

	switch {
	case typeCode == 0x00:
		sf.Type = PredConstant
	case typeCode == 0x01:
		sf.Type = PredVerbatim
	case typeCode&0x38 == 0x08 && typeCode&0x07 <= 4:
		sf.Type = PredFixed
		sf.Order = int(typeCode & 0x07)
	case typeCode&0x20 != 0:
		sf.Type = PredLPC
		sf.Order = int(typeCode&0x1F) + 1
	default:
		return sf, fmt.Errorf("frame.DecodeSubframe: reserved subframe type %06b", typeCode)
	}

	hasWasted, err := b.ReadRawUint(1)
	if err != nil {
		return sf, err
	}
	if hasWasted != 0 {
		k, err := b.ReadUnary()
		if err != nil {
			return sf, err
		}
		sf.WastedBits = uint(k) + 1
	}
	effBps := uint(bps) - sf.WastedBits

	switch sf.Type {
	case PredConstant:
		v, err := b.ReadRawInt(effBps)
		if err != nil {
			return sf, err
		}
		sf.Samples = []int32{int32(v)}

	case PredVerbatim:
		sf.Samples = make([]int32, blockSize)
		for i := range sf.Samples {
			v, err := b.ReadRawInt(effBps)
			if err != nil {
				return sf, err
			}
			sf.Samples[i] = int32(v)
		}

	case PredFixed:
		sf.Warmup = make([]int32, sf.Order)
		for i := range sf.Warmup {
			v, err := b.ReadRawInt(effBps)
			if err != nil {
				return sf, err
			}
			sf.Warmup[i] = int32(v)
		}
		sf.Residual, err = rice.Decode(b, sf.Order, blockSize)
		if err != nil {
			return sf, errors.WithMessage(err, "frame.DecodeSubframe: fixed residual")
		}

	case PredLPC:
		sf.Warmup = make([]int32, sf.Order)
		for i := range sf.Warmup {
			v, err := b.ReadRawInt(effBps)
			if err != nil {
				return sf, err
			}
			sf.Warmup[i] = int32(v)
		}
		precU, err := b.ReadRawUint(4)
		if err != nil {
			return sf, err
		}
		sf.QLPPrecision = uint(precU) + 1
		shift, err := b.ReadRawInt(5)
		if err != nil {
			return sf, err
		}
		sf.QLPShift = int32(shift)
		sf.QLPCoeffs = make([]int32, sf.Order)
		for i := range sf.QLPCoeffs {
			c, err := b.ReadRawInt(sf.QLPPrecision)
			if err != nil {
				return sf, err
			}
			sf.QLPCoeffs[i] = int32(c)
		}
		sf.Residual, err = rice.Decode(b, sf.Order, blockSize)
		if err != nil {
			return sf, errors.WithMessage(err, "frame.DecodeSubframe: lpc residual")
		}
	}

	return sf, nil
}

// Reconstruct restores the full, WastedBits-shifted-back sample vector
// for sf.
func Reconstruct(sf Subframe, blockSize int) []int32 {
	var out []int32
	switch sf.Type {
	case PredConstant:
		out = make([]int32, blockSize)
		for i := range out {
			out[i] = sf.Samples[0]
		}
	case PredVerbatim:
		out = sf.Samples
	case PredFixed:
		out = fixed.Restore(sf.Warmup, sf.Order, sf.Residual, nil)
	case PredLPC:
		out = lpc.Restore(sf.Warmup, sf.QLPCoeffs, sf.QLPShift, sf.Residual, nil)
	}
	if sf.WastedBits > 0 {
		for i, s := range out {
			out[i] = s << sf.WastedBits
		}
	}
	return out
}

// wastedBits returns the greatest w such that every sample is a
// multiple of 2^w (spec §4.5).
func wastedBits(samples []int32) uint {
	var orAll uint32
	for _, s := range samples {
		orAll |= uint32(s)
	}
	if orAll == 0 {
		return 0
	}
	return uint(bits.TrailingZeros32(orAll))
}

// ChooseSubframe selects the cheapest encoding for one channel's
// samples at the given bits-per-sample, searching fixed orders 0-4 and
// (when maxLPCOrder > 0) LPC orders up to maxLPCOrder, falling back to
// Verbatim as a cost ceiling (spec §4.5).
func ChooseSubframe(samples []int32, bps uint8, maxLPCOrder int, qlpPrecision uint, ricePartMin, ricePartMax, riceSearchDist uint) Subframe {
	w := wastedBits(samples)
	working := samples
	if w > 0 {
		working = make([]int32, len(samples))
		for i, s := range samples {
			working[i] = s >> w
		}
	}
	effBps := uint(bps) - w

	allEqual := true
	for _, s := range working[1:] {
		if s != working[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return Subframe{Type: PredConstant, WastedBits: w, Samples: []int32{working[0]}}
	}

	best := Subframe{Type: PredVerbatim, WastedBits: w, Samples: working}
	bestBits := uint64(effBps) * uint64(len(working))

	fixedOrder, _ := fixed.BestOrder(working, fixed.MaxOrder)
	if cand, bits, ok := tryFixed(working, fixedOrder, effBps, ricePartMin, ricePartMax, riceSearchDist); ok && bits < bestBits {
		cand.WastedBits = w
		best, bestBits = cand, bits
	}

	if maxLPCOrder > 0 {
		order := maxLPCOrder
		if order > len(working)-1 {
			order = len(working) - 1
		}
		if order > lpc.MaxOrder {
			order = lpc.MaxOrder
		}
		if order >= 1 {
			floatSamples := make([]float64, len(working))
			for i, s := range working {
				floatSamples[i] = float64(s)
			}
			autoc := lpc.Autocorrelation(floatSamples, order)
			coeffsByOrder, errs := lpc.LevinsonDurbin(autoc, order)
			bestOrder := lpc.EstimateBestOrder(errs, len(working), int(qlpPrecision)+int(effBps))
			if bestOrder >= 1 {
				prec := qlpPrecision
				if prec == 0 {
					prec = 14
				}
				if cand, bits, ok := tryLPC(working, coeffsByOrder[bestOrder-1], prec, effBps, ricePartMin, ricePartMax, riceSearchDist); ok && bits < bestBits {
					cand.WastedBits = w
					best, bestBits = cand, bits
				}
			}
		}
	}

	_ = bestBits
	return best
}

func tryFixed(samples []int32, order int, effBps uint, partMin, partMax, searchDist uint) (Subframe, uint64, bool) {
	residual := fixed.Residual(samples, order, nil)
	plan := rice.PlanPartitions(residual, order, len(samples), partMin, clampPartOrder(partMax, len(samples)), searchDist)
	headerBits := uint64(8 + 1 + 5) // type+wasted-bit flag (approx) + unary not counted precisely here
	bitsTotal := headerBits + uint64(order)*uint64(effBps) + plan.Bits
	return Subframe{
		Type:     PredFixed,
		Order:    order,
		Warmup:   append([]int32(nil), samples[:order]...),
		Residual: residual,
		RicePlan: plan,
	}, bitsTotal, true
}

func tryLPC(samples []int32, coeffs []float64, precision uint, effBps uint, partMin, partMax, searchDist uint) (Subframe, uint64, bool) {
	q, ok := lpc.Quantize(coeffs, precision)
	if !ok {
		return Subframe{}, 0, false
	}
	order := len(q.Coeffs)
	residual := computeLPCResidual(samples, q.Coeffs, q.Shift, effBps)
	plan := rice.PlanPartitions(residual, order, len(samples), partMin, clampPartOrder(partMax, len(samples)), searchDist)
	headerBits := uint64(8 + 4 + 5) // type+wasted-bit approx + precision + shift
	bitsTotal := headerBits + uint64(order)*uint64(effBps) + uint64(order)*uint64(q.Precision) + plan.Bits
	return Subframe{
		Type:         PredLPC,
		Order:        order,
		Warmup:       append([]int32(nil), samples[:order]...),
		QLPPrecision: q.Precision,
		QLPShift:     q.Shift,
		QLPCoeffs:    q.Coeffs,
		Residual:     residual,
		RicePlan:     plan,
	}, bitsTotal, true
}

// computeLPCResidual picks lpc.Residual32's 32-bit fast path once
// effBps+ceil(log2(blockSize))+1<=30 establishes the whole prediction
// sum fits safely in 32-bit arithmetic, falling back to the always-safe
// 64-bit lpc.Residual otherwise.
func computeLPCResidual(samples []int32, coeffs []int32, shift int32, effBps uint) []int64 {
	blockSize := len(samples)
	if blockSize > 0 {
		ceilLog2 := uint(bits.Len(uint(blockSize - 1)))
		if effBps+ceilLog2+1 <= 30 {
			r32 := lpc.Residual32(samples, coeffs, shift, nil)
			r64 := make([]int64, len(r32))
			for i, v := range r32 {
				r64[i] = int64(v)
			}
			return r64
		}
	}
	return lpc.Residual(samples, coeffs, shift, nil)
}

func clampPartOrder(maxOrder uint, blockSize int) uint {
	for maxOrder > 0 && blockSize%(1<<maxOrder) != 0 {
		maxOrder--
	}
	return maxOrder
}
