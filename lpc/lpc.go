// Package lpc implements the core's linear predictive coding path:
// autocorrelation, Levinson-Durbin recursion, coefficient quantization,
// and the quantized-coefficient residual/restoration pair.
//
// The algorithms follow the same shape libFLAC's lpc.c uses (and that
// pchchv/flac's getLPCResiduals exercises on the encode side): compute
// autocorrelation on a float copy of the signal (no window is applied), run
// Levinson-Durbin once to get coefficients and prediction error for
// every order up to max_order in a single pass, then quantize the
// order actually chosen.
package lpc

import "math"

// MaxOrder is the highest LPC predictor order the bitstream can express
// (stored as a 5-bit order-1 field).
const MaxOrder = 32

// Autocorrelation computes autoc[0..maxLag] over samples, where
// autoc[lag] = Σ samples[i]*samples[i+lag] for i in range.
func Autocorrelation(samples []float64, maxLag int) []float64 {
	autoc := make([]float64, maxLag+1)
	n := len(samples)
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += samples[i] * samples[i+lag]
		}
		autoc[lag] = sum
	}
	return autoc
}

// LevinsonDurbin runs the Levinson-Durbin recursion over autoc (as
// produced by Autocorrelation, length maxOrder+1) and returns, for every
// order 1..maxOrder, that order's LPC coefficients (coeffs[order-1] has
// length order) and its residual prediction error err[order-1]. Passing
// back every intermediate order lets the caller pick the best one
// without re-running the recursion.
func LevinsonDurbin(autoc []float64, maxOrder int) (coeffs [][]float64, err []float64) {
	coeffs = make([][]float64, maxOrder)
	err = make([]float64, maxOrder)

	lpc := make([]float64, maxOrder)
	e := autoc[0]
	for i := 0; i < maxOrder; i++ {
		var acc float64
		for j := 0; j < i; j++ {
			acc += lpc[j] * autoc[i-j]
		}
		var k float64
		if e != 0 {
			k = (autoc[i+1] - acc) / e
		}

		tmp := make([]float64, i)
		copy(tmp, lpc[:i])
		lpc[i] = k
		for j := 0; j < i; j++ {
			lpc[j] = tmp[j] - k*tmp[i-1-j]
		}

		e *= 1 - k*k
		if e < 0 {
			e = 0
		}

		order := make([]float64, i+1)
		copy(order, lpc[:i+1])
		coeffs[i] = order
		err[i] = e
	}
	return coeffs, err
}

// EstimateBestOrder picks the order minimizing an estimated total
// encoded size: blocksize*0.5*log2(err[order]) bits of residual (the
// per-sample term floored at 0) plus order*bpsOverhead bits for the
// coefficients, following the order-selection heuristic of the
// predictor search.
func EstimateBestOrder(err []float64, blocksize, bpsOverhead int) int {
	best := 0
	var bestBits float64 = math.MaxFloat64
	for i, e := range err {
		order := i + 1
		bitsPerSample := 0.0
		if e > 0 {
			bitsPerSample = 0.5 * math.Log2(e)
		}
		if bitsPerSample < 0 {
			bitsPerSample = 0
		}
		total := bitsPerSample*float64(blocksize) + float64(order*bpsOverhead)
		if total < bestBits {
			bestBits = total
			best = order
		}
	}
	return best
}

// QuantizedCoeffs holds a quantized LPC coefficient vector together with
// the shift it must be combined with during residual/restoration.
type QuantizedCoeffs struct {
	Coeffs    []int32
	Shift     int32
	Precision uint
}

// Quantize converts a floating-point coefficient vector into
// fixed-point coefficients of at most precision bits (signed), choosing
// the largest shift (at most 15) that keeps every |coefficient| within
// the precision's range. Quantization error from each rounding step is
// carried forward into the next coefficient, matching libFLAC's
// running-error approach and keeping the whole vector's reconstructed
// sum close to the unquantized prediction.
//
// Returns ok=false if no non-negative shift keeps the coefficients in
// range (signals the caller to retry at a lower order or precision).
func Quantize(coeffs []float64, precision uint) (q QuantizedCoeffs, ok bool) {
	if precision < 5 {
		precision = 5
	}
	cmax := 0.0
	for _, c := range coeffs {
		if a := math.Abs(c); a > cmax {
			cmax = a
		}
	}
	if cmax <= 0 {
		return QuantizedCoeffs{Coeffs: make([]int32, len(coeffs)), Shift: 0, Precision: precision}, true
	}

	maxShift := int32(precision) - 1 - int32(math.Ceil(math.Log2(cmax)))
	if maxShift > 15 {
		maxShift = 15
	}
	if maxShift < 0 {
		return QuantizedCoeffs{}, false
	}

	limit := int64(1) << (precision - 1)
	qc := make([]int32, len(coeffs))
	var carry float64
	for i, c := range coeffs {
		scaled := c*float64(int64(1)<<uint(maxShift)) + carry
		rounded := math.Round(scaled)
		if rounded >= float64(limit) {
			rounded = float64(limit - 1)
		} else if rounded < -float64(limit) {
			rounded = -float64(limit)
		}
		carry = scaled - rounded
		qc[i] = int32(rounded)
	}

	return QuantizedCoeffs{Coeffs: qc, Shift: maxShift, Precision: precision}, true
}

// Residual computes r[i] = x[i] - (Σ q[k]*x[i-1-k]) >> shift for i in
// [order, len(samples)), appending to dst. It always accumulates the
// prediction sum in 64-bit regardless of sample width; callers that
// have already established the narrower 32-bit-safe bound (per
// bps+ceil(log2(blocksize))+1 <= 30) may prefer Residual32 instead.
func Residual(samples []int32, coeffs []int32, shift int32, dst []int64) []int64 {
	order := len(coeffs)
	dst = dst[:0]
	for i := order; i < len(samples); i++ {
		var acc int64
		for j, c := range coeffs {
			acc += int64(c) * int64(samples[i-1-j])
		}
		pred := acc >> uint(shift)
		dst = append(dst, int64(samples[i])-pred)
	}
	return dst
}

// Residual32 is the narrow-path dual of Residual, used when the caller
// has established bps+ceil(log2(blocksize))+1 <= 30 so the whole
// prediction sum is safe in 32-bit arithmetic.
func Residual32(samples []int32, coeffs []int32, shift int32, dst []int32) []int32 {
	order := len(coeffs)
	dst = dst[:0]
	for i := order; i < len(samples); i++ {
		var acc int32
		for j, c := range coeffs {
			acc += c * samples[i-1-j]
		}
		pred := acc >> uint(shift)
		dst = append(dst, samples[i]-pred)
	}
	return dst
}

// Restore is the dual of Residual: given the order warm-up samples, the
// quantized coefficients, shift, and residual stream, it reconstructs
// the full sample vector of length order+len(residual). Shift direction
// and rounding match Residual exactly, since both use Go's arithmetic
// right shift on a two's-complement accumulator.
func Restore(warmup []int32, coeffs []int32, shift int32, residual []int64, dst []int32) []int32 {
	order := len(coeffs)
	n := order + len(residual)
	if cap(dst) < n {
		dst = make([]int32, 0, n)
	}
	dst = append(dst[:0], warmup[:order]...)
	dst = dst[:n]
	for i, r := range residual {
		j := order + i
		var acc int64
		for k, c := range coeffs {
			acc += int64(c) * int64(dst[j-1-k])
		}
		pred := acc >> uint(shift)
		dst[j] = int32(r + pred)
	}
	return dst
}
