// Package fixed implements the core's fixed polynomial predictor (orders
// 0 through 4): finite-difference residual computation, order estimation
// by mean absolute residual, and restoration of the original signal from
// warm-up samples and residuals.
//
// The fixed predictors are the same small set of difference operators
// libFLAC hard-codes; order k predicts sample i as the k-th finite
// difference of the preceding k samples, so encoding reduces to repeatedly
// differencing the signal and decoding to repeatedly re-integrating it.
package fixed

import "math"

// MaxOrder is the highest supported fixed predictor order.
const MaxOrder = 4

// Residual computes the order-th finite difference of samples, writing
// len(samples)-order values into dst (reusing its storage when the
// capacity allows, growing it otherwise) and returning the slice. Orders 0 through 4 correspond directly to the
// bitstream's SUBFRAME_FIXED orders.
func Residual(samples []int32, order int, dst []int64) []int64 {
	n := len(samples)
	dst = dst[:0]
	switch order {
	case 0:
		for _, s := range samples {
			dst = append(dst, int64(s))
		}
	case 1:
		for i := 1; i < n; i++ {
			dst = append(dst, int64(samples[i])-int64(samples[i-1]))
		}
	case 2:
		for i := 2; i < n; i++ {
			dst = append(dst, int64(samples[i])-2*int64(samples[i-1])+int64(samples[i-2]))
		}
	case 3:
		for i := 3; i < n; i++ {
			dst = append(dst, int64(samples[i])-3*int64(samples[i-1])+3*int64(samples[i-2])-int64(samples[i-3]))
		}
	case 4:
		for i := 4; i < n; i++ {
			dst = append(dst, int64(samples[i])-4*int64(samples[i-1])+6*int64(samples[i-2])-4*int64(samples[i-3])+int64(samples[i-4]))
		}
	}
	return dst
}

// Restore is the dual of Residual: given the order warm-up samples (the
// subframe's first `order` raw samples) and the residual stream, it
// reconstructs the full sample vector of length order+len(residual).
func Restore(warmup []int32, order int, residual []int64, dst []int32) []int32 {
	n := order + len(residual)
	if cap(dst) < n {
		dst = make([]int32, 0, n)
	}
	dst = append(dst[:0], warmup[:order]...)
	dst = dst[:n]
	switch order {
	case 0:
		for i, r := range residual {
			dst[i] = int32(r)
		}
	case 1:
		for i, r := range residual {
			j := i + 1
			dst[j] = int32(r + int64(dst[j-1]))
		}
	case 2:
		for i, r := range residual {
			j := i + 2
			dst[j] = int32(r + 2*int64(dst[j-1]) - int64(dst[j-2]))
		}
	case 3:
		for i, r := range residual {
			j := i + 3
			dst[j] = int32(r + 3*int64(dst[j-1]) - 3*int64(dst[j-2]) + int64(dst[j-3]))
		}
	case 4:
		for i, r := range residual {
			j := i + 4
			dst[j] = int32(r + 4*int64(dst[j-1]) - 6*int64(dst[j-2]) + 4*int64(dst[j-3]) - int64(dst[j-4]))
		}
	}
	return dst
}

// EstimateBitsPerSample returns log2(mean(|residual|)), the order's
// estimated bits-per-residual-sample, used to pick among orders 0..4
// without running the full entropy coder over each candidate.
func EstimateBitsPerSample(residual []int64) float64 {
	if len(residual) == 0 {
		return 0
	}
	var sum uint64
	for _, r := range residual {
		if r < 0 {
			r = -r
		}
		sum += uint64(r)
	}
	mean := float64(sum) / float64(len(residual))
	if mean < 1 {
		return 0
	}
	return math.Log2(mean)
}

// BestOrder evaluates orders 0..maxOrder (maxOrder<=MaxOrder) on samples,
// scoring each by EstimateBitsPerSample scaled by the number of residuals
// it produces (fewer warm-up samples discarded means more residuals to
// pay for, but also a fairer per-order size estimate), and returns the
// order with the lowest estimated encoded size along with that order's
// residual.
func BestOrder(samples []int32, maxOrder int) (order int, scratch []int64) {
	if maxOrder > MaxOrder {
		maxOrder = MaxOrder
	}
	if maxOrder > len(samples) {
		maxOrder = len(samples)
	}
	best := -1
	var bestBits float64
	var bestScratch []int64
	for o := 0; o <= maxOrder; o++ {
		r := Residual(samples, o, nil)
		bits := EstimateBitsPerSample(r) * float64(len(r))
		if best == -1 || bits < bestBits {
			best = o
			bestBits = bits
			bestScratch = r
		}
	}
	return best, bestScratch
}
