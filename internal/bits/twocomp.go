package bits

// SignExtend interprets x as an n-bit two's-complement integer and sign
// extends it to a 64-bit signed value. Used for warm-up samples, raw
// residuals, and quantized LPC coefficients, all of which arrive from the
// bitstream as an n-bit field with no sign extension of their own.
//
//	0b011 (n=3) -> 3
//	0b010 (n=3) -> 2
//	0b111 (n=3) -> -1
//	0b100 (n=3) -> -4
func SignExtend(x uint64, n uint) int64 {
	signBitMask := uint64(1) << (n - 1)
	if x&signBitMask == 0 {
		// positive.
		return int64(x)
	}
	// negative.
	v := int64(x ^ signBitMask) // clear sign bit.
	v -= int64(signBitMask)
	return v
}
