package sale

import "math/bits"

// MulDiv computes floor(x*y/d) with a full 128-bit intermediate product, so
// the result is exact whenever it fits in 64 bits. It never wraps: if the
// true quotient exceeds 64 bits the call fails with ErrMulDivOverflow.
func MulDiv(x, y, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(x, y)
	if hi == 0 {
		return lo / d, nil
	}
	if d <= hi {
		return 0, ErrMulDivOverflow
	}

	// Subtract the 128-bit remainder so [hi:lo] becomes an exact multiple
	// of d.
	rem := bits.Rem64(hi, lo, d)
	var borrow uint64
	lo, borrow = bits.Sub64(lo, rem, 0)
	hi, _ = bits.Sub64(hi, borrow, 0)

	// Factor shared powers of two out of the divisor and the product. A
	// shift of 64 is a defined no-op contribution in Go, so the odd-divisor
	// case needs no special branch.
	shift := uint(bits.TrailingZeros64(d))
	d >>= shift
	lo = (lo >> shift) | (hi << (64 - shift))

	// Invert the odd divisor modulo 2^64 by Newton iteration. The seed is
	// correct to four bits and each step doubles the correct bit count.
	inv := (3 * d) ^ 2
	inv *= 2 - d*inv // 8 bits
	inv *= 2 - d*inv // 16 bits
	inv *= 2 - d*inv // 32 bits
	inv *= 2 - d*inv // 64 bits

	// The product is an exact multiple of d, so multiplying its low word by
	// the inverse recovers the quotient modulo 2^64, which is the quotient
	// itself because it was bounded above by the d > hi check.
	return lo * inv, nil
}

// addChecked returns a+b, failing with ErrMulDivOverflow when the sum wraps.
// The running sale totals use it so the accumulators stay exact.
func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMulDivOverflow
	}
	return sum, nil
}
