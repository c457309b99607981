package math

// DivRoundUp divides `a` by `b`, rounding any remainder up to the next whole
// quotient. It's used for sizing regions that must hold a fractional block.
func DivRoundUp[T Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
