package mathx

import (
	"errors"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// ErrEmpty is returned by Median for a zero-length window.
var ErrEmpty = errors.New("mathx: empty sample window")

// Number is any integer or float sample type.
type Number interface {
	constraints.Integer | constraints.Float
}

// Median returns the statistical median of s.
//
// s is sorted ascending in place; callers that need the original order must
// pass a copy. For odd n the middle element is returned. For even n the two
// central elements s[n/2-1] and s[n/2] are averaged in T; for integer types
// the mean truncates toward zero, as (a+b)/2 does when it cannot overflow.
func Median[T Number](s []T) (T, error) {
	n := len(s)
	if n == 0 {
		var zero T
		return zero, ErrEmpty
	}
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2], nil
	}
	lo, hi := s[n/2-1], s[n/2]
	switch {
	case lo < 0 && hi >= 0:
		// Opposite signs: the sum is in range.
		return (lo + hi) / 2, nil
	case hi <= 0:
		// Both non-positive: step down from hi so the result rounds toward zero.
		return hi + (lo-hi)/2, nil
	default:
		return lo + (hi-lo)/2, nil
	}
}
