package stats

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrDivideByZero is returned when an average is requested over zero samples.
var ErrDivideByZero = errors.New("division by zero")

// Stats accumulates elapsed-time samples (seconds) for a single worker or run.
// It is not safe for concurrent use; each worker owns its own.
type Stats struct {
	Count int
	Total float64
}

func (s *Stats) Add(v float64) {
	s.Count++
	s.Total += v
}

// Average divides the running total by n. n is the configured sample count,
// not s.Count, so a zero request count fails instead of averaging nothing.
func (s *Stats) Average(n int) (float64, error) {
	return Mean(s.Total, n)
}

func Mean(sum float64, n int) (float64, error) {
	if n == 0 {
		return 0, ErrDivideByZero
	}
	return sum / float64(n), nil
}

// Round2 rounds v to two decimal places. Rounding happens on the exact
// binary value with ties going to even, so 0.125 becomes 0.12.
func Round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

// FormatSeconds renders v using the shortest representation that round-trips.
// Fixed-point output always keeps a fractional part (0 -> "0.0", 2 -> "2.0");
// values below 1e-4 or from 1e16 up switch to exponent form ("1e-05").
func FormatSeconds(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	if v != 0 {
		e := strconv.FormatFloat(v, 'e', -1, 64)
		exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
		if err == nil && (exp < -4 || exp >= 16) {
			return e
		}
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
