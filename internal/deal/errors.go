package deal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDeal matches every ValidationError.
var ErrInvalidDeal = errors.New("invalid deal")

// ValidationError lists every problem found while validating a deal or
// deal document, so callers can show them all at once.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidDeal, strings.Join(e.Problems, "; "))
}

// Is lets errors.Is(err, ErrInvalidDeal) match.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDeal }

// Add records a problem.
func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Err returns nil when no problem was recorded.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

func checkRange(v *ValidationError, field string, val, lo, hi float64) {
	if val < lo || val > hi {
		v.Add("%s %.2f outside [%g, %g]", field, val, lo, hi)
	}
}
