package rating

import (
	"errors"
	"fmt"

	"github.com/okian/vibo/internal/domain/category"
)

// Sentinel error kinds for the engine. Callers match them with errors.Is.
var (
	ErrInvalidCategory = category.ErrInvalidCategory
	ErrInvalidMatch    = errors.New("invalid match")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRecomputation   = errors.New("recomputation failed")
)

// RecomputeError reports a historical match that could not be replayed.
type RecomputeError struct {
	MatchID string
	Err     error
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("%s: match %s: %v", ErrRecomputation, e.MatchID, e.Err)
}

// Unwrap exposes both ErrRecomputation and the underlying cause.
func (e *RecomputeError) Unwrap() []error {
	return []error{ErrRecomputation, e.Err}
}
