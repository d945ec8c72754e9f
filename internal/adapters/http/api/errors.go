package api

import (
	"errors"
	"net/http"

	"github.com/okian/vibo/internal/adapters/repository"
	service "github.com/okian/vibo/internal/app"
	"github.com/okian/vibo/internal/domain/rating"
)

// ErrBadRequest marks malformed requests.
var ErrBadRequest = errors.New("bad request")

// Error ties a failure to the handler operation that produced it.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind wraps err as kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap attaches op to err, keeping its kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// classify maps an error kind to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, rating.ErrRecomputation):
		return http.StatusInternalServerError, "recomputation_failed"
	case errors.Is(err, rating.ErrInvalidCategory):
		return http.StatusBadRequest, "invalid_category"
	case errors.Is(err, rating.ErrInvalidMatch):
		return http.StatusBadRequest, "invalid_match"
	case errors.Is(err, rating.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "invalid_limit"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
