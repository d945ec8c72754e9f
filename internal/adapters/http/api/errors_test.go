package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/okian/vibo/internal/adapters/repository"
	service "github.com/okian/vibo/internal/app"
	"github.com/okian/vibo/internal/domain/rating"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("no such row")
	err := WrapKind("api.GetPlayer", repository.ErrNotFound, cause)

	if !errors.Is(err, repository.ErrNotFound) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause to unwrap from %v", err)
	}
	if got, want := err.Error(), "api.GetPlayer: not found: no such row"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := NewKind("api.HeadToHead", ErrBadRequest).Error(), "api.HeadToHead: bad request"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if Wrap("op", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: \"9na\"", rating.ErrInvalidCategory), http.StatusBadRequest, "invalid_category"},
		{fmt.Errorf("%w: sets", rating.ErrInvalidMatch), http.StatusBadRequest, "invalid_match"},
		{rating.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{repository.ErrInvalidLimit, http.StatusBadRequest, "invalid_limit"},
		{NewKind("op", ErrBadRequest), http.StatusBadRequest, "bad_request"},
		{Wrap("op", repository.ErrNotFound), http.StatusNotFound, "not_found"},
		{repository.ErrDuplicate, http.StatusConflict, "conflict"},
		{service.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
		{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
		// the abort policy wraps the failing match's own kind
		{&rating.RecomputeError{MatchID: "m", Err: rating.ErrInvalidMatch}, http.StatusInternalServerError, "recomputation_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
