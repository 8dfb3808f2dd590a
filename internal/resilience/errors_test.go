package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("rate limited"), 429)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
}

func TestIsTransient_PlainError(t *testing.T) {
	if IsTransient(errors.New("not found")) {
		t.Error("plain error should not be transient")
	}
}

func TestIsTransient_NetworkPatterns(t *testing.T) {
	for _, msg := range []string{
		"read tcp: connection reset by peer",
		"dial tcp: i/o timeout",
		"lookup api.example.com: no such host",
	} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 413} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 503)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap chain to reach inner error")
	}
	if te.Error() != "inner" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
