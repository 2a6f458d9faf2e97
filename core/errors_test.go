package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestMapError_AssignsStableCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		textCode string
		status   int
	}{
		{name: "capacity sentinel", err: fmt.Errorf("wrap: %w", ErrCapacityReached), textCode: ErrorFull, status: http.StatusConflict},
		{name: "duplicate sentinel", err: ErrParticipationExists, textCode: ErrorAlreadyJoined, status: http.StatusConflict},
		{name: "status conflict", err: ErrStatusConflict, textCode: ErrorInvalidTransition, status: http.StatusConflict},
		{name: "not configured", err: ErrProviderNotConfigured, textCode: ErrorProviderNotConfigured, status: http.StatusInternalServerError},
		{name: "forbidden", err: errForbidden("ini_1"), textCode: ErrorForbidden, status: http.StatusForbidden},
		{name: "bad input", err: errBadInput("post_id", "post id is required"), textCode: ErrorBadInput, status: http.StatusBadRequest},
		{name: "rate limited text", err: errors.New("provider rate limit hit"), textCode: ErrorProviderRateLimited, status: http.StatusTooManyRequests},
		{name: "unknown failure", err: errors.New("dial tcp 10.0.0.5:5432: connection refused"), textCode: ErrorInternal, status: http.StatusInternalServerError},
		{name: "foreign auth code", err: goerrors.New("token missing", goerrors.CategoryAuth).WithTextCode("UNAUTHORIZED"), textCode: ErrorUnauthorized, status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected %s, got %s", tc.textCode, mapped.TextCode)
			}
			if mapped.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, mapped.Code)
			}
		})
	}
	if MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestIsNotConfigured(t *testing.T) {
	if !IsNotConfigured(fmt.Errorf("send: %w", ErrProviderNotConfigured)) {
		t.Fatalf("expected wrapped sentinel to be detected")
	}
	if !IsNotConfigured(NewError("mailer disabled", goerrors.CategoryOperation, ErrorProviderNotConfigured)) {
		t.Fatalf("expected text code to be detected")
	}
	if IsNotConfigured(errors.New("boom")) {
		t.Fatalf("expected plain error not to match")
	}
}
