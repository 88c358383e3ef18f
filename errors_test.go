package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/transport"
)

func statusErr(status int, message string) error {
	return &transport.StatusError{
		Method:   http.MethodPost,
		Path:     "/auth/login",
		Status:   status,
		Envelope: transport.ErrorEnvelope{Status: status, Message: message},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    ErrorCode
		message string
		status  int
	}{
		{"bad request keeps server message", statusErr(400, "Email already in use"), CodeValidation, "Email already in use", 400},
		{"unauthorized keeps server message", statusErr(401, "Invalid credentials"), CodeUnauthorized, "Invalid credentials", 401},
		{"forbidden", statusErr(403, "Account locked"), CodeForbidden, "Account locked", 403},
		{"not found", statusErr(404, "No such user"), CodeNotFound, "No such user", 404},
		{"too many requests uses fixed message", statusErr(429, "slow down"), CodeRateLimited, rateLimitedMessage, 429},
		{"server error uses fixed message", statusErr(503, "db down"), CodeServerError, serverErrorMessage, 503},
		{"unlisted status is general", statusErr(409, "conflict"), CodeGeneral, "conflict", 409},
		{"status without envelope message falls back to error text", statusErr(401, ""), CodeUnauthorized, "request failed with status code 401", 401},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CodeTimeout, timeoutMessage, 0},
		{"local rate limit", rate.ErrRateLimited, CodeRateLimited, rateLimitedMessage, 429},
		{"expired session", ErrSessionExpired, CodeUnauthorized, sessionMessage, 0},
		{"missing refresh token", ErrNoRefreshToken, CodeUnauthorized, sessionMessage, 0},
		{"invalid request hides validator detail", fmt.Errorf("%w: schema: email:email", ErrInvalidRequest), CodeValidation, invalidRequestMessage, 0},
		{"lost credentials", ErrCredentialsLost, CodeGeneral, credentialsMessage, 0},
		{"decode failure hides json detail", fmt.Errorf("%w: json: cannot unmarshal number into Go value of type string", ErrInvalidResponse), CodeGeneral, GenericErrorMessage, 0},
		{"storage failure hides backend detail", fmt.Errorf("%w: redis unavailable: dial tcp 10.0.0.1:6379: connect: connection refused", ErrStorageUnavailable), CodeGeneral, GenericErrorMessage, 0},
		{"network failure hides dial detail", &transport.NetworkError{Method: http.MethodPost, Path: "/auth/login", Err: errors.New("dial tcp: lookup api.internal")}, CodeGeneral, networkErrorMessage, 0},
		{"network deadline is a timeout", &transport.NetworkError{Method: http.MethodGet, Path: "/auth/me", Err: context.DeadlineExceeded}, CodeTimeout, timeoutMessage, 0},
		{"plain error", errors.New("boom"), CodeGeneral, GenericErrorMessage, 0},
		{"empty error text", errors.New(""), CodeGeneral, GenericErrorMessage, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got == nil {
				t.Fatal("expected classified error")
			}
			if got.Code != tt.code {
				t.Fatalf("code: want %q, got %q", tt.code, got.Code)
			}
			if got.Message != tt.message {
				t.Fatalf("message: want %q, got %q", tt.message, got.Message)
			}
			if got.Status != tt.status {
				t.Fatalf("status: want %d, got %d", tt.status, got.Status)
			}
			if !errors.Is(got, tt.err) {
				t.Fatal("expected cause to be preserved")
			}
		})
	}
}

func TestClassifyKeepsLocalDetailOutOfMessage(t *testing.T) {
	cause := fmt.Errorf("%w: redis unavailable: dial tcp 10.0.0.1:6379", ErrStorageUnavailable)
	got := Classify(cause)
	if strings.Contains(got.Message, "10.0.0.1") || strings.Contains(got.Message, "redis") {
		t.Fatalf("message leaked backend detail: %q", got.Message)
	}
	if !strings.Contains(got.Cause.Error(), "10.0.0.1") {
		t.Fatal("expected detail to remain in Cause")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	first := Classify(statusErr(401, "Invalid credentials"))
	wrapped := fmt.Errorf("machine: %w", first)

	if got := Classify(wrapped); got != first {
		t.Fatalf("expected existing AuthError to be returned unchanged, got %#v", got)
	}
	if got := Classify(first); got != first {
		t.Fatal("expected Classify to return the same pointer")
	}
}

func TestAuthErrorClone(t *testing.T) {
	var nilErr *AuthError
	if nilErr.Clone() != nil {
		t.Fatal("expected nil clone of nil")
	}
	if nilErr.Error() != "" {
		t.Fatal("expected empty message for nil AuthError")
	}

	orig := Classify(statusErr(400, "bad"))
	cp := orig.Clone()
	cp.Message = "changed"
	if orig.Message != "bad" {
		t.Fatal("clone shares message storage")
	}
	if !errors.Is(cp, orig.Cause) {
		t.Fatal("clone lost cause")
	}
}

func TestErrorAliases(t *testing.T) {
	if !errors.Is(ErrRateLimited, rate.ErrRateLimited) {
		t.Fatal("ErrRateLimited must match rate.ErrRateLimited")
	}
	if Classify(fmt.Errorf("x: %w", ErrStorageUnavailable)).Code != CodeGeneral {
		t.Fatal("storage failures classify as general errors")
	}
}
