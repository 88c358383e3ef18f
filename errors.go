package authflow

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/transport"
)

var (
	// ErrNoSession is returned when an operation needs a stored session and none exists.
	ErrNoSession = errors.New("no session")
	// ErrNoRefreshToken is returned when a refresh is attempted without a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrSessionExpired is returned when the access token is expired and cannot be refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrCredentialsLost is returned when a flow reaches a login step without its pending credentials.
	ErrCredentialsLost = errors.New("pending credentials lost")
	// ErrInvalidResponse is returned when a server reply does not match its expected shape.
	ErrInvalidResponse = errors.New("invalid server response")
	// ErrInvalidRequest is returned when a request payload fails local validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRateLimited is returned when the local limiter denies an attempt.
	ErrRateLimited = rate.ErrRateLimited
	// ErrStorageUnavailable is returned when the session storage backend fails.
	ErrStorageUnavailable = session.ErrStorageUnavailable

	// ErrMachineStarted is returned by Start and StartAt on a running machine.
	ErrMachineStarted = errors.New("machine already started")
	// ErrMachineStopped is returned by operations on a stopped machine.
	ErrMachineStopped = errors.New("machine stopped")
	// ErrUnknownState is returned by StartAt for a state outside the machine.
	ErrUnknownState = errors.New("unknown machine state")
)

// ErrorCode is the classified failure class shown to callers.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "validation"
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeForbidden    ErrorCode = "forbidden"
	CodeNotFound     ErrorCode = "not_found"
	CodeRateLimited  ErrorCode = "rate_limited"
	CodeServerError  ErrorCode = "server_error"
	CodeTimeout      ErrorCode = "timeout"
	CodeGeneral      ErrorCode = "general_error"
)

const (
	// GenericErrorMessage is the last-resort user-facing message.
	GenericErrorMessage = "An unexpected error occurred"

	rateLimitedMessage    = "Too many requests. Please try again later."
	serverErrorMessage    = "The server encountered an error. Please try again later."
	timeoutMessage        = "The request timed out. Please try again."
	networkErrorMessage   = "Network error. Please check your connection and try again."
	sessionMessage        = "Your session has expired. Please log in again."
	invalidRequestMessage = "Please check the details you entered."
	credentialsMessage    = "Your details were lost. Please start again."
)

// AuthError is a classified failure. Message is safe to display; Cause keeps
// the underlying error for diagnostics.
type AuthError struct {
	Code    ErrorCode
	Message string
	Status  int
	Cause   error
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Clone returns a copy sharing Cause.
func (e *AuthError) Clone() *AuthError {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// Classify maps err into an *AuthError. It returns nil for nil and returns
// an existing *AuthError unchanged.
func Classify(err error) *AuthError {
	if err == nil {
		return nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AuthError{Code: CodeTimeout, Message: timeoutMessage, Cause: err}
	case errors.Is(err, rate.ErrRateLimited):
		return &AuthError{Code: CodeRateLimited, Message: rateLimitedMessage, Status: http.StatusTooManyRequests, Cause: err}
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNoRefreshToken), errors.Is(err, ErrNoSession):
		return &AuthError{Code: CodeUnauthorized, Message: sessionMessage, Cause: err}
	case errors.Is(err, ErrInvalidRequest):
		return &AuthError{Code: CodeValidation, Message: invalidRequestMessage, Cause: err}
	case errors.Is(err, ErrCredentialsLost):
		return &AuthError{Code: CodeGeneral, Message: credentialsMessage, Cause: err}
	}

	var se *transport.StatusError
	if errors.As(err, &se) {
		return classifyStatus(se, err)
	}
	var ne *transport.NetworkError
	if errors.As(err, &ne) {
		return &AuthError{Code: CodeGeneral, Message: networkErrorMessage, Cause: err}
	}

	// Anything else is local detail (decode, storage) and stays in Cause.
	return &AuthError{Code: CodeGeneral, Message: GenericErrorMessage, Cause: err}
}

func classifyStatus(se *transport.StatusError, err error) *AuthError {
	out := &AuthError{Status: se.Status, Cause: err}
	serverMessage := se.Envelope.Message

	switch {
	case se.Status == http.StatusBadRequest:
		out.Code = CodeValidation
	case se.Status == http.StatusUnauthorized:
		out.Code = CodeUnauthorized
	case se.Status == http.StatusForbidden:
		out.Code = CodeForbidden
	case se.Status == http.StatusNotFound:
		out.Code = CodeNotFound
	case se.Status == http.StatusTooManyRequests:
		out.Code = CodeRateLimited
		out.Message = rateLimitedMessage
		return out
	case se.Status >= 500 && se.Status <= 599:
		out.Code = CodeServerError
		out.Message = serverErrorMessage
		return out
	default:
		out.Code = CodeGeneral
	}

	out.Message = pickMessage(serverMessage, se)
	return out
}

// pickMessage prefers the server's message, then the transport's.
func pickMessage(server string, se *transport.StatusError) string {
	if server != "" {
		return server
	}
	if msg := se.Error(); msg != "" {
		return msg
	}
	return GenericErrorMessage
}
