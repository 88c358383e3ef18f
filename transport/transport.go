package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Transport issues requests against the auth API. Paths are relative to the
// implementation's base URL.
type Transport interface {
	Post(ctx context.Context, path string, payload any, opts ...RequestOption) (*Response, error)
	Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error)
}

// Response is a successful (2xx) reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ErrorEnvelope is the body the API returns alongside an error status.
type ErrorEnvelope struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	ErrorID string `json:"errorId"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// StatusError reports a non-2xx reply. Envelope is best-effort: a body that is
// not an error envelope leaves it zero.
type StatusError struct {
	Method   string
	Path     string
	Status   int
	Envelope ErrorEnvelope
}

func (e *StatusError) Error() string {
	return "request failed with status code " + strconv.Itoa(e.Status)
}

// NetworkError reports a request that produced no HTTP response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

type requestOptions struct {
	bearer  string
	headers map[string]string
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithBearer sets an `Authorization: Bearer <token>` header.
func WithBearer(token string) RequestOption {
	return func(o *requestOptions) {
		o.bearer = token
	}
}

// WithHeader sets an arbitrary request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

func (ro requestOptions) apply(req *http.Request) {
	if ro.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+ro.bearer)
	}
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}
}

// ApplyOptions sets the headers opts describe on req. Custom transports use
// it to honour request options.
func ApplyOptions(req *http.Request, opts ...RequestOption) {
	collect(opts).apply(req)
}

func collect(opts []RequestOption) requestOptions {
	var ro requestOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&ro)
		}
	}
	return ro
}
