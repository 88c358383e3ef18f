package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxBodyBytes = 1 << 20

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// ErrEncodePayload is returned when a request payload cannot be marshalled.
var ErrEncodePayload = errors.New("encode request payload")

// HTTPClient is the net/http implementation of [Transport].
type HTTPClient struct {
	baseURL   string
	client    *http.Client
	userAgent string
	timeout   time.Duration
	requestID func() string
}

// ClientOption configures an [HTTPClient].
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.client = c
		}
	}
}

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(d time.Duration) ClientOption {
	return func(h *HTTPClient) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(h *HTTPClient) {
		h.userAgent = ua
	}
}

// NewHTTPClient creates a client rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	h := &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{},
		userAgent: "authflow",
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Post sends payload as a JSON body.
func (h *HTTPClient) Post(ctx context.Context, path string, payload any, opts ...RequestOption) (*Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodePayload, err)
		}
		body = bytes.NewReader(data)
	}
	return h.do(ctx, http.MethodPost, path, body, collect(opts))
}

// Get issues a GET without a body.
func (h *HTTPClient) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return h.do(ctx, http.MethodGet, path, nil, collect(opts))
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, ro requestOptions) (*Response, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set(RequestIDHeader, h.requestID())
	ro.apply(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, Status: resp.StatusCode}
		_ = json.Unmarshal(data, &se.Envelope)
		return nil, se
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
	}, nil
}
