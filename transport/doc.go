// Package transport is the HTTP boundary of authflow: JSON requests against the
// auth API, with failures split into [StatusError] (the server answered with a
// non-2xx status) and [NetworkError] (no usable response).
//
// Retries, response-schema validation and error classification happen above
// this package.
package transport
