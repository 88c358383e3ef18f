package policy

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPolicy decides local token usability.
type TokenPolicy struct {
	now  func() time.Time
	skew time.Duration
}

// TokenOption configures a [TokenPolicy].
type TokenOption func(*TokenPolicy)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenPolicy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithSkew treats tokens expiring within d of now as already expired.
func WithSkew(d time.Duration) TokenOption {
	return func(p *TokenPolicy) {
		if d > 0 {
			p.skew = d
		}
	}
}

// NewTokenPolicy builds a TokenPolicy.
func NewTokenPolicy(opts ...TokenOption) *TokenPolicy {
	p := &TokenPolicy{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var segmentParser = jwt.NewParser()

// IsExpired reports whether token must not be used without a server round trip.
func (p *TokenPolicy) IsExpired(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return true
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return true
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return exp.Time.Before(p.now().Add(p.skew))
}

var defaultTokenPolicy = NewTokenPolicy()

// IsExpired applies a default [TokenPolicy] (wall clock, no skew).
func IsExpired(token string) bool {
	return defaultTokenPolicy.IsExpired(token)
}
