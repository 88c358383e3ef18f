package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/fifo"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/internal/schema"
	"github.com/MrEthical07/authflow/policy"
	"github.com/MrEthical07/authflow/session"
	"github.com/MrEthical07/authflow/transport"
)

const (
	pathLogin                 = "/auth/login"
	pathRegister              = "/auth/register"
	pathOTPRequest            = "/auth/otp/request"
	pathOTPVerify             = "/auth/otp/verify"
	pathRegisterComplete      = "/auth/register/complete"
	pathPasswordResetComplete = "/auth/password/reset/complete"
	pathRefresh               = "/auth/refresh-token"
	pathMe                    = "/auth/me"
)

// RateLimiter admits or rejects attempts per key. [rate.Memory] and
// [rate.Redis] satisfy it.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Gateway is the façade over the remote auth API. Apart from the refresh
// mutex it holds no per-call state. Every returned error is an *AuthError.
type Gateway struct {
	transport transport.Transport
	store     *session.Store
	limiter   RateLimiter
	retry     policy.Retry
	tokens    *policy.TokenPolicy
	metrics   *Metrics
	audit     *internalaudit.Dispatcher
	logger    *log.Logger
	now       func() time.Time
	newID     func() string

	refreshMu  fifo.Mutex
	refreshGen atomic.Uint64
	logoutGen  atomic.Uint64
	// lastRefreshed is the refresh token consumed by the latest successful
	// refresh. Guarded by refreshMu.
	lastRefreshed string
}

type operation struct {
	name      string
	email     string
	requestID string
}

func (g *Gateway) begin(name, email string) *operation {
	return &operation{
		name:      name,
		email:     normalizeEmail(email),
		requestID: g.newID(),
	}
}

func (g *Gateway) warn(format string, args ...any) {
	if g.logger == nil {
		return
	}
	g.logger.Printf("authflow: "+format, args...)
}

type envelope[T any] struct {
	Status  int    `json:"status" validate:"gt=0"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type loginData struct {
	AccessToken  string               `json:"accessToken" validate:"required,max=8192"`
	RefreshToken string               `json:"refreshToken"`
	User         *session.UserProfile `json:"user,omitempty" validate:"-"`
}

type verifyOTPData struct {
	ActionToken string `json:"actionToken" validate:"required"`
}

type refreshData struct {
	AccessToken  string `json:"accessToken" validate:"required,max=8192"`
	RefreshToken string `json:"refreshToken"`
}

func decodeData[T any](resp *transport.Response) (T, error) {
	var env envelope[T]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if res := schema.Validate(&env); !res.OK {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidResponse, res.Err())
	}
	return env.Data, nil
}

func decodeVoid(resp *transport.Response) error {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	_, err := decodeData[json.RawMessage](resp)
	return err
}

func validateRequest(v any) error {
	if res := schema.Validate(v); !res.OK {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, res.Err())
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, op *operation, method, path string, payload any, opts ...transport.RequestOption) (*transport.Response, error) {
	opts = append(opts, transport.WithHeader(transport.RequestIDHeader, op.requestID))

	r := g.retry
	r.OnRetry = func(attempt int, err error) {
		g.metrics.Inc(MetricTransportRetry)
	}

	start := g.now()
	defer func() {
		g.metrics.Observe(MetricGatewayLatency, g.now().Sub(start))
	}()

	return policy.Do(ctx, r, func(ctx context.Context) (*transport.Response, error) {
		if method == http.MethodGet {
			return g.transport.Get(ctx, path, opts...)
		}
		return g.transport.Post(ctx, path, payload, opts...)
	})
}

// allow consults the limiter. Limiter backend failures admit the attempt.
func (g *Gateway) allow(ctx context.Context, op *operation) error {
	err := g.limiter.Allow(ctx, op.name+":"+op.email)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		g.metrics.Inc(MetricRateLimitHit)
		g.emitAudit(ctx, op, auditEventRateLimited, nil, err)
		return err
	}
	g.warn("rate limiter unavailable for %s: %v", op.name, err)
	return nil
}

func (g *Gateway) resetLimit(ctx context.Context, op *operation) {
	if err := g.limiter.Reset(ctx, op.name+":"+op.email); err != nil {
		g.warn("rate limiter reset failed for %s: %v", op.name, err)
	}
}

/*
====================================
CREDENTIAL OPERATIONS
====================================
*/

// Login exchanges credentials for a session and stores it.
func (g *Gateway) Login(ctx context.Context, creds Credentials) (*session.AuthSession, error) {
	op := g.begin("login", creds.Email)

	sess, err := g.login(ctx, op, creds)
	if err != nil {
		g.metrics.Inc(MetricLoginFailure)
		g.emitAudit(ctx, op, auditEventLoginFailure, nil, err)
		return nil, Classify(err)
	}

	g.resetLimit(ctx, op)
	g.metrics.Inc(MetricLoginSuccess)
	g.emitAudit(ctx, op, auditEventLoginSuccess, sess, nil)
	return sess, nil
}

func (g *Gateway) login(ctx context.Context, op *operation, creds Credentials) (*session.AuthSession, error) {
	if err := validateRequest(creds); err != nil {
		return nil, err
	}
	if err := g.allow(ctx, op); err != nil {
		return nil, err
	}

	resp, err := g.send(ctx, op, http.MethodPost, pathLogin, creds)
	if err != nil {
		return nil, err
	}
	data, err := decodeData[loginData](resp)
	if err != nil {
		return nil, err
	}

	var profile *session.UserProfile
	if data.User != nil && session.ValidateProfile(data.User) {
		profile = data.User
	}
	sess := session.CreateSession(data.AccessToken, data.RefreshToken, profile)
	// An abandoned login must not leave a session behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Register submits a new account. The server answers by sending an OTP.
func (g *Gateway) Register(ctx context.Context, creds Credentials) error {
	op := g.begin("register", creds.Email)

	err := g.postVoid(ctx, op, pathRegister, creds, true)
	if err != nil {
		g.metrics.Inc(MetricRegisterFailure)
	} else {
		g.metrics.Inc(MetricRegisterSuccess)
	}
	g.emitAudit(ctx, op, auditEventRegister, nil, err)
	if err != nil {
		return Classify(err)
	}
	return nil
}

// RequestPasswordReset asks the server to send a reset OTP to email.
func (g *Gateway) RequestPasswordReset(ctx context.Context, email string) error {
	op := g.begin("password_reset", email)

	err := g.postVoid(ctx, op, pathOTPRequest, emailRequest{Email: email}, true)
	if err == nil {
		g.metrics.Inc(MetricPasswordResetRequest)
	}
	g.emitAudit(ctx, op, auditEventPasswordResetRequest, nil, err)
	if err != nil {
		return Classify(err)
	}
	return nil
}

// VerifyOtp checks an OTP and returns the action token it unlocks.
func (g *Gateway) VerifyOtp(ctx context.Context, req OTPVerification) (string, error) {
	op := g.begin("verify_otp", req.Email)

	token, err := g.verifyOtp(ctx, op, req)
	if err != nil {
		g.metrics.Inc(MetricOTPVerifyFailure)
		g.emitAudit(ctx, op, auditEventOTPVerify, nil, err)
		return "", Classify(err)
	}

	g.resetLimit(ctx, op)
	g.metrics.Inc(MetricOTPVerifySuccess)
	g.emitAudit(ctx, op, auditEventOTPVerify, nil, nil)
	return token, nil
}

func (g *Gateway) verifyOtp(ctx context.Context, op *operation, req OTPVerification) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}
	if err := g.allow(ctx, op); err != nil {
		return "", err
	}

	resp, err := g.send(ctx, op, http.MethodPost, pathOTPVerify, req)
	if err != nil {
		return "", err
	}
	data, err := decodeData[verifyOTPData](resp)
	if err != nil {
		return "", err
	}
	return data.ActionToken, nil
}

// CompleteRegistration spends a registration action token.
func (g *Gateway) CompleteRegistration(ctx context.Context, req ActionRequest) error {
	op := g.begin("complete_registration", "")

	err := g.postVoid(ctx, op, pathRegisterComplete, req, false)
	if err == nil {
		g.metrics.Inc(MetricRegistrationComplete)
	}
	g.emitAudit(ctx, op, auditEventRegistrationComplete, nil, err)
	if err != nil {
		return Classify(err)
	}
	return nil
}

// CompletePasswordReset spends a password-reset action token.
func (g *Gateway) CompletePasswordReset(ctx context.Context, req ActionRequest) error {
	op := g.begin("complete_password_reset", "")

	err := g.postVoid(ctx, op, pathPasswordResetComplete, req, false)
	if err == nil {
		g.metrics.Inc(MetricPasswordResetComplete)
	}
	g.emitAudit(ctx, op, auditEventPasswordResetComplete, nil, err)
	if err != nil {
		return Classify(err)
	}
	return nil
}

func (g *Gateway) postVoid(ctx context.Context, op *operation, path string, payload any, limited bool) error {
	if err := validateRequest(payload); err != nil {
		return err
	}
	if limited {
		if err := g.allow(ctx, op); err != nil {
			return err
		}
	}
	resp, err := g.send(ctx, op, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	return decodeVoid(resp)
}

/*
====================================
SESSION OPERATIONS
====================================
*/

// CheckSession returns the stored session, or nil when none is usable.
func (g *Gateway) CheckSession(ctx context.Context) (*session.AuthSession, error) {
	sess, err := g.store.ReadSession(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	return sess, nil
}

// ValidateSession rejects a locally expired token, then confirms s with
// GET /auth/me and returns it merged with the fetched profile. It does not
// write storage.
func (g *Gateway) ValidateSession(ctx context.Context, s *session.AuthSession) (*session.AuthSession, error) {
	op := g.begin("validate_session", "")
	if s == nil {
		return nil, Classify(ErrNoSession)
	}
	if g.tokens.IsExpired(s.AccessToken) {
		g.metrics.Inc(MetricSessionExpired)
		return nil, Classify(ErrSessionExpired)
	}

	profile, err := g.fetchProfile(ctx, op, s.AccessToken)
	g.emitAudit(ctx, op, auditEventSessionValidate, s, err)
	if err != nil {
		return nil, Classify(err)
	}
	g.metrics.Inc(MetricSessionValidated)
	return session.UpdateProfile(s, profile), nil
}

// RefreshProfile fetches the profile for the stored session and saves the
// merged result. It returns nil, nil when nothing is stored.
func (g *Gateway) RefreshProfile(ctx context.Context) (*session.AuthSession, error) {
	op := g.begin("refresh_profile", "")

	sess, err := g.store.ReadSession(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	if sess == nil {
		return nil, nil
	}

	profile, err := g.fetchProfile(ctx, op, sess.AccessToken)
	if err != nil {
		return nil, Classify(err)
	}
	next := session.UpdateProfile(sess, profile)
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}
	if err := g.store.SaveSession(ctx, next); err != nil {
		return nil, Classify(err)
	}
	g.metrics.Inc(MetricProfileRefresh)
	return next, nil
}

func (g *Gateway) fetchProfile(ctx context.Context, op *operation, accessToken string) (*session.UserProfile, error) {
	resp, err := g.send(ctx, op, http.MethodGet, pathMe, nil, transport.WithBearer(accessToken))
	if err != nil {
		return nil, err
	}
	profile, err := decodeData[session.UserProfile](resp)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Refresh exchanges refreshToken for a new access token and stores the
// session with the new token, keeping refresh token and profile. The whole
// operation runs under a FIFO mutex so at most one refresh POST is in flight.
// A caller that queued behind a refresh which consumed the same token gets
// the session that refresh stored, without a second POST. A refresh
// overtaken by Logout stores nothing and fails with ErrNoSession.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*session.AuthSession, error) {
	op := g.begin("refresh", "")
	if refreshToken == "" {
		g.metrics.Inc(MetricRefreshFailure)
		return nil, Classify(ErrNoRefreshToken)
	}

	gen := g.refreshGen.Load()
	logouts := g.logoutGen.Load()
	release, err := g.refreshMu.Acquire(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	defer release()

	if g.logoutGen.Load() != logouts {
		g.metrics.Inc(MetricRefreshFailure)
		return nil, Classify(errLoggedOut)
	}

	if g.refreshGen.Load() != gen && g.lastRefreshed == refreshToken {
		current, err := g.store.ReadSession(ctx)
		if err == nil && current != nil {
			g.metrics.Inc(MetricRefreshDeduplicated)
			return current, nil
		}
	}

	sess, err := g.refresh(ctx, op, refreshToken, logouts)
	g.emitAudit(ctx, op, auditEventRefresh, sess, err)
	if err != nil {
		g.metrics.Inc(MetricRefreshFailure)
		return nil, Classify(err)
	}
	g.metrics.Inc(MetricRefreshSuccess)
	return sess, nil
}

func (g *Gateway) refresh(ctx context.Context, op *operation, refreshToken string, logouts uint64) (*session.AuthSession, error) {
	current, err := g.store.ReadSession(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := g.send(ctx, op, http.MethodPost, pathRefresh, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	data, err := decodeData[refreshData](resp)
	if err != nil {
		return nil, err
	}

	var next *session.AuthSession
	if current != nil {
		next = session.CreateRefreshedSession(current, data.AccessToken)
		next.RefreshToken = refreshToken
	} else {
		next = session.CreateSession(data.AccessToken, refreshToken, nil)
	}
	if data.RefreshToken != "" {
		next.RefreshToken = data.RefreshToken
	}

	if g.logoutGen.Load() != logouts {
		return nil, errLoggedOut
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := g.store.SaveSession(ctx, next); err != nil {
		return nil, err
	}
	g.lastRefreshed = refreshToken
	g.refreshGen.Add(1)
	return next, nil
}

// EnsureFreshSession returns s unchanged while its access token is usable
// and refreshes it otherwise. An expired session without a refresh token
// fails with ErrSessionExpired. A nil s yields nil, nil.
func (g *Gateway) EnsureFreshSession(ctx context.Context, s *session.AuthSession) (*session.AuthSession, error) {
	if s == nil {
		return nil, nil
	}
	if !g.tokens.IsExpired(s.AccessToken) {
		return s, nil
	}
	g.metrics.Inc(MetricSessionExpired)
	if s.RefreshToken == "" {
		return nil, Classify(ErrSessionExpired)
	}
	return g.Refresh(ctx, s.RefreshToken)
}

// Logout removes the stored session. It waits for an in-flight refresh, and
// refreshes started before it never write a session back.
func (g *Gateway) Logout(ctx context.Context) error {
	op := g.begin("logout", "")

	g.logoutGen.Add(1)
	if release, err := g.refreshMu.Acquire(ctx); err == nil {
		defer release()
	}

	var current *session.AuthSession
	if g.audit != nil {
		current, _ = g.store.ReadSession(ctx)
	}

	err := g.store.RemoveSession(ctx)
	g.emitAudit(ctx, op, auditEventLogout, current, err)
	if err != nil {
		g.warn("logout could not remove stored session: %v", err)
		return Classify(err)
	}
	g.metrics.Inc(MetricLogout)
	return nil
}

var errLoggedOut = fmt.Errorf("%w: logged out during refresh", ErrNoSession)

func newRequestID() string {
	return uuid.NewString()
}
