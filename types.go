package authflow

import (
	"strings"

	"github.com/MrEthical07/authflow/session"
)

// Credentials is an email and password pair.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

// OTPVerification is the payload of POST /auth/otp/verify.
type OTPVerification struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

// ActionRequest spends an action token issued by OTP verification.
type ActionRequest struct {
	ActionToken string `json:"actionToken" validate:"required"`
	NewPassword string `json:"newPassword"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Flow is the flow-scoped part of a [MachineContext]. It is either a
// *RegistrationFlow or a *PasswordResetFlow; no other type implements it.
type Flow interface {
	cloneFlow() Flow
	flowName() string
}

// RegistrationFlow carries registration progress.
type RegistrationFlow struct {
	Email       string
	ActionToken string
	Pending     *Credentials
}

func (f *RegistrationFlow) cloneFlow() Flow {
	if f == nil {
		return nil
	}
	out := *f
	out.Pending = cloneCredentials(f.Pending)
	return &out
}

func (*RegistrationFlow) flowName() string { return "registration" }

// PasswordResetFlow carries password-reset progress.
type PasswordResetFlow struct {
	Email       string
	ActionToken string
	Pending     *Credentials
}

func (f *PasswordResetFlow) cloneFlow() Flow {
	if f == nil {
		return nil
	}
	out := *f
	out.Pending = cloneCredentials(f.Pending)
	return &out
}

func (*PasswordResetFlow) flowName() string { return "password_reset" }

func cloneCredentials(c *Credentials) *Credentials {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// MachineContext is the data a [Machine] carries between states.
type MachineContext struct {
	Session *session.AuthSession
	Error   *AuthError
	Flow    Flow
}

// Registration returns the registration flow when it is the active flow.
func (c MachineContext) Registration() (*RegistrationFlow, bool) {
	f, ok := c.Flow.(*RegistrationFlow)
	return f, ok && f != nil
}

// PasswordReset returns the password-reset flow when it is the active flow.
func (c MachineContext) PasswordReset() (*PasswordResetFlow, bool) {
	f, ok := c.Flow.(*PasswordResetFlow)
	return f, ok && f != nil
}

// Clone returns a deep copy.
func (c MachineContext) Clone() MachineContext {
	out := MachineContext{
		Session: c.Session.Clone(),
		Error:   c.Error.Clone(),
	}
	if c.Flow != nil {
		out.Flow = c.Flow.cloneFlow()
	}
	return out
}
