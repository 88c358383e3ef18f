package authflow

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/session"
)

// AuditEvent is one authentication outcome handed to an [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc = internalaudit.SinkFunc

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink returns a sink with the given channel buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventRegister              = "register"
	auditEventOTPVerify             = "otp_verify"
	auditEventRegistrationComplete  = "registration_complete"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetComplete = "password_reset_complete"
	auditEventRefresh               = "refresh"
	auditEventSessionValidate       = "session_validate"
	auditEventLogout                = "logout"
	auditEventRateLimited           = "rate_limited"
)

func (g *Gateway) emitAudit(ctx context.Context, op *operation, eventType string, sess *session.AuthSession, err error) {
	if g.audit == nil {
		return
	}
	ev := AuditEvent{
		EventType: eventType,
		Email:     op.email,
		RequestID: op.requestID,
		Success:   err == nil,
	}
	if sess != nil && sess.Profile != nil {
		ev.UserID = sess.Profile.ID
		if ev.Email == "" {
			ev.Email = normalizeEmail(sess.Profile.Email)
		}
	}
	if ae := Classify(err); ae != nil {
		ev.Code = string(ae.Code)
		ev.Error = ae.Message
	}
	g.audit.Emit(ctx, ev)
}
