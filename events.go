package authflow

// EventType names a machine event.
type EventType string

const (
	EventLogin                EventType = "LOGIN"
	EventCancel               EventType = "CANCEL"
	EventRegister             EventType = "REGISTER"
	EventVerifyOTP            EventType = "VERIFY_OTP"
	EventForgotPassword       EventType = "FORGOT_PASSWORD"
	EventResetPassword        EventType = "RESET_PASSWORD"
	EventGoToRegister         EventType = "GO_TO_REGISTER"
	EventGoToLogin            EventType = "GO_TO_LOGIN"
	EventGoToForgotPassword   EventType = "GO_TO_FORGOT_PASSWORD"
	EventCompleteRegistration EventType = "COMPLETE_REGISTRATION"
	EventLogout               EventType = "LOGOUT"
	EventRefresh              EventType = "REFRESH"
)

// Event is a user intent sent to a [Machine]. Only the fields its Type uses
// are read.
type Event struct {
	Type        EventType
	Email       string
	Password    string
	OTP         string
	NewPassword string
	ActionToken string
}

// LoginEvent submits credentials from the login form.
func LoginEvent(email, password string) Event {
	return Event{Type: EventLogin, Email: email, Password: password}
}

// RegisterEvent starts a registration with the chosen credentials.
func RegisterEvent(email, password string) Event {
	return Event{Type: EventRegister, Email: email, Password: password}
}

// VerifyOTPEvent submits the one-time code of the current flow.
func VerifyOTPEvent(otp string) Event {
	return Event{Type: EventVerifyOTP, OTP: otp}
}

// ForgotPasswordEvent requests a reset code for email.
func ForgotPasswordEvent(email string) Event {
	return Event{Type: EventForgotPassword, Email: email}
}

// ResetPasswordEvent sets the new password after the reset code was verified.
func ResetPasswordEvent(newPassword string) Event {
	return Event{Type: EventResetPassword, NewPassword: newPassword}
}

// CompleteRegistrationEvent completes a registration from an action token
// delivered out of band. With an email the machine logs in afterwards.
func CompleteRegistrationEvent(actionToken, newPassword, email string) Event {
	return Event{Type: EventCompleteRegistration, ActionToken: actionToken, NewPassword: newPassword, Email: email}
}

// CancelEvent abandons an in-flight submission.
func CancelEvent() Event { return Event{Type: EventCancel} }

// GoToRegisterEvent opens the registration form.
func GoToRegisterEvent() Event { return Event{Type: EventGoToRegister} }

// GoToLoginEvent opens the login form.
func GoToLoginEvent() Event { return Event{Type: EventGoToLogin} }

// GoToForgotPasswordEvent opens the password reset form.
func GoToForgotPasswordEvent() Event { return Event{Type: EventGoToForgotPassword} }

// LogoutEvent ends the session.
func LogoutEvent() Event { return Event{Type: EventLogout} }

// RefreshEvent forces a token refresh while authorized.
func RefreshEvent() Event { return Event{Type: EventRefresh} }
