package authflow

import (
	"strings"

	"github.com/MrEthical07/authflow/session"
)

// State is a dotted machine state path, e.g. "unauthorized.login.idle".
type State string

const (
	StateCheckingSession                State = "checkingSession"
	StateValidatingSession              State = "validatingSession"
	StateFetchingProfileAfterValidation State = "fetchingProfileAfterValidation"
	StateRefreshingToken                State = "refreshingToken"
	StateFetchingProfileAfterRefresh    State = "fetchingProfileAfterRefresh"
	StateAuthorized                     State = "authorized"
	StateLoggingOut                     State = "loggingOut"

	StateUnauthorized State = "unauthorized"

	StateLogin           State = "unauthorized.login"
	StateLoginIdle       State = "unauthorized.login.idle"
	StateLoginSubmitting State = "unauthorized.login.submitting"

	StateRegister                       State = "unauthorized.register"
	StateRegisterForm                   State = "unauthorized.register.form"
	StateRegisterSubmitting             State = "unauthorized.register.submitting"
	StateRegisterVerifyOtp              State = "unauthorized.register.verifyOtp"
	StateRegisterVerifyingOtp           State = "unauthorized.register.verifyingOtp"
	StateRegisterCompletingRegistration State = "unauthorized.register.completingRegistration"
	StateRegisterLoggingIn              State = "unauthorized.register.loggingIn"

	StateForgotPassword                    State = "unauthorized.forgotPassword"
	StateForgotPasswordIdle                State = "unauthorized.forgotPassword.idle"
	StateForgotPasswordSubmitting          State = "unauthorized.forgotPassword.submitting"
	StateForgotPasswordVerifyOtp           State = "unauthorized.forgotPassword.verifyOtp"
	StateForgotPasswordVerifyingOtp        State = "unauthorized.forgotPassword.verifyingOtp"
	StateForgotPasswordResetPassword       State = "unauthorized.forgotPassword.resetPassword"
	StateForgotPasswordResettingPassword   State = "unauthorized.forgotPassword.resettingPassword"
	StateForgotPasswordLoggingInAfterReset State = "unauthorized.forgotPassword.loggingInAfterReset"

	StateCompleteRegistrationProcess State = "unauthorized.completeRegistrationProcess"
	StateLoggingInAfterCompletion    State = "unauthorized.loggingInAfterCompletion"
)

// Matches reports whether s is prefix or a descendant of it.
func (s State) Matches(prefix State) bool {
	return s == prefix || strings.HasPrefix(string(s), string(prefix)+".")
}

type serviceKey string

const (
	svcCheckSession           serviceKey = "checkSession"
	svcValidateSession        serviceKey = "validateSession"
	svcRefreshProfile         serviceKey = "refreshProfile"
	svcRefreshToken           serviceKey = "refreshToken"
	svcEnsureFreshSession     serviceKey = "ensureFreshSession"
	svcLogout                 serviceKey = "logout"
	svcLogin                  serviceKey = "login"
	svcRegister               serviceKey = "register"
	svcVerifyRegistrationOtp  serviceKey = "verifyRegistrationOtp"
	svcCompleteRegistration   serviceKey = "completeRegistration"
	svcLoginAfterRegistration serviceKey = "loginAfterRegistration"
	svcRequestPasswordReset   serviceKey = "requestPasswordReset"
	svcVerifyResetOtp         serviceKey = "verifyResetOtp"
	svcCompletePasswordReset  serviceKey = "completePasswordReset"
	svcLoginAfterReset        serviceKey = "loginAfterReset"
)

type transition struct {
	target State
	guard  func(mc MachineContext, ev Event) bool
	action func(mc *MachineContext, ev Event)
}

// invocation binds a service to a state. onDone may return "" to stay in
// the state without re-entering it.
type invocation struct {
	service serviceKey
	onDone  func(mc *MachineContext, out any) State
	onError func(mc *MachineContext, err *AuthError) State
}

type stateNode struct {
	on     map[EventType]transition
	invoke *invocation
}

type globalTransition struct {
	from  func(State) bool
	event EventType
	transition
}

/*
====================================
ACTIONS
====================================
*/

func clearError(mc *MachineContext, _ Event) { mc.Error = nil }

func asSession(out any) *session.AuthSession {
	s, _ := out.(*session.AuthSession)
	return s
}

func setSession(target State) func(*MachineContext, any) State {
	return func(mc *MachineContext, out any) State {
		mc.Session = asSession(out)
		return target
	}
}

func goTo(target State) func(*MachineContext, any) State {
	return func(*MachineContext, any) State { return target }
}

func setError(target State) func(*MachineContext, *AuthError) State {
	return func(mc *MachineContext, err *AuthError) State {
		mc.Error = err
		return target
	}
}

// failToLogin ends whatever flow was running and drops the session.
func failToLogin(mc *MachineContext, err *AuthError) State {
	mc.Session = nil
	mc.Error = err
	mc.Flow = nil
	return StateLoginIdle
}

func registrationEmailPresent(mc MachineContext, _ Event) bool {
	f, ok := mc.Registration()
	return ok && f.Email != ""
}

func resetEmailPresent(mc MachineContext, _ Event) bool {
	f, ok := mc.PasswordReset()
	return ok && f.Email != ""
}

func resetActionTokenPresent(mc MachineContext, _ Event) bool {
	f, ok := mc.PasswordReset()
	return ok && f.ActionToken != ""
}

/*
====================================
STATE TABLE
====================================
*/

var machineStates = map[State]*stateNode{
	StateCheckingSession: {
		invoke: &invocation{
			service: svcCheckSession,
			onDone: func(mc *MachineContext, out any) State {
				s := asSession(out)
				if s == nil {
					return StateLoginIdle
				}
				mc.Session = s
				return StateValidatingSession
			},
			onError: setError(StateLoginIdle),
		},
	},
	StateValidatingSession: {
		invoke: &invocation{
			service: svcValidateSession,
			onDone:  setSession(StateFetchingProfileAfterValidation),
			onError: func(*MachineContext, *AuthError) State { return StateRefreshingToken },
		},
	},
	StateFetchingProfileAfterValidation: {
		invoke: &invocation{
			service: svcRefreshProfile,
			onDone:  keepOrSetSession(StateAuthorized),
			onError: func(*MachineContext, *AuthError) State { return StateAuthorized },
		},
	},
	StateRefreshingToken: {
		invoke: &invocation{
			service: svcRefreshToken,
			onDone:  setSession(StateFetchingProfileAfterRefresh),
			onError: failToLogin,
		},
	},
	StateFetchingProfileAfterRefresh: {
		invoke: &invocation{
			service: svcRefreshProfile,
			onDone:  keepOrSetSession(StateAuthorized),
			onError: func(*MachineContext, *AuthError) State { return StateAuthorized },
		},
	},
	StateAuthorized: {
		on: map[EventType]transition{
			EventLogout:  {target: StateLoggingOut},
			EventRefresh: {target: StateRefreshingToken, action: clearError},
		},
		invoke: &invocation{
			service: svcEnsureFreshSession,
			onDone: func(mc *MachineContext, out any) State {
				s := asSession(out)
				if s == nil {
					mc.Session = nil
					return StateLoginIdle
				}
				mc.Session = s
				return ""
			},
			onError: failToLogin,
		},
	},
	StateLoggingOut: {
		invoke: &invocation{
			service: svcLogout,
			onDone: func(mc *MachineContext, _ any) State {
				mc.Session = nil
				mc.Error = nil
				mc.Flow = nil
				return StateLoginIdle
			},
			onError: setError(StateAuthorized),
		},
	},

	// login
	StateLoginIdle: {
		on: map[EventType]transition{
			EventLogin: {target: StateLoginSubmitting, action: clearError},
		},
	},
	StateLoginSubmitting: {
		on: map[EventType]transition{
			EventCancel: {target: StateLoginIdle},
		},
		invoke: &invocation{
			service: svcLogin,
			onDone:  setSession(StateAuthorized),
			onError: setError(StateLoginIdle),
		},
	},

	// register
	StateRegisterForm: {
		on: map[EventType]transition{
			EventRegister: {
				target: StateRegisterSubmitting,
				action: func(mc *MachineContext, ev Event) {
					mc.Error = nil
					mc.Flow = &RegistrationFlow{
						Email:   ev.Email,
						Pending: &Credentials{Email: ev.Email, Password: ev.Password},
					}
				},
			},
		},
	},
	StateRegisterSubmitting: {
		on: map[EventType]transition{
			EventCancel: {target: StateRegisterForm},
		},
		invoke: &invocation{
			service: svcRegister,
			onDone:  goTo(StateRegisterVerifyOtp),
			onError: setError(StateRegisterForm),
		},
	},
	StateRegisterVerifyOtp: {
		on: map[EventType]transition{
			EventVerifyOTP: {target: StateRegisterVerifyingOtp, guard: registrationEmailPresent, action: clearError},
		},
	},
	StateRegisterVerifyingOtp: {
		invoke: &invocation{
			service: svcVerifyRegistrationOtp,
			onDone: func(mc *MachineContext, out any) State {
				if f, ok := mc.Registration(); ok {
					f.ActionToken, _ = out.(string)
				}
				return StateRegisterCompletingRegistration
			},
			onError: setError(StateRegisterVerifyOtp),
		},
	},
	StateRegisterCompletingRegistration: {
		invoke: &invocation{
			service: svcCompleteRegistration,
			onDone:  goTo(StateRegisterLoggingIn),
			onError: func(mc *MachineContext, err *AuthError) State {
				if f, ok := mc.Registration(); ok {
					f.ActionToken = ""
				}
				mc.Error = err
				return StateRegisterVerifyOtp
			},
		},
	},
	StateRegisterLoggingIn: {
		invoke: &invocation{
			service: svcLoginAfterRegistration,
			onDone:  setSession(StateAuthorized),
			onError: failToLogin,
		},
	},

	// forgot password
	StateForgotPasswordIdle: {
		on: map[EventType]transition{
			EventForgotPassword: {
				target: StateForgotPasswordSubmitting,
				action: func(mc *MachineContext, ev Event) {
					mc.Error = nil
					mc.Flow = &PasswordResetFlow{Email: ev.Email}
				},
			},
		},
	},
	StateForgotPasswordSubmitting: {
		on: map[EventType]transition{
			EventCancel: {target: StateForgotPasswordIdle},
		},
		invoke: &invocation{
			service: svcRequestPasswordReset,
			onDone:  goTo(StateForgotPasswordVerifyOtp),
			onError: setError(StateForgotPasswordIdle),
		},
	},
	StateForgotPasswordVerifyOtp: {
		on: map[EventType]transition{
			EventVerifyOTP: {target: StateForgotPasswordVerifyingOtp, guard: resetEmailPresent, action: clearError},
		},
	},
	StateForgotPasswordVerifyingOtp: {
		invoke: &invocation{
			service: svcVerifyResetOtp,
			onDone: func(mc *MachineContext, out any) State {
				if f, ok := mc.PasswordReset(); ok {
					f.ActionToken, _ = out.(string)
				}
				return StateForgotPasswordResetPassword
			},
			onError: setError(StateForgotPasswordVerifyOtp),
		},
	},
	StateForgotPasswordResetPassword: {
		on: map[EventType]transition{
			EventResetPassword: {
				target: StateForgotPasswordResettingPassword,
				guard:  resetActionTokenPresent,
				action: func(mc *MachineContext, ev Event) {
					mc.Error = nil
					if f, ok := mc.PasswordReset(); ok {
						f.Pending = &Credentials{Email: f.Email, Password: ev.NewPassword}
					}
				},
			},
		},
	},
	StateForgotPasswordResettingPassword: {
		invoke: &invocation{
			service: svcCompletePasswordReset,
			onDone:  goTo(StateForgotPasswordLoggingInAfterReset),
			onError: setError(StateForgotPasswordResetPassword),
		},
	},
	StateForgotPasswordLoggingInAfterReset: {
		invoke: &invocation{
			service: svcLoginAfterReset,
			onDone:  setSession(StateAuthorized),
			onError: failToLogin,
		},
	},

	// out-of-band registration completion
	StateCompleteRegistrationProcess: {
		invoke: &invocation{
			service: svcCompleteRegistration,
			onDone: func(mc *MachineContext, _ any) State {
				if f, ok := mc.Registration(); ok && f.Email != "" {
					return StateLoggingInAfterCompletion
				}
				mc.Flow = nil
				return StateLoginIdle
			},
			onError: failToLogin,
		},
	},
	StateLoggingInAfterCompletion: {
		invoke: &invocation{
			service: svcLoginAfterRegistration,
			onDone:  setSession(StateAuthorized),
			onError: failToLogin,
		},
	},
}

func keepOrSetSession(target State) func(*MachineContext, any) State {
	return func(mc *MachineContext, out any) State {
		if s := asSession(out); s != nil {
			mc.Session = s
		}
		return target
	}
}

func inUnauthorized(s State) bool { return s.Matches(StateUnauthorized) }

var globalTransitions = []globalTransition{
	{
		from:  inUnauthorized,
		event: EventGoToRegister,
		transition: transition{
			target: StateRegisterForm,
			action: func(mc *MachineContext, _ Event) {
				mc.Error = nil
				mc.Flow = &RegistrationFlow{}
			},
		},
	},
	{
		from:  inUnauthorized,
		event: EventGoToLogin,
		transition: transition{
			target: StateLoginIdle,
			action: func(mc *MachineContext, _ Event) {
				mc.Error = nil
				mc.Flow = nil
			},
		},
	},
	{
		from:  inUnauthorized,
		event: EventGoToForgotPassword,
		transition: transition{
			target: StateForgotPasswordIdle,
			action: func(mc *MachineContext, _ Event) {
				mc.Error = nil
				mc.Flow = &PasswordResetFlow{}
			},
		},
	},
	{
		from: func(s State) bool {
			return s == StateValidatingSession || s == StateRefreshingToken || s == StateAuthorized || inUnauthorized(s)
		},
		event: EventCompleteRegistration,
		transition: transition{
			target: StateCompleteRegistrationProcess,
			action: func(mc *MachineContext, ev Event) {
				mc.Error = nil
				mc.Flow = &RegistrationFlow{
					Email:       ev.Email,
					ActionToken: ev.ActionToken,
					Pending:     &Credentials{Email: ev.Email, Password: ev.NewPassword},
				}
			},
		},
	},
}

// flowScope reports whether flow f may survive in target.
func flowScope(f Flow, target State) bool {
	switch f.(type) {
	case *RegistrationFlow:
		return target.Matches(StateRegister) ||
			target == StateCompleteRegistrationProcess ||
			target == StateLoggingInAfterCompletion
	case *PasswordResetFlow:
		return target.Matches(StateForgotPassword)
	default:
		return false
	}
}
