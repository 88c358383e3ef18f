package authflow

import (
	"context"
	"log"
	"sync"

	"github.com/MrEthical07/authflow/session"
)

// Services is what a [Machine] invokes. [*Gateway] implements it; tests
// substitute fakes.
type Services interface {
	CheckSession(ctx context.Context) (*session.AuthSession, error)
	ValidateSession(ctx context.Context, s *session.AuthSession) (*session.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*session.AuthSession, error)
	RefreshProfile(ctx context.Context) (*session.AuthSession, error)
	EnsureFreshSession(ctx context.Context, s *session.AuthSession) (*session.AuthSession, error)
	Login(ctx context.Context, creds Credentials) (*session.AuthSession, error)
	Register(ctx context.Context, creds Credentials) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyOtp(ctx context.Context, req OTPVerification) (string, error)
	CompleteRegistration(ctx context.Context, req ActionRequest) error
	CompletePasswordReset(ctx context.Context, req ActionRequest) error
	Logout(ctx context.Context) error
}

var _ Services = (*Gateway)(nil)

// Snapshot is an immutable view of the machine.
type Snapshot struct {
	State   State
	Context MachineContext
}

// Matches reports whether the snapshot state is prefix or below it.
func (s Snapshot) Matches(prefix State) bool {
	return s.State.Matches(prefix)
}

// MachineOption configures a [Machine].
type MachineOption func(*Machine)

// WithLenientCredentials makes flows that lost their pending credentials
// log in with an empty password instead of failing with ErrCredentialsLost.
func WithLenientCredentials(enabled bool) MachineOption {
	return func(m *Machine) {
		m.lenient = enabled
	}
}

// WithMachineLogger sets the warning logger.
func WithMachineLogger(l *log.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

type serviceFunc func(ctx context.Context, mc MachineContext, ev Event) (any, error)

// Machine sequences authentication flows. Each state with an invocation
// starts it on entry on its own goroutine; results are applied only if the
// machine is still in the entry that started it. Leaving an entry cancels
// the context of its invocation.
type Machine struct {
	services map[serviceKey]serviceFunc
	lenient  bool
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	ctx     MachineContext
	epoch   uint64
	trigger Event
	started bool
	stopped bool
	runCtx  context.Context
	cancel  context.CancelFunc
	// abort cancels the invocation of the current entry.
	abort   context.CancelFunc
	changed chan struct{}
	subs    map[int]chan Snapshot
	nextSub int
	pending sync.WaitGroup
}

// NewMachine creates a stopped machine over services.
func NewMachine(services Services, opts ...MachineOption) *Machine {
	m := &Machine{
		changed: make(chan struct{}),
		subs:    make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.services = m.bind(services)
	return m
}

func (m *Machine) bind(s Services) map[serviceKey]serviceFunc {
	return map[serviceKey]serviceFunc{
		svcCheckSession: func(ctx context.Context, _ MachineContext, _ Event) (any, error) {
			return s.CheckSession(ctx)
		},
		svcValidateSession: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			return s.ValidateSession(ctx, mc.Session)
		},
		svcRefreshProfile: func(ctx context.Context, _ MachineContext, _ Event) (any, error) {
			return s.RefreshProfile(ctx)
		},
		svcRefreshToken: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			if mc.Session == nil || mc.Session.RefreshToken == "" {
				return nil, ErrNoRefreshToken
			}
			return s.Refresh(ctx, mc.Session.RefreshToken)
		},
		svcEnsureFreshSession: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			return s.EnsureFreshSession(ctx, mc.Session)
		},
		svcLogout: func(ctx context.Context, _ MachineContext, _ Event) (any, error) {
			return nil, s.Logout(ctx)
		},
		svcLogin: func(ctx context.Context, _ MachineContext, ev Event) (any, error) {
			return s.Login(ctx, Credentials{Email: ev.Email, Password: ev.Password})
		},
		svcRegister: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			f := registrationOf(mc)
			creds, err := m.resolveCredentials(f.Email, f.Pending)
			if err != nil {
				return nil, err
			}
			return nil, s.Register(ctx, creds)
		},
		svcVerifyRegistrationOtp: func(ctx context.Context, mc MachineContext, ev Event) (any, error) {
			f := registrationOf(mc)
			return s.VerifyOtp(ctx, OTPVerification{Email: f.Email, OTP: ev.OTP})
		},
		svcCompleteRegistration: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			f := registrationOf(mc)
			creds, err := m.resolveCredentials(f.Email, f.Pending)
			if err != nil {
				return nil, err
			}
			return nil, s.CompleteRegistration(ctx, ActionRequest{ActionToken: f.ActionToken, NewPassword: creds.Password})
		},
		svcLoginAfterRegistration: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			f := registrationOf(mc)
			creds, err := m.resolveCredentials(f.Email, f.Pending)
			if err != nil {
				return nil, err
			}
			return s.Login(ctx, creds)
		},
		svcRequestPasswordReset: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			f := passwordResetOf(mc)
			return nil, s.RequestPasswordReset(ctx, f.Email)
		},
		svcVerifyResetOtp: func(ctx context.Context, mc MachineContext, ev Event) (any, error) {
			f := passwordResetOf(mc)
			return s.VerifyOtp(ctx, OTPVerification{Email: f.Email, OTP: ev.OTP})
		},
		svcCompletePasswordReset: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			f := passwordResetOf(mc)
			creds, err := m.resolveCredentials(f.Email, f.Pending)
			if err != nil {
				return nil, err
			}
			return nil, s.CompletePasswordReset(ctx, ActionRequest{ActionToken: f.ActionToken, NewPassword: creds.Password})
		},
		svcLoginAfterReset: func(ctx context.Context, mc MachineContext, _ Event) (any, error) {
			f := passwordResetOf(mc)
			creds, err := m.resolveCredentials(f.Email, f.Pending)
			if err != nil {
				return nil, err
			}
			return s.Login(ctx, creds)
		},
	}
}

func registrationOf(mc MachineContext) *RegistrationFlow {
	if f, ok := mc.Registration(); ok {
		return f
	}
	return &RegistrationFlow{}
}

func passwordResetOf(mc MachineContext) *PasswordResetFlow {
	if f, ok := mc.PasswordReset(); ok {
		return f
	}
	return &PasswordResetFlow{}
}

// resolveCredentials returns the pending credentials of a flow. Missing
// credentials fail with ErrCredentialsLost unless the machine is lenient,
// in which case the password is empty.
func (m *Machine) resolveCredentials(email string, pending *Credentials) (Credentials, error) {
	if pending != nil {
		return *pending, nil
	}
	if !m.lenient {
		return Credentials{}, ErrCredentialsLost
	}
	m.warn("pending credentials missing for %s, continuing with empty password", normalizeEmail(email))
	return Credentials{Email: email}, nil
}

func (m *Machine) warn(format string, args ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Printf("authflow: "+format, args...)
}

// Start enters checkingSession. Invocations run under ctx until Stop.
func (m *Machine) Start(ctx context.Context) error {
	return m.StartAt(ctx, StateCheckingSession, MachineContext{})
}

// StartAt restores the machine into state with mc, running the state's
// invocation if it has one.
func (m *Machine) StartAt(ctx context.Context, state State, mc MachineContext) error {
	if _, ok := machineStates[state]; !ok {
		return ErrUnknownState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrMachineStopped
	}
	if m.started {
		return ErrMachineStarted
	}
	m.started = true
	m.runCtx, m.cancel = context.WithCancel(ctx)
	m.ctx = mc.Clone()
	m.enterLocked(state, Event{})
	return nil
}

// Send delivers ev. It reports false when the current state does not accept
// ev, a guard rejects it, or the machine is not running.
func (m *Machine) Send(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.stopped {
		return false
	}

	tr, ok := m.lookupLocked(ev.Type)
	if !ok {
		return false
	}
	if tr.guard != nil && !tr.guard(m.ctx, ev) {
		return false
	}
	if tr.action != nil {
		tr.action(&m.ctx, ev)
	}
	m.enterLocked(tr.target, ev)
	return true
}

func (m *Machine) lookupLocked(et EventType) (transition, bool) {
	if node := machineStates[m.state]; node != nil {
		if tr, ok := node.on[et]; ok {
			return tr, true
		}
	}
	for _, g := range globalTransitions {
		if g.event == et && g.from(m.state) {
			return g.transition, true
		}
	}
	return transition{}, false
}

// enterLocked moves to target, scopes the flow context, publishes the new
// snapshot, and starts target's invocation.
func (m *Machine) enterLocked(target State, ev Event) {
	if m.abort != nil {
		m.abort()
		m.abort = nil
	}
	if m.ctx.Flow != nil && !flowScope(m.ctx.Flow, target) {
		m.ctx.Flow = nil
	}

	m.state = target
	m.epoch++
	m.trigger = ev
	m.publishLocked()

	node := machineStates[target]
	if node == nil || node.invoke == nil {
		return
	}
	m.invokeLocked(node.invoke, m.epoch)
}

func (m *Machine) invokeLocked(inv *invocation, epoch uint64) {
	fn := m.services[inv.service]
	ctx, cancel := context.WithCancel(m.runCtx)
	m.abort = cancel
	mc := m.ctx.Clone()
	ev := m.trigger

	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		defer cancel()
		out, err := fn(ctx, mc, ev)
		m.complete(epoch, inv, out, err)
	}()
}

func (m *Machine) complete(epoch uint64, inv *invocation, out any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || epoch != m.epoch {
		return
	}

	var target State
	if err != nil {
		target = inv.onError(&m.ctx, Classify(err))
	} else {
		target = inv.onDone(&m.ctx, out)
	}

	if target == "" {
		m.publishLocked()
		return
	}
	m.enterLocked(target, Event{})
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{State: m.state, Context: m.ctx.Clone()}
}

func (m *Machine) publishLocked() {
	close(m.changed)
	m.changed = make(chan struct{})

	if len(m.subs) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest so the newest snapshot is always delivered.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Snapshot returns the current state and a deep copy of the context.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe returns a channel receiving a snapshot after every change and
// a func that unsubscribes. Slow readers lose intermediate snapshots.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 16)
	if m.stopped {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// WaitFor blocks until pred holds for the current snapshot, ctx ends, or
// the machine stops.
func (m *Machine) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		m.mu.Lock()
		snap := m.snapshotLocked()
		changed := m.changed
		stopped := m.stopped
		m.mu.Unlock()

		if pred(snap) {
			return snap, nil
		}
		if stopped {
			return snap, ErrMachineStopped
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// WaitForState waits until the machine is in state or below it.
func (m *Machine) WaitForState(ctx context.Context, state State) (Snapshot, error) {
	return m.WaitFor(ctx, func(s Snapshot) bool { return s.Matches(state) })
}

// Stop cancels in-flight invocations, drops their results, and closes
// subscriber channels. It waits for invocation goroutines to return.
func (m *Machine) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	m.pending.Wait()
}
