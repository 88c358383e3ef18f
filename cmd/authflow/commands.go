package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/MrEthical07/authflow"
)

var errUsage = errors.New("usage")

const maxOTPAttempts = 3

type cli struct {
	client *authflow.Client
	in     io.Reader
	out    io.Writer

	scanner *bufio.Scanner
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	m := c.client.NewMachine()
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	snap, err := await(ctx, m, []authflow.State{authflow.StateAuthorized, authflow.StateLoginIdle}, nil)
	if err != nil {
		return err
	}

	switch cmd {
	case "status":
		c.report(snap)
		return nil
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("%w: login <email> <password>", errUsage)
		}
		return c.login(ctx, m, snap, args[0], args[1])
	case "logout":
		return c.logout(ctx, m, snap)
	case "refresh":
		return c.refresh(ctx, m, snap)
	case "register":
		if len(args) != 2 {
			return fmt.Errorf("%w: register <email> <password>", errUsage)
		}
		return c.register(ctx, m, snap, args[0], args[1])
	case "reset":
		if len(args) != 1 {
			return fmt.Errorf("%w: reset <email>", errUsage)
		}
		return c.reset(ctx, m, snap, args[0])
	case "complete":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("%w: complete <actionToken> <password> [email]", errUsage)
		}
		email := ""
		if len(args) == 3 {
			email = args[2]
		}
		return c.complete(ctx, m, args[0], args[1], email)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (c *cli) report(snap authflow.Snapshot) {
	fmt.Fprintf(c.out, "state: %s\n", snap.State)
	if s := snap.Context.Session; s != nil {
		if s.Profile != nil {
			fmt.Fprintf(c.out, "user: %s <%s>\n", s.Profile.Name, s.Profile.Email)
		}
		fmt.Fprintf(c.out, "refresh token: %t\n", s.RefreshToken != "")
	}
	if e := snap.Context.Error; e != nil {
		fmt.Fprintf(c.out, "last error: %s (%s)\n", e.Message, e.Code)
	}
}

func (c *cli) login(ctx context.Context, m *authflow.Machine, snap authflow.Snapshot, email, password string) error {
	if snap.State == authflow.StateAuthorized {
		fmt.Fprintln(c.out, "already logged in; run logout first")
		return nil
	}
	if !m.Send(authflow.LoginEvent(email, password)) {
		return fmt.Errorf("login not accepted in state %s", m.State())
	}
	snap, err := await(ctx, m,
		[]authflow.State{authflow.StateAuthorized},
		[]authflow.State{authflow.StateLoginIdle},
	)
	if err != nil {
		return err
	}
	if err := errOf(snap); err != nil {
		return err
	}
	c.report(snap)
	return nil
}

func (c *cli) logout(ctx context.Context, m *authflow.Machine, snap authflow.Snapshot) error {
	if snap.State != authflow.StateAuthorized {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}
	m.Send(authflow.LogoutEvent())
	snap, err := await(ctx, m,
		[]authflow.State{authflow.StateLoginIdle},
		[]authflow.State{authflow.StateAuthorized},
	)
	if err != nil {
		return err
	}
	if err := errOf(snap); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func (c *cli) refresh(ctx context.Context, m *authflow.Machine, snap authflow.Snapshot) error {
	if snap.State != authflow.StateAuthorized {
		return authflow.Classify(authflow.ErrNoSession)
	}
	m.Send(authflow.RefreshEvent())
	snap, err := await(ctx, m, []authflow.State{authflow.StateAuthorized, authflow.StateLoginIdle}, nil)
	if err != nil {
		return err
	}
	if snap.State != authflow.StateAuthorized {
		return errOf(snap)
	}
	c.report(snap)
	return nil
}

func (c *cli) register(ctx context.Context, m *authflow.Machine, snap authflow.Snapshot, email, password string) error {
	if snap.State == authflow.StateAuthorized {
		fmt.Fprintln(c.out, "already logged in; run logout first")
		return nil
	}
	m.Send(authflow.GoToRegisterEvent())
	if !m.Send(authflow.RegisterEvent(email, password)) {
		return fmt.Errorf("register not accepted in state %s", m.State())
	}
	snap, err := await(ctx, m,
		[]authflow.State{authflow.StateRegisterVerifyOtp},
		[]authflow.State{authflow.StateRegisterForm},
	)
	if err != nil {
		return err
	}
	if err := errOf(snap); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		otp, err := c.prompt("OTP sent to " + email + ": ")
		if err != nil {
			return err
		}
		if !m.Send(authflow.VerifyOTPEvent(otp)) {
			return fmt.Errorf("OTP not accepted in state %s", m.State())
		}
		snap, err = await(ctx, m,
			[]authflow.State{authflow.StateAuthorized, authflow.StateLoginIdle},
			[]authflow.State{authflow.StateRegisterVerifyOtp},
		)
		if err != nil {
			return err
		}
		if snap.State == authflow.StateAuthorized {
			c.report(snap)
			return nil
		}
		if snap.State == authflow.StateLoginIdle || attempt == maxOTPAttempts {
			return errOf(snap)
		}
		fmt.Fprintf(c.out, "%s\n", snap.Context.Error.Message)
	}
}

func (c *cli) reset(ctx context.Context, m *authflow.Machine, snap authflow.Snapshot, email string) error {
	if snap.State == authflow.StateAuthorized {
		fmt.Fprintln(c.out, "already logged in; run logout first")
		return nil
	}
	m.Send(authflow.GoToForgotPasswordEvent())
	if !m.Send(authflow.ForgotPasswordEvent(email)) {
		return fmt.Errorf("password reset not accepted in state %s", m.State())
	}
	snap, err := await(ctx, m,
		[]authflow.State{authflow.StateForgotPasswordVerifyOtp},
		[]authflow.State{authflow.StateForgotPasswordIdle},
	)
	if err != nil {
		return err
	}
	if err := errOf(snap); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		otp, err := c.prompt("OTP sent to " + email + ": ")
		if err != nil {
			return err
		}
		if !m.Send(authflow.VerifyOTPEvent(otp)) {
			return fmt.Errorf("OTP not accepted in state %s", m.State())
		}
		snap, err = await(ctx, m,
			[]authflow.State{authflow.StateForgotPasswordResetPassword},
			[]authflow.State{authflow.StateForgotPasswordVerifyOtp},
		)
		if err != nil {
			return err
		}
		if snap.State == authflow.StateForgotPasswordResetPassword {
			break
		}
		if attempt == maxOTPAttempts {
			return errOf(snap)
		}
		fmt.Fprintf(c.out, "%s\n", snap.Context.Error.Message)
	}

	password, err := c.prompt("new password: ")
	if err != nil {
		return err
	}
	if !m.Send(authflow.ResetPasswordEvent(password)) {
		return fmt.Errorf("password reset not accepted in state %s", m.State())
	}
	snap, err = await(ctx, m,
		[]authflow.State{authflow.StateAuthorized, authflow.StateLoginIdle},
		[]authflow.State{authflow.StateForgotPasswordResetPassword},
	)
	if err != nil {
		return err
	}
	if snap.State != authflow.StateAuthorized {
		return errOf(snap)
	}
	c.report(snap)
	return nil
}

func (c *cli) complete(ctx context.Context, m *authflow.Machine, actionToken, password, email string) error {
	if !m.Send(authflow.CompleteRegistrationEvent(actionToken, password, email)) {
		return fmt.Errorf("completion not accepted in state %s", m.State())
	}
	snap, err := await(ctx, m, []authflow.State{authflow.StateAuthorized, authflow.StateLoginIdle}, nil)
	if err != nil {
		return err
	}
	if err := errOf(snap); err != nil {
		return err
	}
	if snap.State == authflow.StateLoginIdle {
		fmt.Fprintln(c.out, "registration complete; log in to continue")
		return nil
	}
	c.report(snap)
	return nil
}

func (c *cli) prompt(label string) (string, error) {
	if c.scanner == nil {
		c.scanner = bufio.NewScanner(c.in)
	}
	fmt.Fprint(c.out, label)
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(c.scanner.Text()), nil
}

// await blocks until the machine settles in one of done, or in one of
// failed with an error recorded.
func await(ctx context.Context, m *authflow.Machine, done, failed []authflow.State) (authflow.Snapshot, error) {
	return m.WaitFor(ctx, func(s authflow.Snapshot) bool {
		if slices.Contains(done, s.State) {
			return true
		}
		return s.Context.Error != nil && slices.Contains(failed, s.State)
	})
}

// errOf returns the snapshot error as an error, nil when none is recorded.
func errOf(s authflow.Snapshot) error {
	if s.Context.Error == nil {
		return nil
	}
	return s.Context.Error
}
