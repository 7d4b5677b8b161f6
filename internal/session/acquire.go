package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/redthread-tools/redthread/internal/browser"
	"github.com/redthread-tools/redthread/internal/retry"
)

const (
	loginURL = "https://www.xiaohongshu.com"

	// Interactive login is bounded; past this the ladder gives up.
	interactiveTimeout = 300 * time.Second
	loginPollInterval  = 5 * time.Second
)

// ErrAuthUnavailable is returned when every rung of the acquisition ladder
// failed to produce a usable session.
var ErrAuthUnavailable = errors.New("no usable session: cached, profile, and interactive acquisition all failed")

var (
	errValidationFailed = errors.New("session failed validation")
	errNoCredentials    = errors.New("cookie jar carries no login credentials")
	errNoCookieAccess   = errors.New("driver does not expose its cookie jar")
)

// CookieReader is implemented by drivers that can expose their cookie jar.
type CookieReader interface {
	Cookies(ctx context.Context) ([]browser.Cookie, error)
}

// Acquirer runs the session acquisition ladder.
type Acquirer struct {
	Store *Store
	Open  DriverFactory

	// Base browser options; ProfileDir and Cookies are overridden per rung.
	Base browser.Options

	// ProfileDir is the persistent profile consulted on the second rung.
	// Empty skips that rung.
	ProfileDir string

	// Interactive enables the third rung, which opens a visible browser and
	// waits for the user to log in.
	Interactive bool

	// Retry governs per-rung attempts against transient browser failures.
	// The zero value selects retry.DefaultConfig.
	Retry retry.Config
}

func (a *Acquirer) retryConfig() retry.Config {
	if a.Retry.MaxAttempts > 0 {
		return a.Retry
	}
	return retry.DefaultConfig()
}

// Acquire returns a validated session for name. The ladder: cached store
// entry, then cookie extraction from a logged-in profile, then interactive
// login. Each rung retries transient failures on its own before the ladder
// moves on. Stale or invalid cached sessions are removed.
func (a *Acquirer) Acquire(ctx context.Context, name string) (*Session, error) {
	if s := a.fromCache(ctx, name); s != nil {
		return s, nil
	}
	if s := a.fromProfile(ctx, name); s != nil {
		return s, nil
	}
	if a.Interactive {
		if s, err := a.fromInteractive(ctx, name); err == nil {
			return s, nil
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return nil, ErrAuthUnavailable
}

func (a *Acquirer) fromCache(ctx context.Context, name string) *Session {
	s, err := a.Store.Load(name)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			log.Info().Str("session", name).Msg("Cached session expired, removing")
			_ = a.Store.Delete(name)
		}
		return nil
	}

	err = retry.Do(ctx, a.retryConfig(), func() error {
		if !Validate(ctx, a.Open, s, a.Base) {
			return errValidationFailed
		}
		return nil
	})
	if err != nil {
		log.Info().Str("session", name).Msg("Cached session failed validation, removing")
		_ = a.Store.Delete(name)
		return nil
	}

	s.ValidatedAt = time.Now()
	_ = a.Store.Save(s)
	log.Debug().Str("session", name).Dur("age", s.Age()).Msg("Using cached session")
	return s
}

// fromProfile lifts cookies from the persistent profile. A profile the user
// has logged into before carries the credentials already.
func (a *Acquirer) fromProfile(ctx context.Context, name string) *Session {
	if a.ProfileDir == "" {
		return nil
	}

	var s *Session
	err := retry.Do(ctx, a.retryConfig(), func() error {
		got, err := a.profileOnce(ctx, name)
		if err != nil {
			return err
		}
		s = got
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("profile", a.ProfileDir).Msg("Profile extraction failed")
		return nil
	}

	s.ValidatedAt = time.Now()
	if err := a.Store.Save(s); err != nil {
		log.Warn().Err(err).Msg("Failed to persist profile session")
	}
	log.Info().Str("session", name).Msg("Session extracted from browser profile")
	return s
}

func (a *Acquirer) profileOnce(ctx context.Context, name string) (*Session, error) {
	opts := a.Base
	opts.ProfileDir = a.ProfileDir
	opts.Cookies = nil

	drv, err := a.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	reader, ok := drv.(CookieReader)
	if !ok {
		return nil, retry.Permanent(errNoCookieAccess)
	}

	if err := drv.Navigate(ctx, loginURL, validateTimeout); err != nil {
		return nil, err
	}
	cookies, err := reader.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	if !HasCredentials(cookies) {
		// Logging in between attempts won't happen; don't retry this.
		return nil, retry.Permanent(errNoCredentials)
	}

	s := &Session{Name: name, Cookies: cookies, AcquiredAt: time.Now()}
	if !Validate(ctx, a.Open, s, a.Base) {
		return nil, errValidationFailed
	}
	return s, nil
}

// fromInteractive opens a visible browser at the site and polls the cookie
// jar until the user completes login or the window times out. Setup failures
// are retried; an elapsed login window is final.
func (a *Acquirer) fromInteractive(ctx context.Context, name string) (*Session, error) {
	var s *Session
	err := retry.Do(ctx, a.retryConfig(), func() error {
		got, err := a.interactiveOnce(ctx, name)
		if err != nil {
			return err
		}
		s = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *Acquirer) interactiveOnce(ctx context.Context, name string) (*Session, error) {
	opts := a.Base
	opts.Headless = false
	opts.ProfileDir = a.ProfileDir
	opts.Cookies = nil

	drv, err := a.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer drv.Close()

	reader, ok := drv.(CookieReader)
	if !ok {
		return nil, retry.Permanent(errNoCookieAccess)
	}

	if err := drv.Navigate(ctx, loginURL, validateTimeout); err != nil {
		return nil, err
	}
	log.Info().
		Dur("timeout", interactiveTimeout).
		Msg("Waiting for interactive login, complete it in the browser window")

	deadline := time.Now().Add(interactiveTimeout)
	for time.Now().Before(deadline) {
		if err := drv.Wait(ctx, loginPollInterval); err != nil {
			return nil, retry.Permanent(err)
		}
		cookies, err := reader.Cookies(ctx)
		if err != nil {
			continue
		}
		if HasCredentials(cookies) {
			now := time.Now()
			s := &Session{Name: name, Cookies: cookies, AcquiredAt: now, ValidatedAt: now}
			if err := a.Store.Save(s); err != nil {
				log.Warn().Err(err).Msg("Failed to persist interactive session")
			}
			log.Info().Str("session", name).Msg("Interactive login captured")
			return s, nil
		}
	}
	// The user had the full window and didn't log in.
	return nil, retry.Permanent(ErrAuthUnavailable)
}
