package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redthread-tools/redthread/internal/browser"
	"github.com/redthread-tools/redthread/internal/retry"
)

// stubDriver presents a logged-in page: no login redirect, no login wall.
type stubDriver struct {
	cookies []browser.Cookie
}

func (d *stubDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return nil
}
func (d *stubDriver) Evaluate(ctx context.Context, expr string, out interface{}) error { return nil }
func (d *stubDriver) Count(ctx context.Context, selector string) (int, error)          { return 0, nil }
func (d *stubDriver) Click(ctx context.Context, selector string) error                 { return nil }
func (d *stubDriver) ScrollToBottom(ctx context.Context) error                         { return nil }
func (d *stubDriver) DispatchScroll(ctx context.Context) error                         { return nil }
func (d *stubDriver) Wait(ctx context.Context, dur time.Duration) error                { return nil }
func (d *stubDriver) OuterHTML(ctx context.Context) (string, error)                    { return "", nil }
func (d *stubDriver) Title(ctx context.Context) (string, error)                        { return "", nil }
func (d *stubDriver) Location(ctx context.Context) (string, error) {
	return validateURL, nil
}
func (d *stubDriver) Close() error { return nil }

func (d *stubDriver) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return d.cookies, nil
}

// flakyFactory fails the first n opens, then hands out drivers carrying the
// given cookies.
func flakyFactory(n int, cookies []browser.Cookie) (DriverFactory, *int) {
	calls := new(int)
	return func(ctx context.Context, opts browser.Options) (browser.Driver, error) {
		*calls++
		if *calls <= n {
			return nil, errors.New("browser failed to start")
		}
		return &stubDriver{cookies: cookies}, nil
	}, calls
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

func testCredentialCookies() []browser.Cookie {
	return []browser.Cookie{
		{Name: "web_session", Value: "abc", Domain: cookieDomain, Path: "/"},
		{Name: "a1", Value: "xyz", Domain: cookieDomain, Path: "/"},
	}
}

func TestAcquire_CacheRungRetriesTransientValidationFailure(t *testing.T) {
	st := NewFileStore(t.TempDir())
	s := &Session{Name: "main", Cookies: testCredentialCookies(), AcquiredAt: time.Now()}
	if err := st.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	open, calls := flakyFactory(1, testCredentialCookies())
	a := &Acquirer{Store: st, Open: open, Retry: fastRetry()}

	got, err := a.Acquire(context.Background(), "main")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got.Name != "main" {
		t.Errorf("Session name = %q, want main", got.Name)
	}
	if *calls != 2 {
		t.Errorf("Factory called %d times, want 2 (one failure, one validation)", *calls)
	}
	if _, err := st.Load("main"); err != nil {
		t.Errorf("Cached session removed despite recovering: %v", err)
	}
}

func TestAcquire_ProfileRungRecoversAfterTransientFailure(t *testing.T) {
	st := NewFileStore(t.TempDir())
	open, calls := flakyFactory(1, testCredentialCookies())
	a := &Acquirer{
		Store:      st,
		Open:       open,
		ProfileDir: t.TempDir(),
		Retry:      fastRetry(),
	}

	got, err := a.Acquire(context.Background(), "main")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !HasCredentials(got.Cookies) {
		t.Errorf("Acquired session carries no credentials: %+v", got.Cookies)
	}
	// One failed open, one profile extraction, one validation.
	if *calls != 3 {
		t.Errorf("Factory called %d times, want 3", *calls)
	}
	if _, err := st.Load("main"); err != nil {
		t.Errorf("Profile session not persisted: %v", err)
	}
}

func TestAcquire_ProfileWithoutCredentialsIsNotRetried(t *testing.T) {
	st := NewFileStore(t.TempDir())
	open, calls := flakyFactory(0, []browser.Cookie{{Name: "tracking", Value: "x"}})
	a := &Acquirer{
		Store:      st,
		Open:       open,
		ProfileDir: t.TempDir(),
		Retry:      fastRetry(),
	}

	_, err := a.Acquire(context.Background(), "main")
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Fatalf("Acquire err = %v, want ErrAuthUnavailable", err)
	}
	// A logged-out profile won't gain credentials between attempts.
	if *calls != 1 {
		t.Errorf("Factory called %d times, want 1", *calls)
	}
}
