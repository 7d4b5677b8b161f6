package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/redthread-tools/redthread/internal/browser"
)

const (
	validateURL     = "https://www.xiaohongshu.com/explore"
	validateTimeout = 20 * time.Second
)

// Selectors that only render for a logged-in user.
var loggedInSelectors = []string{
	".user .link-wrapper",
	".user-avatar",
	".reds-avatar",
}

// Selectors of the login wall shown to anonymous visitors.
var loginWallSelectors = []string{
	".login-container",
	".login-btn",
}

// DriverFactory opens a browser with the given options. Injected so this
// package never depends on a concrete driver.
type DriverFactory func(ctx context.Context, opts browser.Options) (browser.Driver, error)

// Validate checks a session against the live site in an isolated browser
// context. It reports false on any failure rather than erroring; a session
// that cannot be validated is treated as invalid.
func Validate(ctx context.Context, open DriverFactory, s *Session, base browser.Options) bool {
	if s == nil || !HasCredentials(s.Cookies) {
		return false
	}

	opts := base
	opts.ProfileDir = ""
	opts.Cookies = s.Cookies

	drv, err := open(ctx, opts)
	if err != nil {
		log.Warn().Err(err).Msg("Session validation could not open a browser")
		return false
	}
	defer drv.Close()

	if err := drv.Navigate(ctx, validateURL, validateTimeout); err != nil {
		log.Warn().Err(err).Msg("Session validation navigation failed")
		return false
	}

	loc, err := drv.Location(ctx)
	if err != nil {
		return false
	}

	var avatars, walls int
	for _, sel := range loggedInSelectors {
		if n, err := drv.Count(ctx, sel); err == nil {
			avatars += n
		}
	}
	for _, sel := range loginWallSelectors {
		if n, err := drv.Count(ctx, sel); err == nil {
			walls += n
		}
	}

	ok := evaluateMarkers(loc, avatars, walls)
	log.Debug().
		Str("location", loc).
		Int("avatar_markers", avatars).
		Int("login_walls", walls).
		Bool("valid", ok).
		Msg("Session validated")
	return ok
}

// evaluateMarkers decides logged-in state from the post-navigation URL and
// DOM marker counts. A login redirect or a visible login wall loses to any
// number of avatar markers only when both disagree; redirects are decisive.
func evaluateMarkers(location string, avatars, walls int) bool {
	if strings.Contains(location, "/login") {
		return false
	}
	if avatars > 0 {
		return true
	}
	return walls == 0 && location != ""
}
