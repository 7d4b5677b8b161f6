// Package browser wraps headless-Chrome automation behind a small capability
// interface so the pagination engine and session validation never touch
// chromedp directly.
package browser

import (
	"context"
	"time"
)

// Driver is the capability set the extraction engine needs from a browser
// page. Implementations own exactly one page/tab; all operations apply to it.
type Driver interface {
	// Navigate loads a URL, degrading through progressively looser wait
	// conditions before giving up.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Evaluate runs a JS expression in the page and unmarshals the result
	// into out. Pass nil to discard the result.
	Evaluate(ctx context.Context, expr string, out interface{}) error

	// Count reports how many elements match a CSS selector.
	Count(ctx context.Context, selector string) (int, error)

	// Click clicks the first visible element matching a CSS selector.
	Click(ctx context.Context, selector string) error

	// ScrollToBottom scrolls the page to its full height.
	ScrollToBottom(ctx context.Context) error

	// DispatchScroll fires a synthetic scroll event without moving the page.
	DispatchScroll(ctx context.Context) error

	// Wait sleeps for the given duration or until the context is done.
	Wait(ctx context.Context, d time.Duration) error

	// OuterHTML returns the page's current rendered HTML.
	OuterHTML(ctx context.Context) (string, error)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// Location returns the page's current URL, which may differ from the
	// navigated one after redirects.
	Location(ctx context.Context) (string, error)

	// Close releases the page and, for ephemeral drivers, the browser.
	Close() error
}

// Cookie is a browser cookie in driver-neutral form.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Options configures a driver instance.
type Options struct {
	Headless  bool
	UserAgent string
	Proxy     string

	// ProfileDir selects persistent mode: the browser reuses this on-disk
	// profile so login state survives across runs. Empty selects an
	// ephemeral context with Cookies injected at setup.
	ProfileDir string

	// Cookies are injected before first navigation in ephemeral mode.
	Cookies []Cookie
}
