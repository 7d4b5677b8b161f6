package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Chrome is the chromedp-backed Driver. One Chrome owns one page.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChrome starts a browser and opens a blank page. In persistent mode the
// allocator reuses the profile directory; in ephemeral mode any provided
// cookies are injected before the first navigation.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1280,720"),
		chromedp.UserAgent(ua),
	}

	if path := FindChrome(); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
		log.Debug().Str("profile", opts.ProfileDir).Msg("Using persistent browser profile")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	c := &Chrome{ctx: browserCtx, cancel: cancel, allocCancel: allocCancel}

	// Starting the browser eagerly surfaces missing-binary errors here
	// instead of on first navigation.
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if opts.ProfileDir == "" && len(opts.Cookies) > 0 {
		if err := c.setCookies(opts.Cookies); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to inject cookies: %w", err)
		}
		log.Debug().Int("cookies", len(opts.Cookies)).Msg("Session cookies injected")
	}

	return c, nil
}

func (c *Chrome) setCookies(cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
		}
		if ck.Expires > 0 {
			t := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			p.Expires = &t
		}
		switch ck.SameSite {
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return chromedp.Run(c.ctx, network.SetCookies(params))
}

// Cookies returns the browser's current cookies, used when extracting a
// session from a logged-in profile.
func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(c.run(ctx, 10*time.Second), chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, len(raw))
	for i, ck := range raw {
		cookies[i] = Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  ck.Expires,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		}
	}
	return cookies, nil
}

// run derives a bounded chromedp context that also dies with the caller's.
func (c *Chrome) run(ctx context.Context, timeout time.Duration) context.Context {
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	go func() {
		defer cancel()
		select {
		case <-ctx.Done():
		case <-runCtx.Done():
		}
	}()
	return runCtx
}

// Navigate loads the URL with degrading wait conditions: full body
// visibility, then a short settle after plain navigation, then a bare
// timeout-bounded attempt.
func (c *Chrome) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	err := chromedp.Run(c.run(ctx, timeout),
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("url", url).Msg("Full-load wait failed, retrying with looser condition")

	err = chromedp.Run(c.run(ctx, timeout/2),
		chromedp.Navigate(url),
		chromedp.Sleep(300*time.Millisecond),
	)
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("url", url).Msg("Loose-wait navigation failed, trying bare attempt")

	err = chromedp.Run(c.run(ctx, timeout/3), chromedp.Navigate(url))
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (c *Chrome) Evaluate(ctx context.Context, expr string, out interface{}) error {
	if out == nil {
		var discard []byte
		return chromedp.Run(c.run(ctx, 10*time.Second), chromedp.Evaluate(expr, &discard))
	}
	return chromedp.Run(c.run(ctx, 10*time.Second), chromedp.Evaluate(expr, out))
}

func (c *Chrome) Count(ctx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(c.run(ctx, 5*time.Second),
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return chromedp.Run(c.run(ctx, 3*time.Second),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (c *Chrome) ScrollToBottom(ctx context.Context) error {
	return c.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil)
}

func (c *Chrome) DispatchScroll(ctx context.Context) error {
	return c.Evaluate(ctx, `window.dispatchEvent(new Event('scroll'))`, nil)
}

func (c *Chrome) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Chrome) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(c.run(ctx, 10*time.Second),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	err := chromedp.Run(c.run(ctx, 5*time.Second), chromedp.Title(&title))
	return title, err
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	err := chromedp.Run(c.run(ctx, 5*time.Second), chromedp.Location(&loc))
	return loc, err
}

func (c *Chrome) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}
