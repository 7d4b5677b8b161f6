// Package app wires the extraction pipeline: note id parsing, session
// acquisition, the browser driver, the pagination loop, and output writing.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/redthread-tools/redthread/internal/browser"
	"github.com/redthread-tools/redthread/internal/media"
	"github.com/redthread-tools/redthread/internal/noteurl"
	"github.com/redthread-tools/redthread/internal/output"
	"github.com/redthread-tools/redthread/internal/paginate"
	"github.com/redthread-tools/redthread/internal/ratelimit"
	"github.com/redthread-tools/redthread/internal/session"
	"github.com/redthread-tools/redthread/pkg/models"
)

const defaultSessionName = "default"

// CommentEvent is delivered once per comment as it becomes available during
// the run. It is the integration point for progress UIs; the pipeline assumes
// nothing about what consumers do with it. ResolvedImagePaths and
// DestinationDir are empty when no output directory is configured.
type CommentEvent struct {
	Nickname           string
	FormattedTime      string
	Content            string
	ImageURLs          []string
	ResolvedImagePaths []string
	DestinationDir     string
}

// App owns the long-lived collaborators shared across runs.
type App struct {
	Store *session.Store
	Open  session.DriverFactory

	// Progress, when set, receives pagination progress per iteration.
	Progress func(added, total int)

	// OnComment, when set, receives each comment as it is collected.
	OnComment func(CommentEvent)
}

// runSink persists and announces comments as the pagination loop keeps them.
type runSink struct {
	ctx    context.Context
	writer *output.Writer // nil when no output directory is configured
	emit   func(CommentEvent)
	n      int
}

func (s *runSink) OnComment(c models.Comment) {
	var written output.Written
	if s.writer != nil {
		w, err := s.writer.WriteComment(s.ctx, c, s.n)
		if err != nil {
			log.Warn().Err(err).Str("comment_id", c.ID).Msg("Failed to write comment")
		} else {
			written = w
		}
	}
	s.n++

	if s.emit != nil {
		s.emit(CommentEvent{
			Nickname:           c.Author.Nickname,
			FormattedTime:      c.FormattedTime(),
			Content:            c.Content,
			ImageURLs:          c.Images,
			ResolvedImagePaths: written.ImagePaths,
			DestinationDir:     written.Dir,
		})
	}
}

// New builds an App with the real browser driver and session store.
func New() (*App, error) {
	store, err := session.NewStore()
	if err != nil {
		return nil, err
	}
	return &App{
		Store: store,
		Open: func(ctx context.Context, opts browser.Options) (browser.Driver, error) {
			return browser.NewChrome(ctx, opts)
		},
	}, nil
}

// Run extracts the comment thread for one post URL. It always returns either
// a result carrying a termination reason, possibly with a partial comment
// list, or an error for the fatal cases: an unrecognizable URL or a
// first-iteration extraction failure.
func (a *App) Run(ctx context.Context, opts models.RunOptions) (*models.RunResult, error) {
	noteID, err := noteurl.NoteID(opts.URL)
	if err != nil {
		return nil, err
	}

	if !opts.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, opts.Deadline)
		defer cancel()
	}

	base := browser.Options{
		Headless:  opts.Headless,
		UserAgent: opts.UserAgent,
		Proxy:     opts.Proxy,
	}

	cookies := a.resolveSession(ctx, opts, base)

	drvOpts := base
	drvOpts.ProfileDir = opts.ProfileDir
	if opts.ProfileDir == "" {
		drvOpts.Cookies = cookies
	}

	drv, err := a.Open(ctx, drvOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	defer drv.Close()

	navTimeout := opts.Timeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	log.Info().Str("note_id", noteID).Str("url", opts.URL).Msg("Opening post")
	if err := drv.Navigate(ctx, opts.URL, navTimeout); err != nil {
		return nil, err
	}

	title, _ := drv.Title(ctx)

	limiter := ratelimit.NewDomainLimiter(2.0, 4)

	sink := &runSink{ctx: ctx, emit: a.OnComment}
	if opts.OutputDir != "" {
		var pool *media.Pool
		if opts.DownloadImages {
			pool = media.NewPool(media.NewFetcher(opts.Timeout, opts.UserAgent, limiter), 4)
		}
		sink.writer = &output.Writer{
			Dir:            opts.OutputDir,
			Pool:           pool,
			DownloadImages: opts.DownloadImages,
		}
	}

	ctl := &paginate.Controller{
		Driver:        drv,
		Limiter:       limiter,
		Settle:        opts.SettleDelay,
		MaxIterations: opts.MaxIterations,
		Progress:      a.Progress,
		Sink:          sink,
	}

	started := time.Now()
	pr, err := ctl.Run(ctx, opts.URL, noteID, opts.MaxComments)
	if err != nil {
		return nil, err
	}

	res := &models.RunResult{
		NoteID:     noteID,
		URL:        opts.URL,
		Comments:   pr.Comments,
		Reason:     pr.Reason,
		Iterations: pr.Iterations,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	if opts.OutputDir != "" {
		if err := output.WriteReport(opts.OutputDir, title, res); err != nil {
			return nil, err
		}
		log.Info().Str("dir", opts.OutputDir).Int("comments", len(res.Comments)).Msg("Output written")
	}
	return res, nil
}

// resolveSession produces login cookies: an explicit credential string wins,
// a persistent profile needs none, otherwise the acquisition ladder runs.
// Failure to authenticate degrades to an anonymous run; some threads are
// readable without login and the result reason stays honest either way.
func (a *App) resolveSession(ctx context.Context, opts models.RunOptions, base browser.Options) []browser.Cookie {
	if opts.Cookie != "" {
		cookies := session.ParseCookieString(opts.Cookie)
		if !session.HasCredentials(cookies) {
			log.Warn().Msg("Provided cookie string carries no credential cookies")
		}
		return cookies
	}
	if opts.ProfileDir != "" {
		return nil
	}

	acq := &session.Acquirer{
		Store:       a.Store,
		Open:        a.Open,
		Base:        base,
		Interactive: !opts.Headless,
	}
	s, err := acq.Acquire(ctx, defaultSessionName)
	if err != nil {
		if errors.Is(err, session.ErrAuthUnavailable) {
			log.Warn().Msg("No session available, continuing anonymously")
			return nil
		}
		log.Warn().Err(err).Msg("Session acquisition failed, continuing anonymously")
		return nil
	}
	return s.Cookies
}
