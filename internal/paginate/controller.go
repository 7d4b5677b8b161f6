// Package paginate drives the browser through the comment thread of one
// post: capture client state, extract and normalize a batch, trigger load
// more, repeat until one of the stop conditions fires.
package paginate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/redthread-tools/redthread/internal/browser"
	"github.com/redthread-tools/redthread/internal/normalize"
	"github.com/redthread-tools/redthread/internal/ratelimit"
	"github.com/redthread-tools/redthread/internal/state"
	"github.com/redthread-tools/redthread/pkg/models"
)

const (
	// DefaultSettle is the pause after triggering load-more, giving the page
	// time to fetch and render the next batch.
	DefaultSettle = 3 * time.Second

	// DefaultMaxIterations bounds the worst case to roughly 500 comments at
	// ten per page. A hard safety valve against infinite loops.
	DefaultMaxIterations = 50

	stateExpr = `(function(){try{return JSON.stringify(window.__INITIAL_STATE__)}catch(e){return ""}})()`
)

// Load-more affordances tried in order before falling back to scrolling.
var loadMoreSelectors = []string{
	".show-more",
	".load-more",
	"[class*='show-more']",
}

// Sink receives each comment the moment the run keeps it, in collection
// order, before the final newest-first sort.
type Sink interface {
	OnComment(models.Comment)
}

// Controller runs the pagination loop for one post on one page.
type Controller struct {
	Driver  browser.Driver
	Limiter *ratelimit.DomainLimiter

	Settle        time.Duration
	MaxIterations int

	// Now is the wall clock, replaceable in tests.
	Now func() time.Time

	// Progress, when set, is called after each iteration with the number of
	// comments added and the running total.
	Progress func(added, total int)

	// Sink, when set, streams kept comments as they arrive.
	Sink Sink
}

// Result is the outcome of one pagination run. Comments are sorted newest
// first. Err is set only with ReasonError; earlier iterations' comments are
// still carried (partial success).
type Result struct {
	Comments   []models.Comment
	Reason     models.Reason
	Iterations int
	Err        error
}

// snapshot is one capture of the page, through whichever path succeeded.
type snapshot struct {
	snap    *state.Node
	raw     []*state.Node
	hasMore bool
	loading bool
}

// Run paginates until a stop condition fires. quota <= 0 means unlimited.
// The returned error is non-nil only when the run produced nothing usable:
// a first-iteration failure is fatal, later failures degrade to a partial
// result with ReasonError.
func (c *Controller) Run(ctx context.Context, pageURL, noteID string, quota int) (Result, error) {
	settle := c.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	maxIter := c.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}

	seen := make(map[string]bool)
	var collected []models.Comment

	finish := func(reason models.Reason, iter int, err error) (Result, error) {
		sort.SliceStable(collected, func(i, j int) bool {
			return collected[i].CreateTimeMs > collected[j].CreateTimeMs
		})
		log.Info().
			Str("note_id", noteID).
			Str("reason", string(reason)).
			Int("iterations", iter).
			Int("comments", len(collected)).
			Msg("Pagination finished")
		return Result{Comments: collected, Reason: reason, Iterations: iter, Err: err}, nil
	}

	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			if iter == 1 {
				return Result{}, err
			}
			return finish(models.ReasonError, iter, err)
		}

		snap, err := c.capture(ctx, noteID)
		if err != nil {
			if iter == 1 {
				return Result{}, fmt.Errorf("first extraction failed: %w", err)
			}
			log.Warn().Err(err).Int("iteration", iter).Msg("Iteration failed, keeping partial result")
			return finish(models.ReasonError, iter, err)
		}

		batch := c.normalizeBatch(snap, seen, now())
		newCount := len(batch)

		if quota > 0 && len(collected)+newCount > quota {
			batch = batch[:quota-len(collected)]
		}
		for _, cm := range batch {
			seen[cm.ID] = true
			collected = append(collected, cm)
			if c.Sink != nil {
				c.Sink.OnComment(cm)
			}
		}

		log.Debug().
			Int("iteration", iter).
			Int("new", newCount).
			Int("total", len(collected)).
			Bool("has_more", snap.hasMore).
			Msg("Batch extracted")
		if c.Progress != nil {
			c.Progress(len(batch), len(collected))
		}

		if quota > 0 && len(collected) >= quota {
			return finish(models.ReasonQuota, iter, nil)
		}
		if newCount == 0 {
			// The site served the same page twice. A stalled page wins over
			// its own hasMore flag, except when the page itself also says it
			// is done, which is plain exhaustion.
			if !snap.hasMore && !snap.loading {
				return finish(models.ReasonExhausted, iter, nil)
			}
			return finish(models.ReasonNoProgress, iter, nil)
		}
		if !snap.hasMore && !snap.loading {
			return finish(models.ReasonExhausted, iter, nil)
		}
		if iter >= maxIter {
			return finish(models.ReasonMaxIterations, iter, nil)
		}

		if err := c.loadMore(ctx, pageURL); err != nil {
			if iter == 1 {
				return Result{}, fmt.Errorf("load-more trigger failed: %w", err)
			}
			return finish(models.ReasonError, iter, err)
		}
		if err := c.Driver.Wait(ctx, settle); err != nil {
			return finish(models.ReasonError, iter, err)
		}
	}
}

// capture takes one page snapshot, degrading from live client state to
// inline script parsing to DOM scraping. An empty batch is a valid snapshot,
// not a failure.
func (c *Controller) capture(ctx context.Context, noteID string) (snapshot, error) {
	var js string
	if err := c.Driver.Evaluate(ctx, stateExpr, &js); err == nil && js != "" && js != "undefined" {
		if snap, err := state.Parse([]byte(js)); err == nil {
			hasMore, loading := state.HasMore(snap, noteID)
			return snapshot{
				snap:    snap,
				raw:     state.Comments(snap, noteID),
				hasMore: hasMore,
				loading: loading,
			}, nil
		}
	}

	html, err := c.Driver.OuterHTML(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to read page HTML: %w", err)
	}

	if snap, err := state.ParseInline(html, ""); err == nil {
		hasMore, loading := state.HasMore(snap, noteID)
		log.Debug().Msg("Recovered client state from inline script")
		return snapshot{
			snap:    snap,
			raw:     state.Comments(snap, noteID),
			hasMore: hasMore,
			loading: loading,
		}, nil
	}

	log.Debug().Msg("Client state unavailable, scraping comment DOM")
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return snapshot{raw: state.ScrapeDOM(html, now())}, nil
}

// normalizeBatch converts raw records to canonical comments, keeping only
// unseen ids. Bad records are dropped, never fatal.
func (c *Controller) normalizeBatch(s snapshot, seen map[string]bool, now time.Time) []models.Comment {
	var batch []models.Comment
	for i, raw := range s.raw {
		cm, ok := normalize.Comment(raw, s.snap, i, now)
		if !ok || seen[cm.ID] {
			continue
		}
		seen[cm.ID] = true
		batch = append(batch, cm)
	}
	// Run tracks seen ids itself; undo the temporary marks so truncation in
	// the caller stays consistent.
	for _, cm := range batch {
		delete(seen, cm.ID)
	}
	return batch
}

// loadMore triggers the next batch: click a load-more affordance when one
// exists, else scroll to the bottom, else fire a synthetic scroll event.
func (c *Controller) loadMore(ctx context.Context, pageURL string) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx, pageURL); err != nil {
			return err
		}
	}

	for _, sel := range loadMoreSelectors {
		n, err := c.Driver.Count(ctx, sel)
		if err != nil || n == 0 {
			continue
		}
		if err := c.Driver.Click(ctx, sel); err == nil {
			return nil
		}
	}
	if err := c.Driver.ScrollToBottom(ctx); err == nil {
		return nil
	}
	return c.Driver.DispatchScroll(ctx)
}
