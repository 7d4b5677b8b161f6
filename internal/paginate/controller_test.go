package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redthread-tools/redthread/pkg/models"
)

const testNoteID = "abc123def456"

// fakeDriver serves a scripted sequence of client-state snapshots. Each
// load-more trigger advances to the next page; the last page repeats.
type fakeDriver struct {
	pages     []string
	page      int
	evalErr   error
	htmlErr   error
	html      string
	evalCalls int
	clicks    int
	scrolls   int
}

func (f *fakeDriver) Evaluate(ctx context.Context, expr string, out interface{}) error {
	f.evalCalls++
	if f.evalErr != nil {
		return f.evalErr
	}
	if s, ok := out.(*string); ok {
		f.page = min(f.page, len(f.pages)-1)
		*s = f.pages[f.page]
	}
	return nil
}

func (f *fakeDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return nil
}

func (f *fakeDriver) Count(ctx context.Context, selector string) (int, error) { return 0, nil }
func (f *fakeDriver) Click(ctx context.Context, selector string) error        { return nil }

func (f *fakeDriver) ScrollToBottom(ctx context.Context) error {
	f.scrolls++
	if f.page < len(f.pages)-1 {
		f.page++
	}
	return nil
}

func (f *fakeDriver) DispatchScroll(ctx context.Context) error { return nil }

func (f *fakeDriver) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (f *fakeDriver) OuterHTML(ctx context.Context) (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return f.html, nil
}

func (f *fakeDriver) Title(ctx context.Context) (string, error)    { return "test", nil }
func (f *fakeDriver) Location(ctx context.Context) (string, error) { return "", nil }
func (f *fakeDriver) Close() error                                 { return nil }

// pageState builds a client-state JSON string holding comments firstID
// through lastID inclusive. Timestamps descend with the id so "newest first"
// means ascending id order reversed.
func pageState(t *testing.T, firstID, lastID int, hasMore bool) string {
	t.Helper()
	var list []map[string]interface{}
	for i := firstID; i <= lastID; i++ {
		list = append(list, map[string]interface{}{
			"id":         fmt.Sprintf("c%03d", i),
			"content":    fmt.Sprintf("comment %d", i),
			"createTime": int64(1700000000000) + int64(i)*1000,
			"userInfo":   map[string]interface{}{"nickname": "u", "userId": "u1"},
		})
	}
	snap := map[string]interface{}{
		"note": map[string]interface{}{
			"noteDetailMap": map[string]interface{}{
				testNoteID: map[string]interface{}{
					"comments": map[string]interface{}{
						"list":    list,
						"hasMore": hasMore,
						"loading": false,
					},
				},
			},
		},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return string(data)
}

func newController(drv *fakeDriver) *Controller {
	return &Controller{
		Driver:        drv,
		Settle:        time.Millisecond,
		MaxIterations: DefaultMaxIterations,
		Now:           func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRun_ExhaustsThreePages(t *testing.T) {
	// 25 comments over pages of 10, 20 (cumulative), 25. The rendered list
	// grows in place, matching how the site accumulates batches.
	drv := &fakeDriver{pages: []string{
		pageState(t, 1, 10, true),
		pageState(t, 1, 20, true),
		pageState(t, 1, 25, false),
	}}

	res, err := newController(drv).Run(context.Background(), "http://x/explore/"+testNoteID, testNoteID, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonExhausted {
		t.Errorf("Reason = %q, want exhausted", res.Reason)
	}
	if len(res.Comments) != 25 {
		t.Fatalf("Collected %d comments, want 25", len(res.Comments))
	}

	ids := make(map[string]bool)
	for _, c := range res.Comments {
		if ids[c.ID] {
			t.Errorf("Duplicate id %q", c.ID)
		}
		ids[c.ID] = true
	}
	for i := 1; i < len(res.Comments); i++ {
		if res.Comments[i-1].CreateTimeMs < res.Comments[i].CreateTimeMs {
			t.Errorf("Comments not newest-first at index %d", i)
			break
		}
	}
	if res.Comments[0].ID != "c025" {
		t.Errorf("Newest comment = %q, want c025", res.Comments[0].ID)
	}
}

func TestRun_QuotaTruncatesExactly(t *testing.T) {
	drv := &fakeDriver{pages: []string{
		pageState(t, 1, 10, true),
		pageState(t, 1, 20, true),
		pageState(t, 1, 25, false),
	}}

	res, err := newController(drv).Run(context.Background(), "http://x", testNoteID, 12)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonQuota {
		t.Errorf("Reason = %q, want quota", res.Reason)
	}
	if len(res.Comments) != 12 {
		t.Errorf("Collected %d comments, want exactly 12", len(res.Comments))
	}
}

func TestRun_NoProgressBeatsHasMore(t *testing.T) {
	// Second capture repeats the first batch while still claiming hasMore.
	drv := &fakeDriver{pages: []string{
		pageState(t, 1, 10, true),
		pageState(t, 1, 10, true),
	}}

	res, err := newController(drv).Run(context.Background(), "http://x", testNoteID, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonNoProgress {
		t.Errorf("Reason = %q, want no_progress", res.Reason)
	}
	if len(res.Comments) != 10 {
		t.Errorf("Collected %d comments, want 10", len(res.Comments))
	}
}

func TestRun_EmptyExhaustedIsNotNoProgress(t *testing.T) {
	// Zero comments with hasMore=false is exhaustion of an empty thread,
	// distinguishable from a stalled page.
	drv := &fakeDriver{pages: []string{pageState(t, 1, 0, false)}}

	res, err := newController(drv).Run(context.Background(), "http://x", testNoteID, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonExhausted {
		t.Errorf("Reason = %q, want exhausted", res.Reason)
	}
	if len(res.Comments) != 0 {
		t.Errorf("Collected %d comments, want 0", len(res.Comments))
	}
}

func TestRun_MaxIterations(t *testing.T) {
	// Every page yields new comments and claims more; only the cap stops it.
	var pages []string
	for i := 0; i < 10; i++ {
		pages = append(pages, pageState(t, 1, (i+1)*5, true))
	}
	drv := &fakeDriver{pages: pages}

	ctl := newController(drv)
	ctl.MaxIterations = 3
	res, err := ctl.Run(context.Background(), "http://x", testNoteID, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonMaxIterations {
		t.Errorf("Reason = %q, want max_iterations", res.Reason)
	}
	if res.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", res.Iterations)
	}
	if len(res.Comments) != 15 {
		t.Errorf("Collected %d comments, want 15", len(res.Comments))
	}
}

type recordingSink struct {
	ids []string
}

func (r *recordingSink) OnComment(c models.Comment) { r.ids = append(r.ids, c.ID) }

func TestRun_SinkStreamsEveryKeptComment(t *testing.T) {
	drv := &fakeDriver{pages: []string{
		pageState(t, 1, 10, true),
		pageState(t, 1, 20, true),
		pageState(t, 1, 25, false),
	}}

	sink := &recordingSink{}
	ctl := newController(drv)
	ctl.Sink = sink
	res, err := ctl.Run(context.Background(), "http://x", testNoteID, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.ids) != len(res.Comments) {
		t.Fatalf("Sink saw %d comments, result has %d", len(sink.ids), len(res.Comments))
	}
	// Streamed in collection order, each id exactly once.
	for i, id := range sink.ids {
		want := fmt.Sprintf("c%03d", i+1)
		if id != want {
			t.Errorf("Sink id[%d] = %q, want %q", i, id, want)
		}
	}
}

func TestRun_SinkHonorsQuota(t *testing.T) {
	drv := &fakeDriver{pages: []string{
		pageState(t, 1, 10, true),
		pageState(t, 1, 20, true),
	}}

	sink := &recordingSink{}
	ctl := newController(drv)
	ctl.Sink = sink
	res, err := ctl.Run(context.Background(), "http://x", testNoteID, 12)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonQuota {
		t.Errorf("Reason = %q, want quota", res.Reason)
	}
	if len(sink.ids) != 12 {
		t.Errorf("Sink saw %d comments, want exactly 12", len(sink.ids))
	}
}

func TestRun_FirstIterationFailureIsFatal(t *testing.T) {
	drv := &fakeDriver{
		evalErr: errors.New("page crashed"),
		htmlErr: errors.New("page gone"),
	}

	_, err := newController(drv).Run(context.Background(), "http://x", testNoteID, 0)
	if err == nil {
		t.Fatal("Expected fatal error on first-iteration failure")
	}
}

func TestRun_LaterFailureKeepsPartial(t *testing.T) {
	drv := &fakeDriver{pages: []string{pageState(t, 1, 10, true)}}

	calls := 0
	ctl := newController(drv)
	// Fail the second capture by swapping in errors after the first.
	ctl.Progress = func(added, total int) {
		calls++
		if calls == 1 {
			drv.evalErr = errors.New("browser died")
			drv.htmlErr = errors.New("browser died")
		}
	}

	res, err := ctl.Run(context.Background(), "http://x", testNoteID, 0)
	if err != nil {
		t.Fatalf("Run surfaced fatal error on later iteration: %v", err)
	}
	if res.Reason != models.ReasonError {
		t.Errorf("Reason = %q, want error", res.Reason)
	}
	if res.Err == nil {
		t.Error("Result.Err not set for partial run")
	}
	if len(res.Comments) != 10 {
		t.Errorf("Partial result has %d comments, want 10", len(res.Comments))
	}
}

func TestRun_DOMFallbackWhenStateMissing(t *testing.T) {
	drv := &fakeDriver{
		evalErr: errors.New("no client state"),
		html: `<html><body>
			<div class="comment-item">a long enough comment body</div>
			<div class="comment-item">another long enough body</div>
		</body></html>`,
	}

	res, err := newController(drv).Run(context.Background(), "http://x", testNoteID, 0)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Reason != models.ReasonExhausted {
		t.Errorf("Reason = %q, want exhausted", res.Reason)
	}
	if len(res.Comments) != 2 {
		t.Errorf("Collected %d comments from DOM, want 2", len(res.Comments))
	}
}
