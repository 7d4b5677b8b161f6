package state

import (
	"strings"
	"testing"
	"time"
)

func TestScrapeDOM_ExtractsCommentElements(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	html := `<html><body>
<div class="comment-item">This reply is long enough to keep.</div>
<div class="comment-item">Another visible comment body here.</div>
<div class="comment-item">ok</div>
<div class="sidebar">not a comment</div>
</body></html>`

	records := ScrapeDOM(html, now)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Get("id").Str() != "dom_0" {
		t.Errorf("Expected synthetic id dom_0, got %q", first.Get("id").Str())
	}
	if got := int64(first.Get("createTime").Num()); got != now.UnixMilli() {
		t.Errorf("Expected wall-clock timestamp %d, got %d", now.UnixMilli(), got)
	}
	if first.Get("content").Str() == "" {
		t.Error("Expected non-empty content")
	}
}

func TestScrapeDOM_KeepsInlineFormatting(t *testing.T) {
	html := `<html><body>
<div class="comment-content">check <a href="https://example.com/x">this link</a> out friends</div>
</body></html>`

	records := ScrapeDOM(html, time.Now())
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	content := records[0].Get("content").Str()
	if content == "" {
		t.Fatal("Expected content")
	}
	// Markdown conversion preserves the link target.
	if !strings.Contains(content, "this link") || !strings.Contains(content, "https://example.com/x") {
		t.Errorf("Expected markdown link in content, got %q", content)
	}
}

func TestScrapeDOM_DeduplicatesAcrossSelectors(t *testing.T) {
	// The same element matches both the class-substring and exact selectors.
	html := `<html><body><div class="comment-item">Repeated comment body text.</div></body></html>`

	if records := ScrapeDOM(html, time.Now()); len(records) != 1 {
		t.Errorf("Expected 1 deduplicated record, got %d", len(records))
	}
}
