package state

import (
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// domCommentSelectors cover the class shapes the comment widgets have used.
var domCommentSelectors = []string{
	".comments-el",
	".comment-item",
	".comment-content",
	"[class*=comment]",
	"[class*=Comment]",
}

// minDOMTextLen filters out icon labels and count badges that match the
// comment selectors.
const minDOMTextLen = 6

// ScrapeDOM is the last-resort extraction path: it pulls comment-looking
// elements straight out of the rendered HTML. The records it yields are
// low fidelity by design: content only, synthetic ids, the current wall
// clock as the timestamp, no structured author.
func ScrapeDOM(html string, now time.Time) []*Node {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Warn().Err(err).Msg("DOM fallback failed to parse HTML")
		return nil
	}

	converter := md.NewConverter("", true, nil)

	var records []*Node
	seen := make(map[string]bool)
	for _, selector := range domCommentSelectors {
		doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
			content := domText(sel, converter)
			if len([]rune(content)) < minDOMTextLen || seen[content] {
				return
			}
			seen[content] = true
			records = append(records, FromAny(map[string]interface{}{
				"id":         fmt.Sprintf("dom_%d", len(records)),
				"content":    content,
				"createTime": float64(now.UnixMilli()),
			}))
		})
	}

	if len(records) > 0 {
		log.Debug().Int("count", len(records)).Msg("Comments scraped from DOM")
	}
	return records
}

// domText renders an element's inner HTML as markdown so emphasis and links
// survive, falling back to plain text when conversion fails.
func domText(sel *goquery.Selection, converter *md.Converter) string {
	if inner, err := sel.Html(); err == nil && inner != "" {
		if text, err := converter.ConvertString(inner); err == nil {
			return strings.TrimSpace(text)
		}
	}
	return strings.TrimSpace(sel.Text())
}
