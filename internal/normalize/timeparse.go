package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redthread-tools/redthread/internal/state"
)

// Epoch values above this are milliseconds; at or below, seconds.
const msThreshold = 1e12

var relativePatterns = []struct {
	re   *regexp.Regexp
	unit time.Duration
}{
	{regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?) ago`), time.Minute},
	{regexp.MustCompile(`(\d+)\s*hours? ago`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*days? ago`), 24 * time.Hour},
	{regexp.MustCompile(`(\d+)\s*分钟前`), time.Minute},
	{regexp.MustCompile(`(\d+)\s*小时前`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*天前`), 24 * time.Hour},
}

// ParseTime converts a raw timestamp node into epoch milliseconds. Four forms
// are accepted: relative strings ("2 hours ago", "3天前"), ISO-8601 strings,
// and numeric epoch values in seconds or milliseconds. Anything unparseable
// yields now rather than failing the record.
func ParseTime(v *state.Node, now time.Time) int64 {
	switch v.Kind() {
	case state.Number:
		return epochMillis(v.Num())
	case state.String:
		return parseTimeString(v.Str(), now)
	default:
		return now.UnixMilli()
	}
}

func epochMillis(n float64) int64 {
	if n > msThreshold {
		return int64(n)
	}
	return int64(n) * 1000
}

func parseTimeString(s string, now time.Time) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.UnixMilli()
	}

	for _, p := range relativePatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				break
			}
			return now.Add(-time.Duration(n) * p.unit).UnixMilli()
		}
	}

	if strings.Contains(s, "T") {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli()
			}
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochMillis(f)
	}

	return now.UnixMilli()
}
