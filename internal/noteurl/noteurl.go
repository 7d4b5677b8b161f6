// Package noteurl extracts the target note id from the post URL shapes the
// site is known to serve.
package noteurl

import (
	"errors"
	"regexp"
)

// ErrInvalidURL is returned when no known path shape matches.
var ErrInvalidURL = errors.New("no note id found in URL")

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`explore/([a-fA-F0-9]+)`),
	regexp.MustCompile(`discovery/item/([a-fA-F0-9]+)`),
	regexp.MustCompile(`item/([a-fA-F0-9]+)`),
}

// NoteID extracts the hex note id from a post URL.
func NoteID(rawURL string) (string, error) {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", ErrInvalidURL
}
