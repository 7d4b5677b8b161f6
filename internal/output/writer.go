// Package output persists extracted comments to the filesystem: one
// directory per author holding the comment text, a JSON record, and any
// downloaded images, plus a run report at the root.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/redthread-tools/redthread/internal/media"
	"github.com/redthread-tools/redthread/pkg/models"
)

var dirReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
	"\n", "_", "\t", "_", "..", "_",
)

// Writer lays comments out under Dir. Safe for sequential use by one run.
type Writer struct {
	Dir  string
	Pool *media.Pool

	// DownloadImages toggles image retrieval; the URL list is always
	// recorded either way.
	DownloadImages bool
}

// Written reports where one comment landed.
type Written struct {
	Dir        string
	ImagePaths []string
}

// WriteComment persists one comment. position disambiguates authors with
// unusable nicknames. A failed image download is logged and skipped, never
// fatal to the comment itself.
func (w *Writer) WriteComment(ctx context.Context, c models.Comment, position int) (Written, error) {
	nickname := dirReplacer.Replace(strings.TrimSpace(c.Author.Nickname))
	nickname = strings.Trim(nickname, "._ ")
	if nickname == "" {
		nickname = fmt.Sprintf("user_%d", position+1)
	}

	dir := filepath.Join(w.Dir, nickname)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Written{}, fmt.Errorf("failed to create comment directory: %w", err)
	}

	imagePaths := w.resolveImages(c, dir)

	if err := w.writeText(c, dir, imagePaths); err != nil {
		return Written{}, err
	}
	if err := w.writeJSON(c, dir); err != nil {
		return Written{}, err
	}

	if w.DownloadImages && w.Pool != nil && len(c.Images) > 0 {
		jobs := make([]media.Job, len(c.Images))
		for i, u := range c.Images {
			jobs[i] = media.Job{URL: u, DestPath: imagePaths[i]}
		}
		for _, res := range w.Pool.FetchAll(ctx, jobs) {
			if res.Err != nil {
				log.Warn().Err(res.Err).Str("url", res.URL).Msg("Image download failed")
			}
		}
	}

	return Written{Dir: dir, ImagePaths: imagePaths}, nil
}

func (w *Writer) resolveImages(c models.Comment, dir string) []string {
	paths := make([]string, len(c.Images))
	for i, u := range c.Images {
		name := media.ImageName(c.Author.Nickname, c.FormattedTime(), i, u)
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

// writeText renders the human-readable record. The file is keyed by comment
// id so several comments from one author coexist.
func (w *Writer) writeText(c models.Comment, dir string, imagePaths []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Time: %s\n", c.FormattedTime())
	fmt.Fprintf(&b, "Nickname: %s\n", c.Author.Nickname)
	fmt.Fprintf(&b, "User ID: %s\n", c.Author.UserID)
	if c.IPLocation != "" {
		fmt.Fprintf(&b, "IP location: %s\n", c.IPLocation)
	}
	fmt.Fprintf(&b, "Likes: %s\n", c.LikeCount)
	fmt.Fprintf(&b, "Replies: %s\n", c.ReplyCount)
	fmt.Fprintf(&b, "Content: %s\n", c.Content)
	if c.Author.Avatar != "" {
		fmt.Fprintf(&b, "Avatar: %s\n", c.Author.Avatar)
	}
	for i, u := range c.Images {
		fmt.Fprintf(&b, "Image %d: %s -> %s\n", i+1, u, filepath.Base(imagePaths[i]))
	}

	path := filepath.Join(dir, fmt.Sprintf("comment_%s.txt", safeID(c.ID)))
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func (w *Writer) writeJSON(c models.Comment, dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize comment: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("comment_%s.json", safeID(c.ID)))
	return os.WriteFile(path, data, 0644)
}

func safeID(id string) string {
	id = dirReplacer.Replace(id)
	if len(id) > 40 {
		// Byte-cap, then drop any rune cut in half.
		id = strings.ToValidUTF8(id[:40], "")
	}
	return id
}
