// Package media resolves deterministic on-disk names for comment images and
// fetches them through a bounded worker pool.
package media

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// maxNameLen caps image filenames so deep output trees stay portable.
const maxNameLen = 80

// Characters replaced in filename components. Covers path separators plus
// the set Windows rejects.
var nameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
	" ", "_", "\n", "_", "\t", "_", "..", "_",
)

// ImageName builds the destination filename for one comment image from the
// author nickname, the comment's formatted time, and the image's position.
// The result is filesystem-safe, deterministic, and capped at 80 characters
// with the extension always preserved.
func ImageName(nickname, formattedTime string, index int, imageURL string) string {
	ext := extensionFor(imageURL)

	stem := nameReplacer.Replace(nickname) + "_" + nameReplacer.Replace(formattedTime)
	stem = strings.Trim(stem, "._")
	if stem == "" {
		stem = "comment"
	}

	suffix := fmt.Sprintf("_%d%s", index, ext)
	if len(stem)+len(suffix) > maxNameLen {
		// Byte-cap, then drop any rune cut in half.
		stem = strings.ToValidUTF8(stem[:maxNameLen-len(suffix)], "")
	}
	return stem + suffix
}

// extensionFor infers the image extension from the URL path, defaulting to
// .jpg when the URL gives nothing usable.
func extensionFor(imageURL string) string {
	u, err := url.Parse(imageURL)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".heic":
		return ext
	default:
		return ".jpg"
	}
}
