// Package normalize converts loosely-typed raw comment records into the
// canonical comment shape. Field names in the source vary across site builds,
// so every field is probed through an ordered accessor chain.
package normalize

import (
	"fmt"
	"time"

	"github.com/redthread-tools/redthread/internal/state"
	"github.com/redthread-tools/redthread/pkg/models"
)

const anonymousNickname = "Anonymous"

// Comment normalizes one raw record. The snapshot is consulted for the user
// index when the record has no embedded author. position is the record's
// index within its batch and seeds the fallback id. ok is false when the
// record carries neither content nor images and should be dropped.
//
// Output is deterministic given identical input and the same now.
func Comment(raw, snap *state.Node, position int, now time.Time) (c models.Comment, ok bool) {
	if raw.Kind() != state.Object {
		return models.Comment{}, false
	}

	c.ID = state.FirstNonEmpty(raw, "id", "commentId", "comment_id", "cid").Text()
	if c.ID == "" {
		c.ID = fmt.Sprintf("idx_%d", position)
	}

	c.Content = state.FirstNonEmpty(raw, "content", "text", "body").Str()
	c.Author = author(raw, snap)
	c.CreateTimeMs = createTime(raw, now)
	c.Images = images(raw)
	c.IPLocation = raw.Get("ipLocation").Str()

	c.LikeCount = state.FirstNonEmpty(raw, "likeCount", "like_count").Text()
	if c.LikeCount == "" {
		c.LikeCount = "0"
	}
	c.ReplyCount = state.FirstNonEmpty(raw, "subCommentCount", "sub_comment_count", "replyCount").Text()
	if c.ReplyCount == "" {
		c.ReplyCount = "0"
	}

	if c.Content == "" && len(c.Images) == 0 {
		return models.Comment{}, false
	}
	return c, true
}

// author prefers the record's embedded userInfo object, then resolves the
// probed user id against the snapshot's user index, then synthesizes an
// anonymous author so downstream code never sees an empty one.
func author(raw, snap *state.Node) models.Author {
	if info := state.FirstNonEmpty(raw, "userInfo", "user_info", "user", "author"); info.Kind() == state.Object {
		return models.Author{
			Nickname: firstText(info, anonymousNickname, "nickname", "name", "username"),
			UserID:   state.FirstNonEmpty(info, "userId", "user_id", "uid", "id").Text(),
			Avatar:   state.FirstNonEmpty(info, "image", "avatar", "avatarUrl").Str(),
		}
	}

	userID := state.FirstNonEmpty(raw, "user_id", "userId", "uid").Text()
	if rec := state.FindUser(snap, userID); rec != nil {
		return models.Author{
			Nickname: firstText(rec, anonymousNickname, "nickname", "name", "username"),
			UserID:   userID,
			Avatar:   state.FirstNonEmpty(rec, "avatar", "avatarUrl", "image").Str(),
		}
	}

	return models.Author{Nickname: anonymousNickname, UserID: userID}
}

func firstText(n *state.Node, fallback string, keys ...string) string {
	if v := state.FirstNonEmpty(n, keys...); v != nil {
		if s := v.Text(); s != "" {
			return s
		}
	}
	return fallback
}

func createTime(raw *state.Node, now time.Time) int64 {
	v := state.FirstNonEmpty(raw, "createTime", "create_time", "time", "timestamp", "created_at")
	return ParseTime(v, now)
}

// images accepts both plain URL strings and image objects, probing the URL
// field variants in priority order.
func images(raw *state.Node) []string {
	list := state.FirstNonEmpty(raw, "images", "pictures", "pics")
	if list.Kind() != state.Array {
		return nil
	}

	var urls []string
	for _, item := range list.Items() {
		switch item.Kind() {
		case state.String:
			if item.Str() != "" {
				urls = append(urls, item.Str())
			}
		case state.Object:
			if u := state.FirstNonEmpty(item, "url_default", "url", "src", "urlDefault"); u.Str() != "" {
				urls = append(urls, u.Str())
			}
		}
	}
	return urls
}
