package state

import (
	"github.com/rs/zerolog/log"
)

const (
	// maxCommentDepth bounds the fallback walk over the snapshot tree. The
	// client state is deeply nested and occasionally self-referential after
	// serialization bugs on the site's side; the bound keeps worst-case
	// traversal cost fixed.
	maxCommentDepth = 5

	// maxUserDepth bounds the user-index search.
	maxUserDepth = 3
)

// commentSignals are the fields whose presence marks a map as comment-like.
// A node matching at least two of them is classified as a comment record.
var commentSignals = []string{
	"content", "text", "body",
	"user", "author", "user_info", "userInfo",
	"create_time", "createTime", "time", "timestamp", "created_at",
	"id", "comment_id", "commentId", "cid",
}

// commentContainerKeys name fields that hold comment collections directly.
var commentContainerKeys = map[string]bool{
	"comments":    true,
	"comment":     true,
	"commentList": true,
	"replies":     true,
	"list":        true,
}

// userSignals mark a map as user-like.
var userSignals = []string{
	"nickname", "name", "username",
	"avatar", "avatarUrl",
	"user_id", "userId", "uid", "id",
}

// userContainerKeys name fields that hold user records or indexes.
var userContainerKeys = map[string]bool{
	"user":     true,
	"users":    true,
	"userMap":  true,
	"userInfo": true,
	"author":   true,
}

// Comments returns the raw comment records for a note, in page order.
//
// The primary path is the well-known noteDetailMap location; when it yields
// nothing the depth-bounded fallback walk runs over the whole snapshot. An
// empty result is a valid "no comments visible yet" signal, not a failure.
func Comments(snap *Node, noteID string) []*Node {
	if list := commentList(snap, noteID); len(list) > 0 {
		log.Debug().Int("count", len(list)).Str("note_id", noteID).Msg("Comments found at primary path")
		return list
	}

	found := searchComments(snap, maxCommentDepth)
	if len(found) > 0 {
		log.Debug().Int("count", len(found)).Msg("Comments found by fallback search")
	}
	return found
}

// commentList reads the primary structured location. The map lives under the
// "note" key in current site builds but has moved to the root before, so both
// are probed.
func commentList(snap *Node, noteID string) []*Node {
	for _, base := range []*Node{snap.Get("note"), snap} {
		list := base.Path("noteDetailMap", noteID, "comments", "list")
		if list.Kind() == Array && list.Len() > 0 {
			return list.Items()
		}
	}
	return nil
}

// HasMore reports the snapshot's own pagination flags for a note: whether the
// site claims more comments exist, and whether a load is currently in flight.
// Both default to false when the flags cannot be located.
func HasMore(snap *Node, noteID string) (hasMore, loading bool) {
	for _, base := range []*Node{snap.Get("note"), snap} {
		comments := base.Path("noteDetailMap", noteID, "comments")
		if comments != nil {
			return comments.Get("hasMore").BoolVal(), comments.Get("loading").BoolVal()
		}
	}
	return false, false
}

// searchComments walks the tree collecting comment-like maps. Recursion stops
// at the depth bound regardless of outcome.
func searchComments(n *Node, depth int) []*Node {
	if depth <= 0 || n == nil {
		return nil
	}

	var found []*Node
	switch n.Kind() {
	case Object:
		if looksLikeComment(n) {
			return []*Node{n}
		}
		for key, child := range n.Fields() {
			if commentContainerKeys[key] {
				found = append(found, commentsFromContainer(child)...)
			} else {
				found = append(found, searchComments(child, depth-1)...)
			}
		}
	case Array:
		for _, item := range n.Items() {
			if looksLikeComment(item) {
				found = append(found, item)
			} else {
				found = append(found, searchComments(item, depth-1)...)
			}
		}
	}
	return found
}

// commentsFromContainer classifies each element of a known comment container.
// Containers shaped as {list: [...]} are unwrapped one level.
func commentsFromContainer(n *Node) []*Node {
	var found []*Node
	switch n.Kind() {
	case Array:
		for _, item := range n.Items() {
			if looksLikeComment(item) {
				found = append(found, item)
			}
		}
	case Object:
		if list := n.Get("list"); list.Kind() == Array {
			for _, item := range list.Items() {
				if looksLikeComment(item) {
					found = append(found, item)
				}
			}
		}
	}
	return found
}

func looksLikeComment(n *Node) bool {
	if n.Kind() != Object {
		return false
	}
	hits := 0
	for _, key := range commentSignals {
		if n.Has(key) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

// FindUser searches the snapshot for a user record matching the given id,
// first in the well-known userMap index, then by a depth-bounded walk.
func FindUser(snap *Node, userID string) *Node {
	if userID == "" {
		return nil
	}

	if u := snap.Path("user", "userMap", userID); u.Kind() == Object {
		return u
	}

	return searchUser(snap, userID, maxUserDepth)
}

func searchUser(n *Node, userID string, depth int) *Node {
	if depth <= 0 || n == nil {
		return nil
	}

	switch n.Kind() {
	case Object:
		if looksLikeUser(n) && userMatches(n, userID) {
			return n
		}
		for key, child := range n.Fields() {
			if userContainerKeys[key] {
				if u := userFromContainer(child, userID); u != nil {
					return u
				}
				continue
			}
			if u := searchUser(child, userID, depth-1); u != nil {
				return u
			}
		}
	case Array:
		for _, item := range n.Items() {
			if u := searchUser(item, userID, depth-1); u != nil {
				return u
			}
		}
	}
	return nil
}

func userFromContainer(n *Node, userID string) *Node {
	switch n.Kind() {
	case Object:
		if looksLikeUser(n) && userMatches(n, userID) {
			return n
		}
		// userMap-shaped: id -> record
		if rec := n.Get(userID); rec.Kind() == Object {
			return rec
		}
		for _, child := range n.Fields() {
			if looksLikeUser(child) && userMatches(child, userID) {
				return child
			}
		}
	case Array:
		for _, item := range n.Items() {
			if looksLikeUser(item) && userMatches(item, userID) {
				return item
			}
		}
	}
	return nil
}

func looksLikeUser(n *Node) bool {
	if n.Kind() != Object {
		return false
	}
	hits := 0
	for _, key := range userSignals {
		if n.Has(key) {
			hits++
			if hits >= 2 {
				return true
			}
		}
	}
	return false
}

func userMatches(n *Node, userID string) bool {
	for _, key := range []string{"id", "user_id", "userId"} {
		if n.Get(key).Text() == userID {
			return true
		}
	}
	return false
}
