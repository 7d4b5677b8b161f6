package models

import "time"

// Author identifies the user who wrote a comment.
type Author struct {
	Nickname string `json:"nickname"`
	UserID   string `json:"user_id"`
	Avatar   string `json:"avatar,omitempty"`
}

// Comment is the canonical shape every raw comment record is normalized to.
//
// ID is never empty (a positional fallback id is synthesized when the source
// record has none) and CreateTimeMs is always epoch milliseconds, never a raw
// relative string.
type Comment struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Author       Author   `json:"author"`
	CreateTimeMs int64    `json:"create_time_ms"`
	Images       []string `json:"images,omitempty"`
	IPLocation   string   `json:"ip_location,omitempty"`
	LikeCount    string   `json:"like_count"`
	ReplyCount   string   `json:"reply_count"`
}

// CreateTime returns the comment timestamp as a time.Time.
func (c Comment) CreateTime() time.Time {
	return time.UnixMilli(c.CreateTimeMs)
}

// FormattedTime renders the comment timestamp the way output filenames and
// report lines expect it.
func (c Comment) FormattedTime() string {
	return c.CreateTime().Format("2006-01-02 15:04:05")
}

// Reason explains why a pagination run stopped.
type Reason string

const (
	// ReasonQuota means the run collected the requested number of comments.
	ReasonQuota Reason = "quota"
	// ReasonExhausted means the page reported no further comments.
	ReasonExhausted Reason = "exhausted"
	// ReasonNoProgress means the page kept returning already-seen comments.
	ReasonNoProgress Reason = "no_progress"
	// ReasonMaxIterations means the iteration safety valve fired.
	ReasonMaxIterations Reason = "max_iterations"
	// ReasonError means a later-iteration failure stopped the run with
	// whatever had been collected so far.
	ReasonError Reason = "error"
)

// RunOptions configures one extraction run for a single post URL.
type RunOptions struct {
	URL string

	// Cookie is an optional credential string ("name=value; name=value").
	// When empty the session store's automatic acquisition is used.
	Cookie string

	// MaxComments caps the number of comments returned. 0 means unlimited.
	MaxComments int

	// MaxIterations bounds the pagination loop. 0 selects the default (50).
	MaxIterations int

	Headless bool

	// ProfileDir enables the persistent browser profile so login state
	// survives across runs. Empty selects an ephemeral context.
	ProfileDir string

	// SettleDelay is the wait after triggering a load-more before the next
	// snapshot. 0 selects the default (3s).
	SettleDelay time.Duration

	// Deadline optionally bounds the whole run in wall-clock time.
	Deadline time.Time

	// OutputDir is where the per-comment tree is written. Empty disables
	// filesystem output.
	OutputDir string

	// DownloadImages controls whether comment images are fetched.
	DownloadImages bool

	Proxy     string
	UserAgent string
	Timeout   time.Duration
}

// RunResult is the final product of a pagination run: the collected comments
// sorted newest first, plus the reason the loop stopped.
type RunResult struct {
	NoteID     string    `json:"note_id"`
	URL        string    `json:"url"`
	Comments   []Comment `json:"comments"`
	Reason     Reason    `json:"reason"`
	Iterations int       `json:"iterations"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
