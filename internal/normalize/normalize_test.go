package normalize

import (
	"testing"
	"time"

	"github.com/redthread-tools/redthread/internal/state"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func node(t *testing.T, raw string) *state.Node {
	t.Helper()
	n, err := state.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return n
}

func TestComment_FullRecord(t *testing.T) {
	raw := node(t, `{
		"id": "c100",
		"content": "nice one",
		"createTime": 1700000000000,
		"userInfo": {"nickname": "momo", "userId": "u1", "image": "http://a/av.png"},
		"pictures": [{"url_default": "http://img/1.jpg"}, "http://img/2.jpg"],
		"ipLocation": "上海",
		"likeCount": "12",
		"subCommentCount": 3
	}`)

	c, ok := Comment(raw, nil, 0, fixedNow)
	if !ok {
		t.Fatal("Expected record to survive normalization")
	}
	if c.ID != "c100" {
		t.Errorf("ID = %q, want c100", c.ID)
	}
	if c.Author.Nickname != "momo" || c.Author.UserID != "u1" {
		t.Errorf("Author = %+v", c.Author)
	}
	if c.CreateTimeMs != 1700000000000 {
		t.Errorf("CreateTimeMs = %d, want 1700000000000", c.CreateTimeMs)
	}
	if len(c.Images) != 2 || c.Images[0] != "http://img/1.jpg" || c.Images[1] != "http://img/2.jpg" {
		t.Errorf("Images = %v", c.Images)
	}
	if c.IPLocation != "上海" {
		t.Errorf("IPLocation = %q", c.IPLocation)
	}
	if c.LikeCount != "12" || c.ReplyCount != "3" {
		t.Errorf("Counts = %q/%q", c.LikeCount, c.ReplyCount)
	}
}

func TestComment_FallbackID(t *testing.T) {
	raw := node(t, `{"content": "no id here", "createTime": 1700000000}`)

	c, ok := Comment(raw, nil, 7, fixedNow)
	if !ok {
		t.Fatal("Expected record to survive")
	}
	if c.ID != "idx_7" {
		t.Errorf("ID = %q, want idx_7", c.ID)
	}
}

func TestComment_ContentProbeOrder(t *testing.T) {
	raw := node(t, `{"id": "x", "text": "from text field"}`)

	c, ok := Comment(raw, nil, 0, fixedNow)
	if !ok {
		t.Fatal("Expected record to survive")
	}
	if c.Content != "from text field" {
		t.Errorf("Content = %q", c.Content)
	}
}

func TestComment_AuthorFromUserIndex(t *testing.T) {
	raw := node(t, `{"id": "c1", "content": "hi", "user_id": "u9"}`)
	snap := node(t, `{"user": {"userMap": {"u9": {"nickname": "lin", "avatar": "http://a/l.png", "userId": "u9"}}}}`)

	c, ok := Comment(raw, snap, 0, fixedNow)
	if !ok {
		t.Fatal("Expected record to survive")
	}
	if c.Author.Nickname != "lin" || c.Author.UserID != "u9" {
		t.Errorf("Author = %+v, want lin/u9", c.Author)
	}
}

func TestComment_SynthesizedAuthor(t *testing.T) {
	raw := node(t, `{"id": "c1", "content": "hi", "userId": "ghost"}`)

	c, ok := Comment(raw, node(t, `{}`), 0, fixedNow)
	if !ok {
		t.Fatal("Expected record to survive")
	}
	if c.Author.Nickname != "Anonymous" {
		t.Errorf("Nickname = %q, want Anonymous", c.Author.Nickname)
	}
	if c.Author.UserID != "ghost" {
		t.Errorf("UserID = %q, want ghost", c.Author.UserID)
	}
}

func TestComment_DropsEmptyRecord(t *testing.T) {
	raw := node(t, `{"id": "c1", "createTime": 1700000000}`)

	if _, ok := Comment(raw, nil, 0, fixedNow); ok {
		t.Error("Expected record with no content and no images to be dropped")
	}
}

func TestComment_ImagesOnlySurvives(t *testing.T) {
	raw := node(t, `{"id": "c1", "images": ["http://img/x.jpg"]}`)

	c, ok := Comment(raw, nil, 0, fixedNow)
	if !ok {
		t.Fatal("Expected image-only record to survive")
	}
	if len(c.Images) != 1 {
		t.Errorf("Images = %v", c.Images)
	}
}

func TestComment_NonObjectDropped(t *testing.T) {
	if _, ok := Comment(node(t, `"just a string"`), nil, 0, fixedNow); ok {
		t.Error("Expected non-object record to be dropped")
	}
}

func TestParseTime_Relative(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"2 hours ago", fixedNow.Add(-2 * time.Hour).UnixMilli()},
		{"30 minutes ago", fixedNow.Add(-30 * time.Minute).UnixMilli()},
		{"3 days ago", fixedNow.Add(-72 * time.Hour).UnixMilli()},
		{"5小时前", fixedNow.Add(-5 * time.Hour).UnixMilli()},
		{"10分钟前", fixedNow.Add(-10 * time.Minute).UnixMilli()},
		{"1天前", fixedNow.Add(-24 * time.Hour).UnixMilli()},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTime(node(t, `"`+tt.in+`"`), fixedNow)
			if diff := got - tt.want; diff > 1000 || diff < -1000 {
				t.Errorf("ParseTime(%q) = %d, want %d (±1s)", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseTime_TwoHoursAgoExact(t *testing.T) {
	got := ParseTime(node(t, `"2 hours ago"`), fixedNow)
	want := fixedNow.UnixMilli() - 7_200_000
	if got != want {
		t.Errorf("ParseTime = %d, want now - 7200000 = %d", got, want)
	}
}

func TestParseTime_ISO8601RoundTrip(t *testing.T) {
	instant := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	got := ParseTime(node(t, `"2023-11-14T22:13:20Z"`), fixedNow)
	if got != instant.UnixMilli() {
		t.Errorf("ISO parse = %d, want %d", got, instant.UnixMilli())
	}
}

func TestParseTime_EpochDisambiguation(t *testing.T) {
	ms := ParseTime(node(t, `1700000000000`), fixedNow)
	s := ParseTime(node(t, `1700000000`), fixedNow)
	if ms != s {
		t.Errorf("Millisecond and second forms disagree: %d vs %d", ms, s)
	}
	if ms != 1700000000000 {
		t.Errorf("Epoch = %d, want 1700000000000", ms)
	}
}

func TestParseTime_UnparseableDefaultsToNow(t *testing.T) {
	for _, in := range []string{`"gibberish"`, `"昨天"`, `null`, `true`, `""`} {
		got := ParseTime(node(t, in), fixedNow)
		if got != fixedNow.UnixMilli() {
			t.Errorf("ParseTime(%s) = %d, want now", in, got)
		}
	}
}

func TestComment_Deterministic(t *testing.T) {
	raw := node(t, `{"id": "c1", "content": "same", "createTime": "2 hours ago"}`)

	a, _ := Comment(raw, nil, 0, fixedNow)
	b, _ := Comment(raw, nil, 0, fixedNow)
	if a.CreateTimeMs != b.CreateTimeMs || a.ID != b.ID || a.Content != b.Content {
		t.Errorf("Normalization is not deterministic: %+v vs %+v", a, b)
	}
}
