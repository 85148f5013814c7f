package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validTweetMap() map[string]any {
	return map[string]any{
		"author_id":              "44196397",
		"conversation_id":        "1488888888888888888",
		"created_at":             "2022-02-05T18:31:22.000Z",
		"edit_history_tweet_ids": []any{"1488888888888888888"},
		"entities":               map[string]any{},
		"id":                     "1488888888888888888",
		"lang":                   "en",
		"possibly_sensitive":     false,
		"public_metrics": map[string]any{
			"retweet_count": 3, "reply_count": 1, "like_count": 10,
			"quote_count": 0, "bookmark_count": 0, "impression_count": 0,
		},
		"text": "Honk honk &amp; hold the line #HonkHonk @someone https://t.co/abc123",
	}
}

func TestTweetFromMapRequiredKeys(t *testing.T) {
	for _, key := range tweetRequiredKeys {
		raw := validTweetMap()
		delete(raw, key)
		_, err := TweetFromMap(raw)
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Fatalf("missing %q: expected SchemaError, got %v", key, err)
		}
	}
}

func TestTweetFromMapCoercesLargeIDsToStrings(t *testing.T) {
	// Decode the way the loader does: UseNumber keeps 2^63-scale ids intact.
	blob := `{"id": 1423712307616643072, "author_id": 9223372036854775807}`
	dec := json.NewDecoder(strings.NewReader(blob))
	dec.UseNumber()
	var ids map[string]any
	if err := dec.Decode(&ids); err != nil { t.Fatal(err) }

	raw := validTweetMap()
	raw["id"] = ids["id"]
	raw["author_id"] = ids["author_id"]
	tw, err := TweetFromMap(raw)
	if err != nil { t.Fatal(err) }
	if tw.ID != "1423712307616643072" {
		t.Fatalf("id truncated: %s", tw.ID)
	}
	if tw.AuthorID != "9223372036854775807" {
		t.Fatalf("author_id truncated: %s", tw.AuthorID)
	}
}

func TestTweetFromMapBadTimestamp(t *testing.T) {
	raw := validTweetMap()
	raw["created_at"] = "2022-02-05 18:31:22"
	_, err := TweetFromMap(raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestTweetFromMapNegativeCounter(t *testing.T) {
	raw := validTweetMap()
	raw["public_metrics"] = map[string]any{"retweet_count": -1}
	_, err := TweetFromMap(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestTweetFromMapDecodesHTMLEntities(t *testing.T) {
	tw, err := TweetFromMap(validTweetMap())
	if err != nil { t.Fatal(err) }
	if !strings.Contains(tw.Text, "Honk honk & hold the line") {
		t.Fatalf("entities not decoded: %q", tw.Text)
	}
}

func TestTweetDerivedProperties(t *testing.T) {
	raw := validTweetMap()
	raw["text"] = "RT @driver: #HonkHonk #2022 #a #HoldTheLine check https://example.com/x?a=1 now"
	raw["referenced_tweets"] = []any{map[string]any{"type": "retweeted", "id": "99"}}
	tw, err := TweetFromMap(raw)
	if err != nil { t.Fatal(err) }

	tags := tw.Hashtags()
	if len(tags) != 2 || tags[0] != "honkhonk" || tags[1] != "holdtheline" {
		t.Fatalf("hashtags: %v", tags)
	}
	if m := tw.Mentions(); len(m) != 1 || m[0] != "driver" {
		t.Fatalf("mentions: %v", m)
	}
	// Path and query must be consumed too, not just the host.
	if u := tw.URLs(); len(u) != 1 || u[0] != "https://example.com/x?a=1" {
		t.Fatalf("urls: %v", u)
	}
	isRT, err := tw.IsRetweet()
	if err != nil || !isRT {
		t.Fatalf("expected retweet, got %v %v", isRT, err)
	}
	if !tw.IsValid() {
		t.Fatal("well-formed retweet should be valid")
	}
	if tw.IsReply() {
		t.Fatal("not a reply")
	}
}

func TestRetweetWithoutPrefixAsymmetry(t *testing.T) {
	raw := validTweetMap()
	raw["text"] = "@someone's account is temporarily unavailable. Learn more."
	raw["referenced_tweets"] = []any{map[string]any{"type": "retweeted", "id": "99"}}
	tw, err := TweetFromMap(raw)
	if err != nil { t.Fatal(err) }

	// IsValid reports, IsRetweet fails: two distinct behaviors.
	if tw.IsValid() {
		t.Fatal("expected invalid")
	}
	if _, err := tw.IsRetweet(); err == nil {
		t.Fatal("expected IsRetweet error")
	}
}

func TestSanitizedTextHidesMentionsAndURLs(t *testing.T) {
	raw := validTweetMap()
	raw["text"] = "RT @driver: convoy\nrolling   @copilot https://example.com/path?q=convoy&p=2 end"
	tw, err := TweetFromMap(raw)
	if err != nil { t.Fatal(err) }

	got := tw.SanitizedText()
	if strings.Contains(got, "@driver") || strings.Contains(got, "@copilot") {
		t.Fatalf("mention leaked: %q", got)
	}
	for _, frag := range []string{"https://", "example.com", "path", "q=convoy"} {
		if strings.Contains(got, frag) {
			t.Fatalf("url fragment %q leaked: %q", frag, got)
		}
	}
	if strings.Contains(got, "\n") || strings.Contains(got, "  ") {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
	if !strings.Contains(got, "@AnonymizedUser") || !strings.Contains(got, "[AnonymizedURL]") {
		t.Fatalf("placeholders missing: %q", got)
	}
}

func TestFilterByDateInclusive(t *testing.T) {
	mk := func(ts string) Tweet {
		raw := validTweetMap()
		raw["created_at"] = ts
		tw, err := TweetFromMap(raw)
		if err != nil { t.Fatal(err) }
		return tw
	}
	tweets := []Tweet{
		mk("2022-01-01T00:00:00.000Z"),
		mk("2022-02-15T12:00:00.000Z"),
		mk("2022-04-01T00:00:00.000Z"),
	}
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	got := FilterByDate(tweets, start, end)
	if len(got) != 2 {
		t.Fatalf("expected 2 tweets in range, got %d", len(got))
	}
}
