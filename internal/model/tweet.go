package model

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// CreatedAtLayout is the only timestamp format present in the crawl dumps and
// the campaign spreadsheet. Anything else is a ParseError, never a default.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z"

// SentinelAuthorID marks a tweet whose author identity could not be recovered
// from a trustworthy source.
const SentinelAuthorID = "N/A"

var tweetRequiredKeys = []string{
	"author_id",
	"conversation_id",
	"created_at",
	"edit_history_tweet_ids",
	"entities",
	"id",
	"lang",
	"possibly_sensitive",
	"public_metrics",
	"text",
}

// ReferencedTweet links a tweet to another one it retweets, replies to, or quotes.
type ReferencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PublicMetrics holds the engagement counters attached to a tweet. All
// counters are non-negative by construction.
type PublicMetrics struct {
	RetweetCount    int `json:"retweet_count"`
	ReplyCount      int `json:"reply_count"`
	LikeCount       int `json:"like_count"`
	QuoteCount      int `json:"quote_count"`
	BookmarkCount   int `json:"bookmark_count"`
	ImpressionCount int `json:"impression_count"`
}

// Tweet is one captured post. Constructed once from a raw record or a
// spreadsheet row and read-only afterwards.
type Tweet struct {
	ID                string
	AuthorID          string
	AuthorUsername    string // set only by the spreadsheet adapter
	Lang              string
	ConversationID    string
	CreatedAt         time.Time
	Text              string
	PossiblySensitive bool
	PublicMetrics     PublicMetrics
	ReferencedTweets  []ReferencedTweet // nil when the record carries none
	InReplyToUserID   string
	Geo               map[string]any
	Attachments       map[string]any
}

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
	// $-_ is a range (0x24-0x5F): it pulls in /, ?, =, : and more, so a
	// URL's path and query are consumed, not just its host. # (0x23) is
	// outside it; fragments are left behind.
	urlPattern = regexp.MustCompile(`https?://(?:[a-zA-Z0-9$-_@.&+!*(),]|%[0-9a-fA-F]{2})+`)
)

// TweetFromMap builds a Tweet from one raw crawl record. The required-key
// check runs before any parsing so no partial entity can escape.
func TweetFromMap(raw map[string]any) (Tweet, error) {
	if err := requireKeys("tweet", raw, tweetRequiredKeys); err != nil {
		return Tweet{}, err
	}

	metrics, err := metricsFromAny("tweet", raw["public_metrics"])
	if err != nil {
		return Tweet{}, err
	}

	createdAtRaw := coerceString(raw["created_at"])
	createdAt, err := time.Parse(CreatedAtLayout, createdAtRaw)
	if err != nil {
		return Tweet{}, &ParseError{Entity: "tweet", Field: "created_at", Value: createdAtRaw, Err: err}
	}

	t := Tweet{
		ID:                coerceID(raw["id"]),
		AuthorID:          coerceID(raw["author_id"]),
		Lang:              coerceString(raw["lang"]),
		ConversationID:    coerceID(raw["conversation_id"]),
		CreatedAt:         createdAt,
		Text:              html.UnescapeString(coerceString(raw["text"])),
		PossiblySensitive: coerceBool(raw["possibly_sensitive"]),
		PublicMetrics:     metrics,
	}

	if v, ok := raw["referenced_tweets"]; ok && v != nil {
		refs, err := referencedTweetsFromAny(v)
		if err != nil {
			return Tweet{}, err
		}
		t.ReferencedTweets = refs
	}
	if v, ok := raw["in_reply_to_user_id"]; ok && v != nil {
		t.InReplyToUserID = coerceID(v)
	}
	if v, ok := raw["geo"]; ok {
		t.Geo = mapFromAny(v)
	}
	if v, ok := raw["attachments"]; ok {
		t.Attachments = mapFromAny(v)
	}
	return t, nil
}

func referencedTweetsFromAny(v any) ([]ReferencedTweet, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, &SchemaError{Entity: "tweet", Key: "referenced_tweets", Reason: "not a list"}
	}
	refs := make([]ReferencedTweet, 0, len(items))
	for _, item := range items {
		m := mapFromAny(item)
		if m == nil {
			return nil, &SchemaError{Entity: "tweet", Key: "referenced_tweets", Reason: "entry is not an object"}
		}
		refs = append(refs, ReferencedTweet{Type: coerceString(m["type"]), ID: coerceID(m["id"])})
	}
	return refs, nil
}

func metricsFromAny(entity string, v any) (PublicMetrics, error) {
	m := mapFromAny(v)
	if m == nil {
		return PublicMetrics{}, &SchemaError{Entity: entity, Key: "public_metrics", Reason: "not an object"}
	}
	var pm PublicMetrics
	fields := map[string]*int{
		"retweet_count":    &pm.RetweetCount,
		"reply_count":      &pm.ReplyCount,
		"like_count":       &pm.LikeCount,
		"quote_count":      &pm.QuoteCount,
		"bookmark_count":   &pm.BookmarkCount,
		"impression_count": &pm.ImpressionCount,
	}
	for name, dst := range fields {
		raw, ok := m[name]
		if !ok {
			continue
		}
		n, err := coerceInt(raw)
		if err != nil {
			return PublicMetrics{}, &SchemaError{Entity: entity, Key: name, Reason: err.Error()}
		}
		if n < 0 {
			return PublicMetrics{}, &SchemaError{Entity: entity, Key: name, Reason: fmt.Sprintf("negative counter %d", n)}
		}
		*dst = n
	}
	return pm, nil
}

// Hashtags returns the lowercased hashtags in the text. Digits-only and
// single-character tokens are noise from the crawl and are dropped.
func (t Tweet) Hashtags() []string {
	matches := hashtagPattern.FindAllStringSubmatch(strings.ToLower(t.Text), -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := m[1]
		if len(tag) <= 1 || isDigitsOnly(tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

// Mentions returns the @handles in the text, without the @.
func (t Tweet) Mentions() []string {
	matches := mentionPattern.FindAllStringSubmatch(t.Text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// URLs returns the raw URLs embedded in the text.
func (t Tweet) URLs() []string {
	return urlPattern.FindAllString(t.Text, -1)
}

func (t Tweet) retweetFlagged() bool {
	for _, ref := range t.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}

// IsRetweet reports whether the tweet is a retweet. A tweet flagged as
// retweeted whose text does not start with "RT @" is a data-quality error;
// callers that merely want to drop such tweets should use IsValid instead.
func (t Tweet) IsRetweet() (bool, error) {
	flagged := t.retweetFlagged()
	if flagged && !strings.HasPrefix(t.Text, "RT @") {
		return false, fmt.Errorf("tweet %s: flagged as retweet but text does not start with %q", t.ID, "RT @")
	}
	return flagged, nil
}

// IsValid reports false for retweet-flagged tweets whose text lost its
// "RT @" prefix. This happens in the spreadsheet export when the retweeted
// handle was redacted for a suspended or deleted account.
func (t Tweet) IsValid() bool {
	return !(t.retweetFlagged() && !strings.HasPrefix(t.Text, "RT @"))
}

// IsReply reports whether the tweet replies to another tweet.
func (t Tweet) IsReply() bool {
	for _, ref := range t.ReferencedTweets {
		if ref.Type == "replied_to" {
			return true
		}
	}
	return false
}

// SanitizedText returns the text with mentions and URLs replaced by
// placeholders and whitespace collapsed, suitable for sending to a classifier
// without leaking handles.
func (t Tweet) SanitizedText() string {
	text := strings.TrimPrefix(t.Text, "RT ")
	for _, m := range t.Mentions() {
		text = strings.ReplaceAll(text, "@"+m, "@AnonymizedUser")
	}
	for _, u := range t.URLs() {
		text = strings.ReplaceAll(text, u, "[AnonymizedURL]")
	}
	return strings.Join(strings.Fields(text), " ")
}

func (t Tweet) String() string {
	return fmt.Sprintf("Tweet(author_id=%s, id=%s, date=%s)", t.AuthorID, t.ID, t.CreatedAt.Format(CreatedAtLayout))
}

// FilterByDate keeps tweets created within [start, end], inclusive on both ends.
func FilterByDate(tweets []Tweet, start, end time.Time) []Tweet {
	out := make([]Tweet, 0, len(tweets))
	for _, t := range tweets {
		if t.CreatedAt.Before(start) || t.CreatedAt.After(end) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isDigitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
