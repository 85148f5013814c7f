package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"convoyset/internal/identity"
	"convoyset/internal/model"
)

// The campaign spreadsheet's fixed column schema.
var workbookColumns = []string{
	"username",
	"userid",
	"language",
	"retweet_count",
	"reply_count",
	"like_count",
	"quote_count",
	"date",
	"tweet_id",
	"in_reply_to_tweet_id",
	"text",
	"possibly_sensitive",
	"referenced_tweet_id",
	"referenced_tweet_type",
}

// TweetsFromWorkbook reads the spreadsheet-sourced campaign export and
// reconstructs Tweet entities. The sheet's own userid column is untrustworthy:
// spreadsheet number handling truncates the low digits of large ids (a real
// 1423712307616643072 shows up as 1423712307616640000), so the author id is
// recovered by looking the row's username up in the inverted identity map and
// falls back to the sentinel when the username is unknown. Rows whose
// reconstructed tweet fails IsValid are dropped. The inversion's username
// collisions, if any, are returned for diagnostics.
func TweetsFromWorkbook(path string, idmap identity.Map) ([]model.Tweet, []identity.Conflict, error) {
	username2id, conflicts := idmap.Invert()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, conflicts, nil
	}

	colIndex := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		colIndex[strings.TrimSpace(name)] = i
	}
	for _, name := range workbookColumns {
		if _, ok := colIndex[name]; !ok {
			return nil, nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	var tweets []model.Tweet
	for rowNum, row := range rows[1:] {
		cell := func(name string) string {
			// GetRows trims trailing empty cells off each row.
			if i := colIndex[name]; i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		metrics, err := workbookMetrics(cell)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", path, rowNum+2, err)
		}

		createdAtRaw := cell("date")
		createdAt, err := time.Parse(model.CreatedAtLayout, createdAtRaw)
		if err != nil {
			return nil, nil, &model.ParseError{Entity: "tweet", Field: "date", Value: createdAtRaw, Err: err}
		}

		authorID := model.SentinelAuthorID
		if id, ok := username2id[cell("username")]; ok {
			authorID = id
		}

		conversationID := cell("tweet_id")
		if reply := cell("in_reply_to_tweet_id"); reply != "" {
			conversationID = reply
		}

		var refs []model.ReferencedTweet
		if id, typ := cell("referenced_tweet_id"), cell("referenced_tweet_type"); id != "" && typ != "" {
			refs = []model.ReferencedTweet{{Type: typ, ID: id}}
		}

		t := model.Tweet{
			ID:                cell("tweet_id"),
			AuthorID:          authorID,
			AuthorUsername:    cell("username"),
			Lang:              cell("language"),
			ConversationID:    conversationID,
			CreatedAt:         createdAt,
			Text:              cell("text"),
			PossiblySensitive: strings.EqualFold(cell("possibly_sensitive"), "true"),
			PublicMetrics:     metrics,
			ReferencedTweets:  refs,
		}
		// Redacted retweets (handle hidden for suspended accounts) lose the
		// "RT @" prefix; in this partition they are excluded, not an error.
		if !t.IsValid() {
			continue
		}
		tweets = append(tweets, t)
	}
	return tweets, conflicts, nil
}

// workbookMetrics builds public metrics from the four counters the sheet
// carries. Bookmark and impression counts do not exist in this export and are
// fixed at zero, not treated as missing.
func workbookMetrics(cell func(string) string) (model.PublicMetrics, error) {
	var pm model.PublicMetrics
	fields := map[string]*int{
		"retweet_count": &pm.RetweetCount,
		"reply_count":   &pm.ReplyCount,
		"like_count":    &pm.LikeCount,
		"quote_count":   &pm.QuoteCount,
	}
	for name, dst := range fields {
		n, err := parseCount(cell(name))
		if err != nil {
			return model.PublicMetrics{}, &model.SchemaError{Entity: "tweet", Key: name, Reason: err.Error()}
		}
		if n < 0 {
			return model.PublicMetrics{}, &model.SchemaError{Entity: "tweet", Key: name, Reason: fmt.Sprintf("negative counter %d", n)}
		}
		*dst = n
	}
	return pm, nil
}

func parseCount(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	// Spreadsheet number formatting can render integers as "12.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
