package dataset

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"convoyset/internal/identity"
	"convoyset/internal/model"
)

var workbookHeader = []any{
	"username", "userid", "language", "retweet_count", "reply_count",
	"like_count", "quote_count", "date", "tweet_id", "in_reply_to_tweet_id",
	"text", "possibly_sensitive", "referenced_tweet_id", "referenced_tweet_type",
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &workbookHeader); err != nil { t.Fatal(err) }
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil { t.Fatal(err) }
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil { t.Fatal(err) }
	}
	if err := f.SaveAs(path); err != nil { t.Fatal(err) }
}

func testIdentityMap() identity.Map {
	return identity.Map{"1423712307616643072": {"truck_watcher", "old_handle"}}
}

func TestWorkbookRecoversAuthorIDFromUsername(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.xlsx")
	writeWorkbook(t, path, [][]any{
		// The sheet's own userid is the truncated one; it must be ignored.
		{"truck_watcher", "1423712307616640000", "en", "3", "1", "10", "0",
			"2022-02-05T18:31:22.000Z", "100", "", "convoy rolling #IStandWithTruckers", "false", "", ""},
	})
	tweets, _, err := TweetsFromWorkbook(path, testIdentityMap())
	if err != nil { t.Fatal(err) }
	if len(tweets) != 1 {
		t.Fatalf("tweets: %d", len(tweets))
	}
	tw := tweets[0]
	if tw.AuthorID != "1423712307616643072" {
		t.Fatalf("author_id not recovered: %s", tw.AuthorID)
	}
	if tw.AuthorUsername != "truck_watcher" {
		t.Fatalf("author_username: %s", tw.AuthorUsername)
	}
	if tw.PublicMetrics.RetweetCount != 3 || tw.PublicMetrics.LikeCount != 10 {
		t.Fatalf("metrics: %+v", tw.PublicMetrics)
	}
	// Absent from this source, fixed at zero.
	if tw.PublicMetrics.BookmarkCount != 0 || tw.PublicMetrics.ImpressionCount != 0 {
		t.Fatalf("metrics: %+v", tw.PublicMetrics)
	}
	if tw.ConversationID != "100" {
		t.Fatalf("conversation_id: %s", tw.ConversationID)
	}
}

func TestWorkbookUnknownUsernameGetsSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.xlsx")
	writeWorkbook(t, path, [][]any{
		{"stranger", "42", "en", "0", "0", "0", "0",
			"2022-02-05T18:31:22.000Z", "101", "", "hello", "false", "", ""},
	})
	tweets, _, err := TweetsFromWorkbook(path, testIdentityMap())
	if err != nil { t.Fatal(err) }
	if tweets[0].AuthorID != model.SentinelAuthorID {
		t.Fatalf("author_id: %s", tweets[0].AuthorID)
	}
}

func TestWorkbookSynthesizesReferencedTweets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.xlsx")
	writeWorkbook(t, path, [][]any{
		{"truck_watcher", "1", "en", "0", "0", "0", "0",
			"2022-02-05T18:31:22.000Z", "102", "99", "RT @x: convoy", "false", "98", "retweeted"},
		{"truck_watcher", "1", "en", "0", "0", "0", "0",
			"2022-02-05T18:31:22.000Z", "103", "", "plain", "false", "", ""},
	})
	tweets, _, err := TweetsFromWorkbook(path, testIdentityMap())
	if err != nil { t.Fatal(err) }
	if len(tweets) != 2 {
		t.Fatalf("tweets: %d", len(tweets))
	}
	if len(tweets[0].ReferencedTweets) != 1 || tweets[0].ReferencedTweets[0].Type != "retweeted" {
		t.Fatalf("refs: %v", tweets[0].ReferencedTweets)
	}
	if tweets[0].ConversationID != "99" {
		t.Fatalf("conversation_id should be the replied-to id: %s", tweets[0].ConversationID)
	}
	if tweets[1].ReferencedTweets != nil {
		t.Fatalf("refs should be nil: %v", tweets[1].ReferencedTweets)
	}
}

func TestWorkbookDropsRedactedRetweets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.xlsx")
	writeWorkbook(t, path, [][]any{
		// Retweet-flagged but the "RT @" prefix was redacted upstream.
		{"truck_watcher", "1", "en", "0", "0", "0", "0",
			"2022-02-05T18:31:22.000Z", "104", "", "account unavailable", "false", "97", "retweeted"},
		{"truck_watcher", "1", "en", "0", "0", "0", "0",
			"2022-02-05T18:31:22.000Z", "105", "", "RT @x: kept", "false", "96", "retweeted"},
	})
	tweets, _, err := TweetsFromWorkbook(path, testIdentityMap())
	if err != nil { t.Fatal(err) }
	if len(tweets) != 1 || tweets[0].ID != "105" {
		t.Fatalf("expected only the well-formed retweet, got %v", tweets)
	}
}

func TestWorkbookBadDateFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.xlsx")
	writeWorkbook(t, path, [][]any{
		{"truck_watcher", "1", "en", "0", "0", "0", "0",
			"05/02/2022", "106", "", "text", "false", "", ""},
	})
	if _, _, err := TweetsFromWorkbook(path, testIdentityMap()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWorkbookMissingColumnFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.xlsx")
	f := excelize.NewFile()
	header := []any{"username", "text"}
	if err := f.SetSheetRow(f.GetSheetName(0), "A1", &header); err != nil { t.Fatal(err) }
	if err := f.SaveAs(path); err != nil { t.Fatal(err) }
	if _, _, err := TweetsFromWorkbook(path, testIdentityMap()); err == nil {
		t.Fatal("expected missing column error")
	}
}
