package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"convoyset/internal/model"
)

func statsTweet(id, author, text string, created time.Time) model.Tweet {
	return model.Tweet{ID: id, AuthorID: author, Text: text, CreatedAt: created}
}

func TestComputeRow(t *testing.T) {
	created := time.Date(2022, 2, 5, 12, 0, 0, 0, time.UTC)
	tweets := []model.Tweet{
		statsTweet("1", "a", "convoy in #Ottawa with @someone", created),
		statsTweet("1", "a", "convoy in #Ottawa with @someone", created), // duplicate
		statsTweet("2", "b", "see https://t.co/xyz #ottawa", created),
		{ID: "3", AuthorID: "a", Text: "RT @b: see", CreatedAt: created,
			ReferencedTweets: []model.ReferencedTweet{{Type: "retweeted", ID: "2"}}},
		{ID: "4", AuthorID: "c", Text: "thanks", CreatedAt: created,
			ReferencedTweets: []model.ReferencedTweet{{Type: "replied_to", ID: "1"}}},
	}
	row, err := ComputeRow("posters", tweets)
	if err != nil { t.Fatal(err) }

	if row.UniqueTweets != 4 || row.UniqueAuthors != 3 {
		t.Fatalf("row: %+v", row)
	}
	if row.PctWithURL != 0.25 || row.PctRetweets != 0.25 || row.PctReplies != 0.25 {
		t.Fatalf("ratios: %+v", row)
	}
	if row.UniqueHashtags != 1 {
		t.Fatalf("hashtags: %+v", row)
	}
	if !strings.Contains(row.TopHashtags, "ottawa(2)") {
		t.Fatalf("top hashtags: %q", row.TopHashtags)
	}
	if !strings.Contains(row.TopMentions, "someone(1)") {
		t.Fatalf("top mentions: %q", row.TopMentions)
	}
}

func TestComputeRowEmpty(t *testing.T) {
	row, err := ComputeRow("retweeters", nil)
	if err != nil { t.Fatal(err) }
	if row.UniqueTweets != 0 || row.MedianTextLength != 0 {
		t.Fatalf("row: %+v", row)
	}
}

func TestComputeRowMalformedRetweetAborts(t *testing.T) {
	tweets := []model.Tweet{{
		ID: "1", AuthorID: "a", Text: "redacted", CreatedAt: time.Now(),
		ReferencedTweets: []model.ReferencedTweet{{Type: "retweeted", ID: "2"}},
	}}
	if _, err := ComputeRow("posters", tweets); err == nil {
		t.Fatal("expected error for retweet-flagged text without the RT prefix")
	}
}

func TestMedian(t *testing.T) {
	if got := median([]int{3, 1, 2}); got != 2 {
		t.Fatalf("odd: %v", got)
	}
	if got := median([]int{4, 1, 2, 3}); got != 2.5 {
		t.Fatalf("even: %v", got)
	}
}

func TestDailyHashtagCounts(t *testing.T) {
	day1 := time.Date(2022, 2, 1, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2022, 2, 2, 20, 0, 0, 0, time.UTC)
	tweets := []model.Tweet{
		statsTweet("1", "a", "#HonkHonk rolling", day1),
		statsTweet("2", "b", "#honkhonk again", day1.Add(6*time.Hour)),
		statsTweet("3", "c", "quiet day", day2),
		statsTweet("4", "d", "#honkhonk late", time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)), // out of range
	}
	buckets := DailyHashtagCounts(tweets, day1.AddDate(0, 0, -1), day2.AddDate(0, 0, 1))

	days := SortedDays(buckets)
	want := []time.Time{
		time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 2, 2, 0, 0, 0, 0, time.UTC),
	}
	if !reflect.DeepEqual(days, want) {
		t.Fatalf("days: %v", days)
	}
	if buckets[want[0]]["honkhonk"] != 2 || buckets[want[0]][""] != 2 {
		t.Fatalf("day1 counts: %v", buckets[want[0]])
	}
	if buckets[want[1]]["honkhonk"] != 0 || buckets[want[1]][""] != 1 {
		t.Fatalf("day2 counts: %v", buckets[want[1]])
	}
}

func TestVocabulary(t *testing.T) {
	created := time.Date(2022, 2, 5, 12, 0, 0, 0, time.UTC)
	tweets := []model.Tweet{
		statsTweet("1", "a", "the convoy keeps rolling, rolling on", created),
		statsTweet("2", "b", "convoy convoy at 42", created),
	}
	got := Vocabulary(tweets, 1)
	if !reflect.DeepEqual(got, []string{"convoy", "rolling"}) {
		t.Fatalf("vocab: %v", got)
	}
}

func TestWriteTableAndHashtagCounts(t *testing.T) {
	dir := t.TempDir()

	tablePath := filepath.Join(dir, "stats.csv")
	rows := []PartitionRow{{Partition: "posters", UniqueTweets: 2, UniqueAuthors: 1, MedianTextLength: 11}}
	if err := WriteTable(tablePath, rows); err != nil { t.Fatal(err) }
	records := readCSV(t, tablePath)
	if len(records) != 2 || records[1][0] != "posters" || records[1][1] != "2" {
		t.Fatalf("records: %v", records)
	}

	countsPath := filepath.Join(dir, "hashtags.csv")
	day := time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)
	buckets := map[time.Time]map[string]int{day: {"": 3, "honkhonk": 2}}
	if err := WriteHashtagCounts(countsPath, buckets, []string{"honkhonk", "holdtheline"}); err != nil {
		t.Fatal(err)
	}
	records = readCSV(t, countsPath)
	if len(records) != 3 {
		t.Fatalf("records: %v", records)
	}
	if !reflect.DeepEqual(records[1], []string{"2022-02-01", "honkhonk", "2", "3"}) {
		t.Fatalf("row: %v", records[1])
	}
	if !reflect.DeepEqual(records[2], []string{"2022-02-01", "holdtheline", "0", "3"}) {
		t.Fatalf("zero row: %v", records[2])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil { t.Fatal(err) }
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil { t.Fatal(err) }
	return records
}
