package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var tableHeader = []string{
	"Dataset Split", "No. of unique tweets", "No. of unique authors",
	"% tweets with URL", "% retweets", "% replies", "% with text",
	"No. unique hashtags", "Median tweet length", "Top 5 hashtags", "Top 5 mentions",
}

// WriteTable serializes partition rows as CSV.
func WriteTable(path string, rows []PartitionRow) error {
	records := [][]string{tableHeader}
	for _, r := range rows {
		records = append(records, []string{
			r.Partition,
			strconv.Itoa(r.UniqueTweets),
			strconv.Itoa(r.UniqueAuthors),
			formatRatio(r.PctWithURL),
			formatRatio(r.PctRetweets),
			formatRatio(r.PctReplies),
			formatRatio(r.PctWithText),
			strconv.Itoa(r.UniqueHashtags),
			strconv.FormatFloat(r.MedianTextLength, 'f', 1, 64),
			r.TopHashtags,
			r.TopMentions,
		})
	}
	return writeCSV(path, records)
}

// WriteHashtagCounts serializes the per-day buckets as long-format CSV rows
// (date, hashtag, count, day total) for the listed hashtags, one row per
// hashtag per day even when the count is zero.
func WriteHashtagCounts(path string, buckets map[time.Time]map[string]int, hashtags []string) error {
	records := [][]string{{"date", "hashtag", "count", "tweets_that_day"}}
	for _, day := range SortedDays(buckets) {
		counts := buckets[day]
		for _, h := range hashtags {
			records = append(records, []string{
				day.Format("2006-01-02"),
				h,
				strconv.Itoa(counts[strings.ToLower(h)]),
				strconv.Itoa(counts[""]),
			})
		}
	}
	return writeCSV(path, records)
}

// WriteVocabulary writes one token per line.
func WriteVocabulary(path string, words []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(words, "\n")), 0o644)
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
