package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"convoyset/internal/model"
	"convoyset/internal/util"
)

// PartitionRow summarizes one dataset partition for the statistics table.
type PartitionRow struct {
	Partition         string
	UniqueTweets      int
	UniqueAuthors     int
	PctWithURL        float64
	PctRetweets       float64
	PctReplies        float64
	PctWithText       float64
	UniqueHashtags    int
	MedianTextLength  float64
	TopHashtags       string
	TopMentions       string
}

// ComputeRow derives a partition's summary statistics from its tweets.
// Tweets are deduplicated by id first so overlapping partitions report
// comparable numbers.
func ComputeRow(partition string, tweets []model.Tweet) (PartitionRow, error) {
	seen := make(map[string]struct{}, len(tweets))
	unique := make([]model.Tweet, 0, len(tweets))
	for _, t := range tweets {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		unique = append(unique, t)
	}

	row := PartitionRow{Partition: partition, UniqueTweets: len(unique)}
	if len(unique) == 0 {
		return row, nil
	}

	authors := make(map[string]struct{})
	hashtagCount := make(map[string]int)
	mentionCount := make(map[string]int)
	var withURL, retweets, replies, withText int
	lengths := make([]int, 0, len(unique))

	for _, t := range unique {
		authors[t.AuthorID] = struct{}{}
		for _, h := range t.Hashtags() {
			hashtagCount[h]++
		}
		for _, m := range t.Mentions() {
			mentionCount[m]++
		}
		if len(t.URLs()) > 0 {
			withURL++
		}
		isRT, err := t.IsRetweet()
		if err != nil {
			return PartitionRow{}, err
		}
		if isRT {
			retweets++
		}
		if t.IsReply() {
			replies++
		}
		text := t.SanitizedText()
		if text != "" {
			withText++
		}
		lengths = append(lengths, len(text))
	}

	n := float64(len(unique))
	row.UniqueAuthors = len(authors)
	row.PctWithURL = float64(withURL) / n
	row.PctRetweets = float64(retweets) / n
	row.PctReplies = float64(replies) / n
	row.PctWithText = float64(withText) / n
	row.UniqueHashtags = len(hashtagCount)
	row.MedianTextLength = median(lengths)
	row.TopHashtags = topN(hashtagCount, 5)
	row.TopMentions = topN(mentionCount, 5)
	return row, nil
}

func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Ints(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return float64(values[mid])
	}
	return float64(values[mid-1]+values[mid]) / 2
}

// topN formats the n most frequent entries as "tag(count); ..." with
// alphabetical tie-breaking so output is stable across runs.
func topN(counts map[string]int, n int) string {
	type entry struct {
		key   string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, entry{k, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s(%d)", e.key, e.count))
	}
	return strings.Join(parts, "; ")
}

// DailyHashtagCounts aggregates hashtag occurrences into per-day buckets,
// bounded to [start, end]. The inner map also carries the day's total tweet
// count under the empty key so frequencies can be normalized downstream.
func DailyHashtagCounts(tweets []model.Tweet, start, end time.Time) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, t := range model.FilterByDate(tweets, start, end) {
		key := time.Date(t.CreatedAt.Year(), t.CreatedAt.Month(), t.CreatedAt.Day(), 0, 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][""]++
		for _, h := range t.Hashtags() {
			buckets[key][h]++
		}
	}
	return buckets
}

// SortedDays returns the bucket keys in chronological order.
func SortedDays(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// Vocabulary extracts the alphabetic tokens of the corpus occurring more than
// minCount times, sorted. Short tokens are noise and dropped.
func Vocabulary(tweets []model.Tweet, minCount int) []string {
	freq := make(map[string]int)
	for _, t := range tweets {
		for _, tok := range util.Tokenize(t.SanitizedText()) {
			if len(tok) <= 2 || !alphabetic(tok) {
				continue
			}
			freq[tok]++
		}
	}
	out := make([]string, 0, len(freq))
	for tok, c := range freq {
		if c > minCount {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

func alphabetic(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
