package stance

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"convoyset/internal/logging"
	"convoyset/internal/metrics"
	"convoyset/internal/model"
)

// TweetResult is one persisted tweet classification.
type TweetResult struct {
	TweetID  string `json:"tweet_id"`
	AuthorID string `json:"author_id"`
	Response Label  `json:"llm_response"`
}

// UserResult is one persisted user-timeline classification.
type UserResult struct {
	AuthorID string   `json:"author_id"`
	TweetIDs []string `json:"tweet_ids"`
	Response Label    `json:"llm_response"`
}

// Options configures a driver run.
type Options struct {
	OutputPath string
	Seed       int64
	// BatchSize bounds how much work a crash loses: results are persisted
	// after every batch, not only at the end.
	BatchSize  int
	SampleSize int
	Start, End time.Time
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 30
	}
	return o
}

// EvaluateTweets drives the classifier over a pre-loaded tweet corpus:
// date-bounded, retweets and URL-carrying tweets excluded, already-classified
// ids never resubmitted. A classifier failure on one tweet records the error
// sentinel and the run continues.
func EvaluateTweets(ctx context.Context, det Detector, tweets []model.Tweet, opts Options) ([]TweetResult, error) {
	opts = opts.normalized()

	tweets = model.FilterByDate(tweets, opts.Start, opts.End)
	pending := make([]model.Tweet, 0, len(tweets))
	for _, t := range tweets {
		isRT, err := t.IsRetweet()
		if err != nil {
			// Malformed domain data aborts; only classifier calls degrade.
			return nil, err
		}
		if isRT || len(t.URLs()) > 0 {
			continue
		}
		pending = append(pending, t)
	}

	var results []TweetResult
	if err := loadResults(opts.OutputPath, &results); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.TweetID] = struct{}{}
	}
	unseen := pending[:0]
	for _, t := range pending {
		if _, ok := seen[t.ID]; !ok {
			unseen = append(unseen, t)
		}
	}
	pending = unseen

	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })

	sample := opts.SampleSize
	if sample <= 0 || sample > len(pending) {
		sample = len(pending)
	}
	logging.Info("tweet_eval_start", map[string]any{
		"already_classified": len(seen),
		"pending":            len(pending),
		"sample":             sample,
	})

	for i := 0; i < sample; i += opts.BatchSize {
		end := i + opts.BatchSize
		if end > sample {
			end = sample
		}
		for _, t := range pending[i:end] {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			metrics.ClassifierCalls.WithLabelValues("tweet").Inc()
			label, err := det.EvaluateTweet(ctx, t)
			if err != nil {
				metrics.ClassifierErrors.WithLabelValues("tweet").Inc()
				logging.Warn("tweet_eval_failed", map[string]any{"tweet_id": t.ID, "error": err.Error()})
				label = ErrorSentinel
			}
			results = append(results, TweetResult{TweetID: t.ID, AuthorID: t.AuthorID, Response: label})
		}
		if err := saveResults(opts.OutputPath, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// EvaluateUsers drives the classifier over per-author timelines built from
// the same pre-filtered tweet stream. Authors below minTweets are skipped;
// at most maxTweets per author are sampled (seeded, reproducible). Resumes by
// author id.
func EvaluateUsers(ctx context.Context, det Detector, tweets []model.Tweet, opts Options, minTweets, maxTweets int) ([]UserResult, error) {
	opts = opts.normalized()

	tweets = model.FilterByDate(tweets, opts.Start, opts.End)
	byAuthor := make(map[string][]model.Tweet)
	for _, t := range tweets {
		if t.AuthorID == model.SentinelAuthorID {
			continue
		}
		isRT, err := t.IsRetweet()
		if err != nil {
			return nil, err
		}
		if isRT || len(t.URLs()) > 0 {
			continue
		}
		byAuthor[t.AuthorID] = append(byAuthor[t.AuthorID], t)
	}

	var results []UserResult
	if err := loadResults(opts.OutputPath, &results); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		seen[r.AuthorID] = struct{}{}
	}

	authors := make([]string, 0, len(byAuthor))
	for id, ts := range byAuthor {
		if _, ok := seen[id]; ok {
			continue
		}
		if len(ts) < minTweets {
			continue
		}
		authors = append(authors, id)
	}
	sort.Strings(authors)
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(authors), func(i, j int) { authors[i], authors[j] = authors[j], authors[i] })

	sample := opts.SampleSize
	if sample <= 0 || sample > len(authors) {
		sample = len(authors)
	}
	logging.Info("user_eval_start", map[string]any{
		"already_classified": len(seen),
		"pending":            len(authors),
		"sample":             sample,
	})

	for i := 0; i < sample; i += opts.BatchSize {
		end := i + opts.BatchSize
		if end > sample {
			end = sample
		}
		for _, author := range authors[i:end] {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			timeline := sampleTweets(rng, byAuthor[author], maxTweets)
			metrics.ClassifierCalls.WithLabelValues("user").Inc()
			label, err := det.EvaluateUser(ctx, timeline)
			if err != nil {
				metrics.ClassifierErrors.WithLabelValues("user").Inc()
				logging.Warn("user_eval_failed", map[string]any{"author_id": author, "error": err.Error()})
				label = ErrorSentinel
			}
			ids := make([]string, 0, len(timeline))
			for _, t := range timeline {
				ids = append(ids, t.ID)
			}
			results = append(results, UserResult{AuthorID: author, TweetIDs: ids, Response: label})
		}
		if err := saveResults(opts.OutputPath, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

func sampleTweets(rng *rand.Rand, tweets []model.Tweet, max int) []model.Tweet {
	if max <= 0 || len(tweets) <= max {
		return tweets
	}
	cp := append([]model.Tweet(nil), tweets...)
	rng.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	return cp[:max]
}

// loadResults reads a prior output file; a missing file is an empty run, any
// other failure propagates so a corrupt log is never silently overwritten.
func loadResults(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func saveResults(path string, results any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
