package corpusdb

import (
	"context"
	"testing"
	"time"

	"convoyset/internal/dataset"
	"convoyset/internal/model"
)

func testCorpus() dataset.Corpus {
	created := time.Date(2022, 2, 5, 18, 31, 22, 0, time.UTC)
	return dataset.Corpus{
		Users: []model.User{
			{ID: "u1", Username: "truck_watcher", CreatedAt: "2021-08-01T10:00:00.000Z"},
		},
		Tweets: []model.Tweet{
			{ID: "1", AuthorID: "u1", Text: "convoy rolling", CreatedAt: created,
				PublicMetrics: model.PublicMetrics{LikeCount: 10}},
			{ID: "2", AuthorID: "u1", Text: "RT @x: honk", CreatedAt: created.Add(time.Hour),
				ReferencedTweets: []model.ReferencedTweet{{Type: "retweeted", ID: "9"}}},
			{ID: "3", AuthorID: "u2", Text: "hello", CreatedAt: created},
			{ID: "4", AuthorID: model.SentinelAuthorID, Text: "anon", CreatedAt: created},
		},
		Places: []model.Place{
			{ID: "p1", CountryCode: "CA", FullName: "Ottawa, Ontario"},
		},
	}
}

func TestSaveCorpusAndCounts(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil { t.Fatal(err) }
	defer db.Close()
	ctx := context.Background()

	if err := db.SaveCorpus(ctx, testCorpus()); err != nil { t.Fatal(err) }
	users, tweets, places, err := db.Counts(ctx)
	if err != nil { t.Fatal(err) }
	if users != 1 || tweets != 4 || places != 1 {
		t.Fatalf("counts: %d %d %d", users, tweets, places)
	}

	// Re-exporting the same corpus is idempotent: keys mirror dedup identity.
	if err := db.SaveCorpus(ctx, testCorpus()); err != nil { t.Fatal(err) }
	_, tweets, _, err = db.Counts(ctx)
	if err != nil { t.Fatal(err) }
	if tweets != 4 {
		t.Fatalf("re-export duplicated tweets: %d", tweets)
	}
}

func TestTweetsByAuthorRoundTrip(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil { t.Fatal(err) }
	defer db.Close()
	ctx := context.Background()
	if err := db.SaveCorpus(ctx, testCorpus()); err != nil { t.Fatal(err) }

	got, err := db.TweetsByAuthor(ctx, "u1")
	if err != nil { t.Fatal(err) }
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("tweets: %v", got)
	}
	if got[0].PublicMetrics.LikeCount != 10 {
		t.Fatalf("metrics lost: %+v", got[0].PublicMetrics)
	}
	if isRT, err := got[1].IsRetweet(); err != nil || !isRT {
		t.Fatalf("referenced tweets lost: %v %v", isRT, err)
	}
	if got[0].ReferencedTweets != nil {
		t.Fatalf("unexpected refs: %v", got[0].ReferencedTweets)
	}
}

func TestRelevantAuthors(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil { t.Fatal(err) }
	defer db.Close()
	ctx := context.Background()
	if err := db.SaveCorpus(ctx, testCorpus()); err != nil { t.Fatal(err) }

	got, err := db.RelevantAuthors(ctx, 2)
	if err != nil { t.Fatal(err) }
	if len(got) != 1 || got[0] != "u1" {
		t.Fatalf("authors: %v", got)
	}
	// The sentinel never qualifies, whatever the threshold.
	all, err := db.RelevantAuthors(ctx, 1)
	if err != nil { t.Fatal(err) }
	for _, id := range all {
		if id == model.SentinelAuthorID {
			t.Fatal("sentinel author leaked into relevant set")
		}
	}
}
