package corpusdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"convoyset/internal/dataset"
	"convoyset/internal/model"
)

// DB wraps a SQLite database holding the deduplicated corpus for downstream
// statistics and user-timeline queries.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil { return nil, err }
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil { return nil, err }
	db := &DB{sql: d}
	if err := db.migrate(); err != nil { _ = d.Close(); return nil, err }
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	// Primary keys mirror the dedup identities, so re-exporting a corpus is
	// idempotent.
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS tweets (
	  id TEXT NOT NULL,
	  author_id TEXT NOT NULL,
	  author_username TEXT,
	  lang TEXT,
	  conversation_id TEXT,
	  created_at INTEGER NOT NULL,
	  text TEXT NOT NULL,
	  possibly_sensitive INTEGER NOT NULL DEFAULT 0,
	  retweet_count INTEGER NOT NULL DEFAULT 0,
	  reply_count INTEGER NOT NULL DEFAULT 0,
	  like_count INTEGER NOT NULL DEFAULT 0,
	  quote_count INTEGER NOT NULL DEFAULT 0,
	  bookmark_count INTEGER NOT NULL DEFAULT 0,
	  impression_count INTEGER NOT NULL DEFAULT 0,
	  referenced_tweets TEXT,
	  PRIMARY KEY (id, text, author_id)
	);
	CREATE INDEX IF NOT EXISTS idx_tweets_author ON tweets(author_id);
	CREATE INDEX IF NOT EXISTS idx_tweets_created ON tweets(created_at);
	CREATE TABLE IF NOT EXISTS users (
	  id TEXT NOT NULL,
	  created_at TEXT NOT NULL,
	  username TEXT NOT NULL,
	  name TEXT,
	  description TEXT,
	  verified INTEGER NOT NULL DEFAULT 0,
	  protected INTEGER NOT NULL DEFAULT 0,
	  location TEXT,
	  PRIMARY KEY (id, created_at)
	);
	CREATE TABLE IF NOT EXISTS places (
	  id TEXT NOT NULL,
	  country_code TEXT NOT NULL,
	  country TEXT,
	  name TEXT,
	  full_name TEXT,
	  place_type TEXT,
	  PRIMARY KEY (id, country_code)
	);
	`)
	return err
}

// SaveCorpus upserts every entity of a corpus in one transaction.
func (d *DB) SaveCorpus(ctx context.Context, c dataset.Corpus) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil { return err }
	defer func() { _ = tx.Rollback() }()

	for _, t := range c.Tweets {
		var refs *string
		if t.ReferencedTweets != nil {
			b, err := json.Marshal(t.ReferencedTweets)
			if err != nil { return err }
			s := string(b)
			refs = &s
		}
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO tweets
			(id, author_id, author_username, lang, conversation_id, created_at, text, possibly_sensitive,
			 retweet_count, reply_count, like_count, quote_count, bookmark_count, impression_count, referenced_tweets)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			t.ID, t.AuthorID, t.AuthorUsername, t.Lang, t.ConversationID, t.CreatedAt.Unix(), t.Text,
			boolInt(t.PossiblySensitive),
			t.PublicMetrics.RetweetCount, t.PublicMetrics.ReplyCount, t.PublicMetrics.LikeCount,
			t.PublicMetrics.QuoteCount, t.PublicMetrics.BookmarkCount, t.PublicMetrics.ImpressionCount, refs)
		if err != nil { return err }
	}
	for _, u := range c.Users {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO users
			(id, created_at, username, name, description, verified, protected, location)
			VALUES (?,?,?,?,?,?,?,?)`,
			u.ID, u.CreatedAt, u.Username, u.Name, u.Description, boolInt(u.Verified), boolInt(u.Protected), u.Location)
		if err != nil { return err }
	}
	for _, p := range c.Places {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO places
			(id, country_code, country, name, full_name, place_type)
			VALUES (?,?,?,?,?,?)`,
			p.ID, p.CountryCode, p.Country, p.Name, p.FullName, p.PlaceType)
		if err != nil { return err }
	}
	return tx.Commit()
}

// TweetsByAuthor returns an author's stored tweets in creation order.
func (d *DB) TweetsByAuthor(ctx context.Context, authorID string) ([]model.Tweet, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT id, author_id, author_username, lang, conversation_id,
		created_at, text, possibly_sensitive,
		retweet_count, reply_count, like_count, quote_count, bookmark_count, impression_count,
		COALESCE(referenced_tweets, '')
		FROM tweets WHERE author_id=? ORDER BY created_at`, authorID)
	if err != nil { return nil, err }
	defer rows.Close()

	var out []model.Tweet
	for rows.Next() {
		var t model.Tweet
		var created int64
		var sensitive int
		var refs string
		if err := rows.Scan(&t.ID, &t.AuthorID, &t.AuthorUsername, &t.Lang, &t.ConversationID,
			&created, &t.Text, &sensitive,
			&t.PublicMetrics.RetweetCount, &t.PublicMetrics.ReplyCount, &t.PublicMetrics.LikeCount,
			&t.PublicMetrics.QuoteCount, &t.PublicMetrics.BookmarkCount, &t.PublicMetrics.ImpressionCount,
			&refs); err != nil {
			return nil, err
		}
		t.CreatedAt = time.Unix(created, 0).UTC()
		t.PossiblySensitive = sensitive != 0
		if refs != "" {
			if err := json.Unmarshal([]byte(refs), &t.ReferencedTweets); err != nil { return nil, err }
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RelevantAuthors returns author ids with at least minTweets stored tweets,
// excluding the sentinel.
func (d *DB) RelevantAuthors(ctx context.Context, minTweets int) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT author_id FROM tweets
		WHERE author_id != ? GROUP BY author_id HAVING COUNT(*) >= ? ORDER BY author_id`,
		model.SentinelAuthorID, minTweets)
	if err != nil { return nil, err }
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil { return nil, err }
		out = append(out, id)
	}
	return out, rows.Err()
}

// Counts returns how many distinct entities the store holds.
func (d *DB) Counts(ctx context.Context) (users, tweets, places int, err error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM tweets), (SELECT COUNT(*) FROM places)`)
	err = row.Scan(&users, &tweets, &places)
	return users, tweets, places, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
