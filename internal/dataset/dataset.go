package dataset

import (
	"strings"
	"time"

	"convoyset/internal/config"
	"convoyset/internal/identity"
	"convoyset/internal/logging"
	"convoyset/internal/metrics"
	"convoyset/internal/model"
)

// Dataset resolves partitions against a configured archive and produces the
// typed, optionally deduplicated corpus.
type Dataset struct {
	paths config.PathsConfig
}

func New(paths config.PathsConfig) *Dataset {
	return &Dataset{paths: paths}
}

// Corpus is the typed result of one partition load.
type Corpus struct {
	Users  []model.User
	Tweets []model.Tweet
	Places []model.Place
}

// Get loads one partition. All raw records are read before any conversion, so
// a malformed record aborts the whole partition after the full read, never
// mid-file. When removeDuplicates is set, each entity kind is filtered under
// its own identity key, first-seen order preserved.
func (d *Dataset) Get(p Partition, removeDuplicates bool) (Corpus, error) {
	start := time.Now()
	defer metrics.ObserveDatasetLoad(start)

	if p == IStandWithTruckers {
		tweets, err := d.spreadsheetTweets()
		if err != nil {
			return Corpus{}, err
		}
		corpus := Corpus{Tweets: tweets}
		if removeDuplicates {
			corpus = dedup(corpus)
		}
		return corpus, nil
	}

	files, err := d.resolveFiles(p)
	if err != nil {
		return Corpus{}, err
	}

	var raw RawBundle
	for _, file := range files {
		b, err := LoadFile(file)
		if err != nil {
			return Corpus{}, err
		}
		raw.merge(b)
	}
	if raw.Skipped > 0 {
		logging.Warn("records_skipped", map[string]any{"partition": string(p), "skipped": raw.Skipped})
	}

	corpus, err := convert(raw)
	if err != nil {
		return Corpus{}, err
	}

	// The spreadsheet campaign yields already-typed entities; it is merged
	// after the JSON union and never deduplicated against it at this stage.
	if includesSpreadsheet(p) {
		tweets, err := d.spreadsheetTweets()
		if err != nil {
			return Corpus{}, err
		}
		corpus.Tweets = append(corpus.Tweets, tweets...)
	}

	if removeDuplicates {
		corpus = dedup(corpus)
	}
	logging.Info("dataset_loaded", map[string]any{
		"partition": string(p),
		"files":     len(files),
		"users":     len(corpus.Users),
		"tweets":    len(corpus.Tweets),
		"places":    len(corpus.Places),
	})
	return corpus, nil
}

// Users loads only the user entities of a partition's JSON sources,
// deduplicated. The spreadsheet campaign contributes no users, so Users(All)
// covers the full user universe and works before the identity map exists.
func (d *Dataset) Users(p Partition) ([]model.User, error) {
	files, err := d.resolveFiles(p)
	if err != nil {
		return nil, err
	}
	var raw RawBundle
	for _, file := range files {
		b, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		raw.merge(b)
	}
	users := make([]model.User, 0, len(raw.Users))
	for _, m := range raw.Users {
		u, err := model.UserFromMap(m)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return DedupUsers(users), nil
}

// HashtagTweets returns the tweets of the deduplicated full corpus whose text
// mentions the campaign's hashtag, case-insensitively.
func (d *Dataset) HashtagTweets(campaign Partition) ([]model.Tweet, error) {
	hashtag, ok := campaignHashtags[campaign]
	if !ok {
		return nil, &UnknownPartitionError{Partition: campaign}
	}
	corpus, err := d.Get(All, true)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(hashtag)
	var out []model.Tweet
	for _, t := range corpus.Tweets {
		if strings.Contains(strings.ToLower(t.Text), needle) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *Dataset) resolveFiles(p Partition) ([]string, error) {
	if key, ok := folderKeys[p]; ok {
		return d.paths.JSONFiles(key)
	}
	members, ok := unionMembers[p]
	if !ok {
		return nil, &UnknownPartitionError{Partition: p}
	}
	var files []string
	for _, m := range members {
		fs, err := d.resolveFiles(m)
		if err != nil {
			return nil, err
		}
		files = append(files, fs...)
	}
	return files, nil
}

func (d *Dataset) spreadsheetTweets() ([]model.Tweet, error) {
	mapPath, err := d.paths.Path("userid2usernames_map")
	if err != nil {
		return nil, err
	}
	idmap, err := identity.Load(mapPath)
	if err != nil {
		return nil, err
	}
	sheetPath, err := d.paths.Path("istandwithtruckers_file")
	if err != nil {
		return nil, err
	}
	tweets, conflicts, err := TweetsFromWorkbook(sheetPath, idmap)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		logging.Warn("identity_inversion_conflicts", map[string]any{"count": len(conflicts)})
	}
	return tweets, nil
}

func convert(raw RawBundle) (Corpus, error) {
	corpus := Corpus{
		Users:  make([]model.User, 0, len(raw.Users)),
		Tweets: make([]model.Tweet, 0, len(raw.Tweets)),
		Places: make([]model.Place, 0, len(raw.Places)),
	}
	for _, m := range raw.Tweets {
		t, err := model.TweetFromMap(m)
		if err != nil {
			return Corpus{}, err
		}
		corpus.Tweets = append(corpus.Tweets, t)
	}
	for _, m := range raw.Users {
		u, err := model.UserFromMap(m)
		if err != nil {
			return Corpus{}, err
		}
		corpus.Users = append(corpus.Users, u)
	}
	for _, m := range raw.Places {
		p, err := model.PlaceFromMap(m)
		if err != nil {
			return Corpus{}, err
		}
		corpus.Places = append(corpus.Places, p)
	}
	return corpus, nil
}

type tweetKey struct{ id, text, author string }
type userKey struct{ id, createdAt string }
type placeKey struct{ id, countryCode string }

func dedup(c Corpus) Corpus {
	return Corpus{
		Users:  DedupUsers(c.Users),
		Tweets: DedupTweets(c.Tweets),
		Places: DedupPlaces(c.Places),
	}
}

// DedupTweets drops later tweets with an identical (id, text, author) triple.
// Same id with different text stays: the crawl captured edit-history variants.
func DedupTweets(tweets []model.Tweet) []model.Tweet {
	seen := make(map[tweetKey]struct{}, len(tweets))
	out := make([]model.Tweet, 0, len(tweets))
	for _, t := range tweets {
		k := tweetKey{id: t.ID, text: t.Text, author: t.AuthorID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DedupUsers keeps the first capture per (id, created_at).
func DedupUsers(users []model.User) []model.User {
	seen := make(map[userKey]struct{}, len(users))
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		k := userKey{id: u.ID, createdAt: u.CreatedAt}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, u)
	}
	return out
}

// DedupPlaces keeps the first capture per (id, country_code).
func DedupPlaces(places []model.Place) []model.Place {
	seen := make(map[placeKey]struct{}, len(places))
	out := make([]model.Place, 0, len(places))
	for _, p := range places {
		k := placeKey{id: p.ID, countryCode: p.CountryCode}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
