package dataset

import (
	"encoding/json"
	"fmt"
	"os"

	"convoyset/internal/metrics"
)

// RawBundle accumulates unconverted records from one or more crawl files.
type RawBundle struct {
	Users  []map[string]any
	Tweets []map[string]any
	Places []map[string]any
	// Skipped counts top-level records matching neither known shape. They
	// are dropped, but the count is observable so regressions in skip rate
	// show up.
	Skipped int
}

func (b *RawBundle) merge(other RawBundle) {
	b.Users = append(b.Users, other.Users...)
	b.Tweets = append(b.Tweets, other.Tweets...)
	b.Places = append(b.Places, other.Places...)
	b.Skipped += other.Skipped
}

// LoadFile reads one crawl JSON file. The top-level value is either a single
// object or an array of objects; each object is either itself a tweet record
// (it has a "lang" key) or a bundle whose users/tweets/places sub-arrays are
// appended to the outputs. Loading is read-only and idempotent.
func LoadFile(path string) (RawBundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawBundle{}, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	// Ids in these dumps exceed 2^53; they must never pass through float64.
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return RawBundle{}, fmt.Errorf("%s: %w", path, err)
	}

	var bundle RawBundle
	switch v := data.(type) {
	case nil:
		// empty file, nothing to do
	case []any:
		for _, elem := range v {
			m, ok := elem.(map[string]any)
			if !ok {
				return RawBundle{}, fmt.Errorf("%s: top-level array element is not an object", path)
			}
			bundle.classify(m)
		}
	case map[string]any:
		bundle.classify(v)
	default:
		return RawBundle{}, fmt.Errorf("%s: top-level value is neither object nor array", path)
	}

	metrics.FilesLoaded.Inc()
	metrics.IncSkipped(bundle.Skipped)
	return bundle, nil
}

func (b *RawBundle) classify(elem map[string]any) {
	if _, ok := elem["lang"]; ok {
		b.Tweets = append(b.Tweets, elem)
		return
	}
	if _, ok := elem["users"]; ok {
		b.Users = append(b.Users, listOfMaps(elem["users"])...)
		b.Tweets = append(b.Tweets, listOfMaps(elem["tweets"])...)
		b.Places = append(b.Places, listOfMaps(elem["places"])...)
		return
	}
	b.Skipped++
}

func listOfMaps(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
