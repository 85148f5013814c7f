package model

import "fmt"

var userRequiredKeys = []string{
	"protected",
	"username",
	"created_at",
	"name",
	"description",
	"verified",
	"profile_image_url",
	"id",
	"public_metrics",
}

// User is one captured account. CreatedAt stays the raw string the crawl
// delivered: it is part of the dedup identity and is never interpreted.
type User struct {
	ID              string
	Username        string
	Name            string
	CreatedAt       string
	Description     string
	Verified        bool
	Protected       bool
	ProfileImageURL string
	PublicMetrics   map[string]int
	URL             string
	Location        string
	PinnedTweetID   string
	Withheld        map[string]any
	Entities        map[string]any
}

// UserFromMap builds a User from one raw crawl record.
func UserFromMap(raw map[string]any) (User, error) {
	if err := requireKeys("user", raw, userRequiredKeys); err != nil {
		return User{}, err
	}

	metrics, err := counterMapFromAny("user", raw["public_metrics"])
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:              coerceID(raw["id"]),
		Username:        coerceString(raw["username"]),
		Name:            coerceString(raw["name"]),
		CreatedAt:       coerceString(raw["created_at"]),
		Description:     coerceString(raw["description"]),
		Verified:        coerceBool(raw["verified"]),
		Protected:       coerceBool(raw["protected"]),
		ProfileImageURL: coerceString(raw["profile_image_url"]),
		PublicMetrics:   metrics,
	}

	if v, ok := raw["url"]; ok && v != nil {
		u.URL = coerceString(v)
	}
	if v, ok := raw["location"]; ok && v != nil {
		u.Location = coerceString(v)
	}
	if v, ok := raw["pinned_tweet_id"]; ok && v != nil {
		u.PinnedTweetID = coerceID(v)
	}
	if v, ok := raw["withheld"]; ok {
		u.Withheld = mapFromAny(v)
	}
	if v, ok := raw["entities"]; ok {
		u.Entities = mapFromAny(v)
	}
	return u, nil
}

// counterMapFromAny copies a public_metrics object into a counter map,
// rejecting negatives.
func counterMapFromAny(entity string, v any) (map[string]int, error) {
	m := mapFromAny(v)
	if m == nil {
		return nil, &SchemaError{Entity: entity, Key: "public_metrics", Reason: "not an object"}
	}
	out := make(map[string]int, len(m))
	for name, raw := range m {
		n, err := coerceInt(raw)
		if err != nil {
			return nil, &SchemaError{Entity: entity, Key: name, Reason: err.Error()}
		}
		if n < 0 {
			return nil, &SchemaError{Entity: entity, Key: name, Reason: fmt.Sprintf("negative counter %d", n)}
		}
		out[name] = n
	}
	return out, nil
}

func (u User) String() string {
	return fmt.Sprintf("User(username=%s, name=%s, id=%s)", u.Username, u.Name, u.ID)
}
