package model

import "fmt"

var placeRequiredKeys = []string{
	"country_code",
	"geo",
	"name",
	"country",
	"full_name",
	"id",
	"place_type",
}

// Place is one captured geographic location. Geo is kept opaque; nothing
// downstream interprets the geometry.
type Place struct {
	ID          string
	CountryCode string
	Country     string
	Name        string
	FullName    string
	PlaceType   string
	Geo         map[string]any
}

// PlaceFromMap builds a Place from one raw crawl record.
func PlaceFromMap(raw map[string]any) (Place, error) {
	if err := requireKeys("place", raw, placeRequiredKeys); err != nil {
		return Place{}, err
	}
	return Place{
		ID:          coerceID(raw["id"]),
		CountryCode: coerceString(raw["country_code"]),
		Country:     coerceString(raw["country"]),
		Name:        coerceString(raw["name"]),
		FullName:    coerceString(raw["full_name"]),
		PlaceType:   coerceString(raw["place_type"]),
		Geo:         mapFromAny(raw["geo"]),
	}, nil
}

func (p Place) String() string {
	return fmt.Sprintf("Place(id=%s, full_name=%s, country_code=%s)", p.ID, p.FullName, p.CountryCode)
}
