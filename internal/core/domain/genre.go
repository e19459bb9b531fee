package domain

import (
	"fmt"
	"strings"
)

// Genre is the coarse music taxonomy that drives gameplay adaptation.
type Genre int

const (
	GenreDefault Genre = iota
	GenreRock
	GenrePop
	GenreClassic
	GenreRap
	GenreCountry
)

// ClassificationOrder is the fixed priority used when more than one genre matches.
var ClassificationOrder = []Genre{GenreRock, GenrePop, GenreClassic, GenreRap, GenreCountry}

// AllGenres lists every genre, Default included.
var AllGenres = []Genre{GenreDefault, GenreRock, GenrePop, GenreClassic, GenreRap, GenreCountry}

var genreNames = map[Genre]string{
	GenreDefault: "default",
	GenreRock:    "rock",
	GenrePop:     "pop",
	GenreClassic: "classic",
	GenreRap:     "rap",
	GenreCountry: "country",
}

func (g Genre) String() string {
	if name, ok := genreNames[g]; ok {
		return name
	}
	return fmt.Sprintf("genre(%d)", int(g))
}

// ParseGenre maps a case-insensitive genre name to a Genre.
func ParseGenre(s string) (Genre, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for g, name := range genreNames {
		if name == needle {
			return g, nil
		}
	}
	return GenreDefault, fmt.Errorf("domain: unknown genre %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Genre) MarshalText() ([]byte, error) {
	if _, ok := genreNames[g]; !ok {
		return nil, fmt.Errorf("domain: invalid genre %d", int(g))
	}
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Genre) UnmarshalText(text []byte) error {
	parsed, err := ParseGenre(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
