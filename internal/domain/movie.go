package domain

import (
	"strings"
	"time"
)

type Rating struct {
	Source string `json:"source" bson:"source"`
	Value  string `json:"value" bson:"value"`
}

type MovieMetadata struct {
	Source      string    `json:"source,omitempty" bson:"source,omitempty"`
	Genres      []string  `json:"genres,omitempty" bson:"genres,omitempty"`
	Ratings     []Rating  `json:"ratings,omitempty" bson:"ratings,omitempty"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
	Popularity  float64   `json:"popularity,omitempty" bson:"popularity,omitempty"`
	Languages   []string  `json:"languages,omitempty" bson:"languages,omitempty"`
	Keywords    []string  `json:"keywords,omitempty" bson:"keywords,omitempty"`
}

type MovieRecord struct {
	Name         string        `json:"name" bson:"name"`
	Poster       string        `json:"poster" bson:"poster"`
	Description  string        `json:"description" bson:"description"`
	Cast         []string      `json:"cast" bson:"cast"`
	YearReleased string        `json:"yearReleased" bson:"yearReleased"`
	Seasons      string        `json:"seasons,omitempty" bson:"seasons,omitempty"`
	Episode      string        `json:"episode,omitempty" bson:"episode,omitempty"`
	TimeDuration string        `json:"timeDuration,omitempty" bson:"timeDuration,omitempty"`
	Metadata     MovieMetadata `json:"metadata" bson:"metadata"`
}

// IdentityKey is the deduplication key. Matching is exact and case-sensitive.
func (m MovieRecord) IdentityKey() string {
	return m.Name + "\x00" + m.YearReleased
}

// Clone returns a deep copy so merged records never alias catalog or cache slices.
func (m MovieRecord) Clone() MovieRecord {
	out := m
	out.Cast = cloneStrings(m.Cast)
	out.Metadata.Genres = cloneStrings(m.Metadata.Genres)
	out.Metadata.Languages = cloneStrings(m.Metadata.Languages)
	out.Metadata.Keywords = cloneStrings(m.Metadata.Keywords)
	if m.Metadata.Ratings != nil {
		out.Metadata.Ratings = append([]Rating(nil), m.Metadata.Ratings...)
	}
	return out
}

func CloneMovies(items []MovieRecord) []MovieRecord {
	if items == nil {
		return nil
	}
	out := make([]MovieRecord, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func normalizeLabel(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
