package search

import (
	"log/slog"

	"moviediscovery/searchservice/internal/domain"
)

// MergeDedupResults flattens result sets in order and collapses records that
// share an identity key. The first occurrence becomes canonical: its scalar
// fields win unless empty, list metadata is unioned, and lastUpdated keeps the
// earliest non-zero value.
func MergeDedupResults(resultSets [][]domain.MovieRecord) []domain.MovieRecord {
	total := 0
	for _, set := range resultSets {
		total += len(set)
	}
	merged := make([]domain.MovieRecord, 0, total)
	index := make(map[string]int, total)

	for _, set := range resultSets {
		for _, record := range set {
			key := record.IdentityKey()
			position, exists := index[key]
			if !exists {
				canonical := record.Clone()
				canonical.Metadata.Genres = unionStrings(nil, canonical.Metadata.Genres)
				canonical.Metadata.Languages = unionStrings(nil, canonical.Metadata.Languages)
				canonical.Metadata.Keywords = unionStrings(nil, canonical.Metadata.Keywords)
				canonical.Metadata.Ratings = unionRatings(nil, canonical.Metadata.Ratings)
				index[key] = len(merged)
				merged = append(merged, canonical)
				continue
			}
			mergeInto(&merged[position], record)
		}
	}

	slog.Debug("merged catalog results",
		slog.Int("input", total),
		slog.Int("unique", len(merged)),
	)
	return merged
}

func mergeInto(target *domain.MovieRecord, other domain.MovieRecord) {
	target.Poster = firstNonEmpty(target.Poster, other.Poster)
	target.Description = firstNonEmpty(target.Description, other.Description)
	target.Seasons = firstNonEmpty(target.Seasons, other.Seasons)
	target.Episode = firstNonEmpty(target.Episode, other.Episode)
	target.TimeDuration = firstNonEmpty(target.TimeDuration, other.TimeDuration)
	if len(target.Cast) == 0 && len(other.Cast) > 0 {
		target.Cast = append([]string(nil), other.Cast...)
	}

	meta := &target.Metadata
	meta.Source = firstNonEmpty(meta.Source, other.Metadata.Source)
	if meta.Popularity == 0 {
		meta.Popularity = other.Metadata.Popularity
	}
	meta.Genres = unionStrings(meta.Genres, other.Metadata.Genres)
	meta.Languages = unionStrings(meta.Languages, other.Metadata.Languages)
	meta.Keywords = unionStrings(meta.Keywords, other.Metadata.Keywords)
	meta.Ratings = unionRatings(meta.Ratings, other.Metadata.Ratings)

	otherUpdated := other.Metadata.LastUpdated
	if meta.LastUpdated.IsZero() || (!otherUpdated.IsZero() && otherUpdated.Before(meta.LastUpdated)) {
		meta.LastUpdated = otherUpdated
	}
}

func firstNonEmpty(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

// unionStrings appends the values of extra missing from base, preserving
// first-seen order. A nil result stays nil.
func unionStrings(base, extra []string) []string {
	if len(base) == 0 && len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, values := range [][]string{base, extra} {
		for _, value := range values {
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			out = append(out, value)
		}
	}
	return out
}

func unionRatings(base, extra []domain.Rating) []domain.Rating {
	if len(base) == 0 && len(extra) == 0 {
		return base
	}
	seen := make(map[domain.Rating]struct{}, len(base)+len(extra))
	out := make([]domain.Rating, 0, len(base)+len(extra))
	for _, values := range [][]domain.Rating{base, extra} {
		for _, value := range values {
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			out = append(out, value)
		}
	}
	return out
}
