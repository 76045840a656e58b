// Package enrich adds derived metadata to catalog items: sentiment and
// entities from the NLP service, a metadata quality score, primary and
// secondary categories, a popularity score and similar-content links.
package enrich

import "github.com/flori92/FloDrama-sub001/internal/domain"

// Quality score weights. The sum of all weights is 100; partial field
// contributions are capped at the field's weight.
const (
	weightTitle       = 15
	weightSynopsis    = 25
	weightPoster      = 10
	weightReleaseDate = 10
	weightGenres      = 15
	weightCast        = 15
	weightDirector    = 10

	maxQualityScore = 100

	// Full credit thresholds for the length-scaled fields.
	fullSynopsisLen = 200
	fullGenreCount  = 3
	fullCastCount   = 5
)

// QualityScore computes the 0-100 metadata completeness score for an
// item. Presence fields contribute their full weight; synopsis, genres
// and cast scale with length up to their weight.
func QualityScore(item *domain.ContentItem) float64 {
	var score float64

	if item.Title != "" {
		score += weightTitle
	}
	score += scaled(len(item.Synopsis), fullSynopsisLen, weightSynopsis)
	if item.PosterURL != "" {
		score += weightPoster
	}
	if item.ReleaseDate != "" || item.Year != 0 {
		score += weightReleaseDate
	}
	score += scaled(len(item.Genres), fullGenreCount, weightGenres)
	score += scaled(len(item.Actors), fullCastCount, weightCast)
	if item.Director != "" {
		score += weightDirector
	}

	if score > maxQualityScore {
		score = maxQualityScore
	}
	return score
}

// scaled returns weight * min(n/full, 1).
func scaled(n, full, weight int) float64 {
	if n <= 0 {
		return 0
	}
	if n >= full {
		return float64(weight)
	}
	return float64(weight) * float64(n) / float64(full)
}
