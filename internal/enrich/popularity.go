package enrich

import (
	"time"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// Popularity score components. Rating dominates, metadata quality keeps
// sparse items from ranking high, and recency decays linearly over a
// year so back-catalog titles settle below current ones.
const (
	popularityRatingWeight  = 60
	popularityQualityWeight = 25
	popularityRecencyWeight = 15

	maxRating      = 10.0
	recencyWindow  = 365 * 24 * time.Hour
	ongoingRecency = 1.0
)

// PopularityScore computes a 0-100 popularity estimate from the item's
// rating, metadata quality and recency.
func PopularityScore(item *domain.ContentItem, now time.Time) float64 {
	var score float64

	if item.Rating > 0 {
		r := item.Rating
		if r > maxRating {
			r = maxRating
		}
		score += popularityRatingWeight * r / maxRating
	}

	score += popularityQualityWeight * item.QualityScore / maxQualityScore

	score += popularityRecencyWeight * recencyFactor(item, now)

	if score > 100 {
		score = 100
	}
	return score
}

// recencyFactor is 1.0 for ongoing items, decays linearly with age for
// finished ones, and is 0 when the release year is unknown.
func recencyFactor(item *domain.ContentItem, now time.Time) float64 {
	if item.Status == domain.StatusOngoing {
		return ongoingRecency
	}
	if item.Year == 0 {
		return 0
	}
	released := time.Date(item.Year, time.July, 1, 0, 0, 0, 0, time.UTC)
	age := now.Sub(released)
	if age <= 0 {
		return 1
	}
	if age >= recencyWindow {
		return 0
	}
	return 1 - float64(age)/float64(recencyWindow)
}
