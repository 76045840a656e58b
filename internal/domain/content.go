// Package domain defines the core data model shared by the FloDrama
// aggregation pipeline: catalog items, scraping tasks, run logs and the
// error taxonomy used across component boundaries.
package domain

import (
	"time"
)

// ContentType identifies which catalog a content item belongs to.
type ContentType string

const (
	TypeDrama     ContentType = "drama"
	TypeAnime     ContentType = "anime"
	TypeFilm      ContentType = "film"
	TypeBollywood ContentType = "bollywood"
)

// ContentTypes lists every known catalog, in scheduling order.
var ContentTypes = []ContentType{TypeDrama, TypeAnime, TypeFilm, TypeBollywood}

// StreamingURL is a single playable stream reference.
type StreamingURL struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// ContentItem is the unified catalog record aggregated across sources.
//
// Items are identified for upsert purposes by the natural key
// (title, source, year), never by the surrogate ID alone. A re-scrape
// updates the matching row in place; a deduplication merge unions fields
// into the retained side and deletes the losing side.
type ContentItem struct {
	ID            string      `db:"id"             json:"id"`
	Title         string      `db:"title"          json:"title"`
	OriginalTitle string      `db:"original_title" json:"original_title,omitempty"`
	Type          ContentType `db:"content_type"   json:"type"`
	Source        string      `db:"source"         json:"source"`
	Year          int         `db:"year"           json:"year"`
	Rating        float64     `db:"rating"         json:"rating"`
	Language      string      `db:"language"       json:"language,omitempty"`
	Status        string      `db:"status"         json:"status,omitempty"`
	ReleaseDate   string      `db:"release_date"   json:"release_date,omitempty"`

	Genres         []string       `db:"-" json:"genres,omitempty"`
	Tags           []string       `db:"-" json:"tags,omitempty"`
	Actors         []string       `db:"-" json:"actors,omitempty"`
	Director       string         `db:"director" json:"director,omitempty"`
	Synopsis       string         `db:"synopsis" json:"synopsis,omitempty"`
	PosterURL      string         `db:"poster_url"   json:"poster,omitempty"`
	BackdropURL    string         `db:"backdrop_url" json:"backdrop,omitempty"`
	Gallery        []string       `db:"-" json:"gallery,omitempty"`
	StreamingURLs  []StreamingURL `db:"-" json:"streaming_urls,omitempty"`
	RelatedContent []string       `db:"-" json:"related_content,omitempty"`

	QualityScore    float64 `db:"quality_score"    json:"quality_score"`
	PopularityScore float64 `db:"popularity_score" json:"popularity_score"`

	Category            string             `db:"category" json:"category,omitempty"`
	SecondaryCategories []string           `db:"-" json:"secondary_categories,omitempty"`
	CategoryConfidence  map[string]float64 `db:"-" json:"category_confidence,omitempty"`
	Sentiment           string             `db:"sentiment" json:"sentiment,omitempty"`
	Entities            []string           `db:"-" json:"entities,omitempty"`

	PopularityUpdatedAt *time.Time `db:"popularity_updated_at" json:"popularity_updated_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusOngoing marks items that are still airing and refreshed more
// aggressively by the scheduler.
const StatusOngoing = "ongoing"

// ExternalView is the trimmed JSON shape handed to downstream consumers.
type ExternalView struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Poster        string         `json:"poster"`
	Year          int            `json:"year"`
	Rating        float64        `json:"rating"`
	Genres        []string       `json:"genres"`
	Synopsis      string         `json:"synopsis"`
	StreamingURLs []StreamingURL `json:"streaming_urls"`
	Category      string         `json:"category"`
	QualityScore  float64        `json:"quality_score"`
}

// External converts an item to its external shape.
func (c *ContentItem) External() ExternalView {
	return ExternalView{
		ID:            c.ID,
		Title:         c.Title,
		Poster:        c.PosterURL,
		Year:          c.Year,
		Rating:        c.Rating,
		Genres:        c.Genres,
		Synopsis:      c.Synopsis,
		StreamingURLs: c.StreamingURLs,
		Category:      c.Category,
		QualityScore:  c.QualityScore,
	}
}

// DuplicatePair records one cross-source candidate produced by the
// deduplication engine. Pairs live only for the duration of a pass; they
// are reported, never persisted.
type DuplicatePair struct {
	ID1                     string  `json:"id1"`
	ID2                     string  `json:"id2"`
	TitleSimilarity         float64 `json:"title_similarity"`
	OriginalTitleSimilarity float64 `json:"original_title_similarity"`
	Source1                 string  `json:"source1"`
	Source2                 string  `json:"source2"`
	Year1                   int     `json:"year1"`
	Year2                   int     `json:"year2"`
}
