package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

// contentColumns is the column list shared by every SELECT on
// content_items (single source for schema changes).
const contentColumns = `id, title, original_title, content_type, source, year, rating,
	language, status, release_date, director, synopsis, poster_url, backdrop_url,
	quality_score, popularity_score, category, sentiment,
	genres, tags, actors, gallery, streaming_urls, related_content,
	secondary_categories, category_confidence, entities,
	popularity_updated_at, created_at, updated_at`

// ContentRepository persists catalog items.
//
// Items are keyed for upsert by (title, source, year); the surrogate ID is
// only a row handle. Writes are single-row upserts with no cross-item
// transaction: concurrent runners touching the same key race with
// last-write-wins semantics, which the pipeline accepts.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// contentRow is the flat scan target; JSONB columns land in []byte.
type contentRow struct {
	ID                  string         `db:"id"`
	Title               string         `db:"title"`
	OriginalTitle       string         `db:"original_title"`
	ContentType         string         `db:"content_type"`
	Source              string         `db:"source"`
	Year                int            `db:"year"`
	Rating              float64        `db:"rating"`
	Language            string         `db:"language"`
	Status              string         `db:"status"`
	ReleaseDate         string         `db:"release_date"`
	Director            string         `db:"director"`
	Synopsis            string         `db:"synopsis"`
	PosterURL           string         `db:"poster_url"`
	BackdropURL         string         `db:"backdrop_url"`
	QualityScore        float64        `db:"quality_score"`
	PopularityScore     float64        `db:"popularity_score"`
	Category            string         `db:"category"`
	Sentiment           string         `db:"sentiment"`
	Genres              []byte         `db:"genres"`
	Tags                []byte         `db:"tags"`
	Actors              []byte         `db:"actors"`
	Gallery             []byte         `db:"gallery"`
	StreamingURLs       []byte         `db:"streaming_urls"`
	RelatedContent      []byte         `db:"related_content"`
	SecondaryCategories []byte         `db:"secondary_categories"`
	CategoryConfidence  []byte         `db:"category_confidence"`
	Entities            []byte         `db:"entities"`
	PopularityUpdatedAt sql.NullTime   `db:"popularity_updated_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r *contentRow) toDomain() (*domain.ContentItem, error) {
	item := &domain.ContentItem{
		ID:              r.ID,
		Title:           r.Title,
		OriginalTitle:   r.OriginalTitle,
		Type:            domain.ContentType(r.ContentType),
		Source:          r.Source,
		Year:            r.Year,
		Rating:          r.Rating,
		Language:        r.Language,
		Status:          r.Status,
		ReleaseDate:     r.ReleaseDate,
		Director:        r.Director,
		Synopsis:        r.Synopsis,
		PosterURL:       r.PosterURL,
		BackdropURL:     r.BackdropURL,
		QualityScore:    r.QualityScore,
		PopularityScore: r.PopularityScore,
		Category:        r.Category,
		Sentiment:       r.Sentiment,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.PopularityUpdatedAt.Valid {
		t := r.PopularityUpdatedAt.Time
		item.PopularityUpdatedAt = &t
	}

	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{r.Genres, &item.Genres},
		{r.Tags, &item.Tags},
		{r.Actors, &item.Actors},
		{r.Gallery, &item.Gallery},
		{r.StreamingURLs, &item.StreamingURLs},
		{r.RelatedContent, &item.RelatedContent},
		{r.SecondaryCategories, &item.SecondaryCategories},
		{r.CategoryConfidence, &item.CategoryConfidence},
		{r.Entities, &item.Entities},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("decode jsonb column for item %s: %w", r.ID, err)
		}
	}
	return item, nil
}

func jsonb(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}

// Upsert inserts or updates an item keyed by (title, source, year).
// Scraped fields are overwritten; enrichment-derived fields are left
// untouched on conflict. Returns the row ID.
func (r *ContentRepository) Upsert(ctx context.Context, item *domain.ContentItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	query := `
		INSERT INTO content_items (
			id, title, original_title, content_type, source, year, rating,
			language, status, release_date, director, synopsis, poster_url,
			backdrop_url, genres, tags, actors, gallery, streaming_urls,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, NOW(), NOW()
		)
		ON CONFLICT (title, source, year) DO UPDATE SET
			original_title = EXCLUDED.original_title,
			rating = EXCLUDED.rating,
			language = EXCLUDED.language,
			status = EXCLUDED.status,
			release_date = EXCLUDED.release_date,
			director = EXCLUDED.director,
			synopsis = EXCLUDED.synopsis,
			poster_url = EXCLUDED.poster_url,
			backdrop_url = EXCLUDED.backdrop_url,
			genres = EXCLUDED.genres,
			tags = EXCLUDED.tags,
			actors = EXCLUDED.actors,
			gallery = EXCLUDED.gallery,
			streaming_urls = EXCLUDED.streaming_urls,
			updated_at = NOW()
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		item.ID, item.Title, item.OriginalTitle, string(item.Type), item.Source,
		item.Year, item.Rating, item.Language, item.Status, item.ReleaseDate,
		item.Director, item.Synopsis, item.PosterURL, item.BackdropURL,
		jsonb(item.Genres), jsonb(item.Tags), jsonb(item.Actors),
		jsonb(item.Gallery), jsonb(item.StreamingURLs),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert item %q/%s/%d: %w", item.Title, item.Source, item.Year, err)
	}
	item.ID = id
	return id, nil
}

// GetByKey fetches one item by its natural key.
func (r *ContentRepository) GetByKey(ctx context.Context, title, source string, year int) (*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items
		WHERE title = $1 AND source = $2 AND year = $3`

	var row contentRow
	if err := r.db.GetContext(ctx, &row, query, title, source, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get item by key: %w", err)
	}
	return row.toDomain()
}

// ListByCategory returns every item in one catalog, ordered by source then
// title for deterministic pairwise scans.
func (r *ContentRepository) ListByCategory(ctx context.Context, category domain.ContentType) ([]*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items
		WHERE content_type = $1 ORDER BY source, title`

	var rows []contentRow
	if err := r.db.SelectContext(ctx, &rows, query, string(category)); err != nil {
		return nil, fmt.Errorf("list category %s: %w", category, err)
	}

	items := make([]*domain.ContentItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateMerged writes the full post-merge state of a retained item.
func (r *ContentRepository) UpdateMerged(ctx context.Context, item *domain.ContentItem) error {
	query := `
		UPDATE content_items SET
			original_title = $2, source = $3, rating = $4, language = $5,
			status = $6, release_date = $7, director = $8, synopsis = $9,
			poster_url = $10, backdrop_url = $11, genres = $12, tags = $13,
			actors = $14, gallery = $15, streaming_urls = $16,
			related_content = $17, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		item.ID, item.OriginalTitle, item.Source, item.Rating, item.Language,
		item.Status, item.ReleaseDate, item.Director, item.Synopsis,
		item.PosterURL, item.BackdropURL, jsonb(item.Genres), jsonb(item.Tags),
		jsonb(item.Actors), jsonb(item.Gallery), jsonb(item.StreamingURLs),
		jsonb(item.RelatedContent),
	)
	if err != nil {
		return fmt.Errorf("update merged item %s: %w", item.ID, err)
	}
	return expectOneRow(result)
}

// UpdateEnrichment writes the derived fields only.
func (r *ContentRepository) UpdateEnrichment(ctx context.Context, item *domain.ContentItem) error {
	query := `
		UPDATE content_items SET
			quality_score = $2, category = $3, secondary_categories = $4,
			category_confidence = $5, sentiment = $6, entities = $7,
			related_content = $8, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		item.ID, item.QualityScore, item.Category,
		jsonb(item.SecondaryCategories), jsonb(item.CategoryConfidence),
		item.Sentiment, jsonb(item.Entities), jsonb(item.RelatedContent),
	)
	if err != nil {
		return fmt.Errorf("update enrichment for %s: %w", item.ID, err)
	}
	return expectOneRow(result)
}

// UpdatePopularity stores a fresh popularity score.
func (r *ContentRepository) UpdatePopularity(ctx context.Context, id string, score float64) error {
	query := `UPDATE content_items SET popularity_score = $2,
		popularity_updated_at = NOW(), updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, score)
	if err != nil {
		return fmt.Errorf("update popularity for %s: %w", id, err)
	}
	return expectOneRow(result)
}

// Delete removes an item; used only for the losing side of a merge.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TaskGroup describes one (source, category) batch a scheduler policy
// wants to refresh, enrich or re-score.
type TaskGroup struct {
	Source   string `db:"source"`
	Category string `db:"content_type"`
	Ongoing  bool   `db:"ongoing"`
	Count    int    `db:"count"`
}

// StaleGroups returns (source, category) groups holding items not updated
// within the cutoff, never updated, or still ongoing.
func (r *ContentRepository) StaleGroups(ctx context.Context, olderThan time.Duration) ([]TaskGroup, error) {
	query := `
		SELECT source, content_type,
		       bool_or(status = 'ongoing') AS ongoing,
		       COUNT(*) AS count
		FROM content_items
		WHERE updated_at IS NULL
		   OR updated_at < NOW() - $1::interval
		   OR status = 'ongoing'
		GROUP BY source, content_type`

	var groups []TaskGroup
	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	if err := r.db.SelectContext(ctx, &groups, query, interval); err != nil {
		return nil, fmt.Errorf("stale groups: %w", err)
	}
	return groups, nil
}

// EnrichmentGroups returns groups holding items with a low or missing
// quality score, or missing sentiment/entity fields.
func (r *ContentRepository) EnrichmentGroups(ctx context.Context, qualityThreshold float64) ([]TaskGroup, error) {
	query := `
		SELECT source, content_type, FALSE AS ongoing, COUNT(*) AS count
		FROM content_items
		WHERE quality_score < $1
		   OR quality_score IS NULL
		   OR sentiment = ''
		   OR entities IS NULL
		GROUP BY source, content_type`

	var groups []TaskGroup
	if err := r.db.SelectContext(ctx, &groups, query, qualityThreshold); err != nil {
		return nil, fmt.Errorf("enrichment groups: %w", err)
	}
	return groups, nil
}

// PopularityGroups returns groups holding items with no popularity score
// or one older than maxAge.
func (r *ContentRepository) PopularityGroups(ctx context.Context, maxAge time.Duration) ([]TaskGroup, error) {
	query := `
		SELECT source, content_type, FALSE AS ongoing, COUNT(*) AS count
		FROM content_items
		WHERE popularity_updated_at IS NULL
		   OR popularity_updated_at < NOW() - $1::interval
		GROUP BY source, content_type`

	var groups []TaskGroup
	interval := fmt.Sprintf("%d seconds", int(maxAge.Seconds()))
	if err := r.db.SelectContext(ctx, &groups, query, interval); err != nil {
		return nil, fmt.Errorf("popularity groups: %w", err)
	}
	return groups, nil
}

// ItemsNeedingEnrichment returns up to limit items from one group still
// missing derived fields.
func (r *ContentRepository) ItemsNeedingEnrichment(ctx context.Context, source string, category domain.ContentType, qualityThreshold float64, limit int) ([]*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items
		WHERE source = $1 AND content_type = $2
		  AND (quality_score < $3 OR quality_score IS NULL
		       OR sentiment = '' OR entities IS NULL)
		ORDER BY updated_at ASC
		LIMIT $4`

	var rows []contentRow
	if err := r.db.SelectContext(ctx, &rows, query, source, string(category), qualityThreshold, limit); err != nil {
		return nil, fmt.Errorf("items needing enrichment: %w", err)
	}
	return rowsToItems(rows)
}

// ItemsNeedingPopularity returns up to limit items whose popularity score
// is missing or stale.
func (r *ContentRepository) ItemsNeedingPopularity(ctx context.Context, source string, category domain.ContentType, maxAge time.Duration, limit int) ([]*domain.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items
		WHERE source = $1 AND content_type = $2
		  AND (popularity_updated_at IS NULL
		       OR popularity_updated_at < NOW() - $3::interval)
		ORDER BY popularity_updated_at ASC NULLS FIRST
		LIMIT $4`

	var rows []contentRow
	interval := fmt.Sprintf("%d seconds", int(maxAge.Seconds()))
	if err := r.db.SelectContext(ctx, &rows, query, source, string(category), interval, limit); err != nil {
		return nil, fmt.Errorf("items needing popularity: %w", err)
	}
	return rowsToItems(rows)
}

func rowsToItems(rows []contentRow) ([]*domain.ContentItem, error) {
	items := make([]*domain.ContentItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
