package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flori92/FloDrama-sub001/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func contentRowColumns() []string {
	return []string{
		"id", "title", "original_title", "content_type", "source", "year", "rating",
		"language", "status", "release_date", "director", "synopsis", "poster_url",
		"backdrop_url", "quality_score", "popularity_score", "category", "sentiment",
		"genres", "tags", "actors", "gallery", "streaming_urls", "related_content",
		"secondary_categories", "category_confidence", "entities",
		"popularity_updated_at", "created_at", "updated_at",
	}
}

func sampleRowValues(id, title, source string, year int) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, title, "", "drama", source, year, 8.5,
		"ko", "ongoing", "2019-12-14", "Lee Jeong-hyo", "A synopsis.", "https://cdn.example/p.jpg",
		"", 80.0, 50.0, "romance", "positive",
		[]byte(`["romance","comedy"]`), nil, []byte(`["Hyun Bin"]`), nil,
		[]byte(`[{"quality":"HD","url":"https://stream.example/1"}]`), nil,
		nil, nil, nil,
		nil, now, now,
	}
}

func TestUpsertReturnsRowID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	mock.ExpectQuery("INSERT INTO content_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	item := &domain.ContentItem{
		Title:  "Crash Landing on You",
		Type:   domain.TypeDrama,
		Source: "voirdrama",
		Year:   2019,
	}
	id, err := repo.Upsert(context.Background(), item)
	require.NoError(t, err)

	// The database decides the canonical row ID on conflict.
	assert.Equal(t, "existing-id", id)
	assert.Equal(t, "existing-id", item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByKeyDecodesJSONBColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	rows := sqlmock.NewRows(contentRowColumns()).
		AddRow(sampleRowValues("id-1", "Crash Landing on You", "voirdrama", 2019)...)
	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WithArgs("Crash Landing on You", "voirdrama", 2019).
		WillReturnRows(rows)

	item, err := repo.GetByKey(context.Background(), "Crash Landing on You", "voirdrama", 2019)
	require.NoError(t, err)

	assert.Equal(t, []string{"romance", "comedy"}, item.Genres)
	assert.Equal(t, []string{"Hyun Bin"}, item.Actors)
	require.Len(t, item.StreamingURLs, 1)
	assert.Equal(t, "HD", item.StreamingURLs[0].Quality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByKeyMissingRowIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM content_items").
		WillReturnRows(sqlmock.NewRows(contentRowColumns()))

	_, err := repo.GetByKey(context.Background(), "Nope", "voirdrama", 2000)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByCategoryOrdersBySourceAndTitle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	rows := sqlmock.NewRows(contentRowColumns()).
		AddRow(sampleRowValues("id-1", "A", "s1", 2019)...).
		AddRow(sampleRowValues("id-2", "B", "s2", 2020)...)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY source, title")).
		WithArgs("drama").
		WillReturnRows(rows)

	items, err := repo.ListByCategory(context.Background(), domain.TypeDrama)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "id-1", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePopularityMissingRowIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	mock.ExpectExec("UPDATE content_items SET popularity_score").
		WithArgs("missing-id", 42.0).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePopularity(context.Background(), "missing-id", 42.0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAffectsOneRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	mock.ExpectExec("DELETE FROM content_items").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaleGroupsScansGroups(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db)

	rows := sqlmock.NewRows([]string{"source", "content_type", "ongoing", "count"}).
		AddRow("voirdrama", "drama", true, 12).
		AddRow("filmcomplet", "film", false, 3)
	mock.ExpectQuery("SELECT source, content_type").
		WillReturnRows(rows)

	groups, err := repo.StaleGroups(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].Ongoing)
	assert.Equal(t, "filmcomplet", groups[1].Source)
}
