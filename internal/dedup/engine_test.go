package dedup

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flori92/FloDrama-sub001/internal/domain"
	"github.com/flori92/FloDrama-sub001/internal/logger"
	"github.com/flori92/FloDrama-sub001/internal/metrics"
)

type fakeContentStore struct {
	items   []*domain.ContentItem
	updated []*domain.ContentItem
	deleted []string
}

func (f *fakeContentStore) ListByCategory(_ context.Context, _ domain.ContentType) ([]*domain.ContentItem, error) {
	return f.items, nil
}

func (f *fakeContentStore) UpdateMerged(_ context.Context, item *domain.ContentItem) error {
	f.updated = append(f.updated, item)
	return nil
}

func (f *fakeContentStore) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestEngine(items ...*domain.ContentItem) (*Engine, *fakeContentStore) {
	store := &fakeContentStore{items: items}
	m := metrics.New(prometheus.NewRegistry())
	return NewEngine(store, m, logger.NewNop()), store
}

func TestRunMergesCrossSourceDuplicates(t *testing.T) {
	richer := &domain.ContentItem{
		ID:       "a1",
		Title:    "Crash Landing on You",
		Type:     domain.TypeDrama,
		Source:   "voirdrama",
		Year:     2019,
		Synopsis: "A paragliding mishap lands a South Korean heiress in the North.",
		Genres:   []string{"romance", "comedy"},
		Actors:   []string{"Hyun Bin", "Son Ye-jin"},
	}
	poorer := &domain.ContentItem{
		ID:        "b1",
		Title:     "Crash Landing On You",
		Type:      domain.TypeDrama,
		Source:    "dramacore",
		Year:      2020,
		PosterURL: "https://dramacore.example/clo.jpg",
		Genres:    []string{"romance", "melodrama"},
	}

	engine, store := newTestEngine(richer, poorer)
	report, err := engine.Run(context.Background(), domain.TypeDrama)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Merged)
	require.Len(t, report.Pairs, 1)
	assert.Equal(t, "a1", report.Pairs[0].ID1)
	assert.Equal(t, "b1", report.Pairs[0].ID2)

	require.Len(t, store.updated, 1)
	winner := store.updated[0]
	assert.Equal(t, "a1", winner.ID)
	assert.Equal(t, "voirdrama+dramacore", winner.Source)
	// The loser's populated poster fills the winner's empty field.
	assert.Equal(t, "https://dramacore.example/clo.jpg", winner.PosterURL)
	// List fields take the deduplicated union.
	assert.ElementsMatch(t, []string{"romance", "comedy", "melodrama"}, winner.Genres)

	assert.Equal(t, []string{"b1"}, store.deleted)
}

func TestRunNeverOverwritesPopulatedFields(t *testing.T) {
	a := &domain.ContentItem{
		ID:       "a1",
		Title:    "Vincenzo",
		Source:   "s1",
		Year:     2021,
		Synopsis: "Original synopsis.",
		Director: "Kim Hee-won",
		Genres:   []string{"crime"},
		Actors:   []string{"Song Joong-ki"},
		Rating:   8.4,
	}
	b := &domain.ContentItem{
		ID:       "b1",
		Title:    "Vincenzo",
		Source:   "s2",
		Year:     2021,
		Synopsis: "A different synopsis from another source.",
		Director: "Someone Else",
	}

	engine, store := newTestEngine(a, b)
	_, err := engine.Run(context.Background(), domain.TypeDrama)
	require.NoError(t, err)

	require.Len(t, store.updated, 1)
	winner := store.updated[0]
	assert.Equal(t, "Original synopsis.", winner.Synopsis)
	assert.Equal(t, "Kim Hee-won", winner.Director)
}

func TestRunSkipsSameSourcePairs(t *testing.T) {
	a := &domain.ContentItem{ID: "a1", Title: "Goblin", Source: "voirdrama", Year: 2016}
	b := &domain.ContentItem{ID: "a2", Title: "Goblin", Source: "voirdrama", Year: 2016}

	engine, store := newTestEngine(a, b)
	report, err := engine.Run(context.Background(), domain.TypeDrama)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Compared)
	assert.Equal(t, 0, report.Merged)
	assert.Empty(t, store.deleted)
}

func TestRunSkipsYearIncompatiblePairs(t *testing.T) {
	a := &domain.ContentItem{ID: "a1", Title: "Itaewon Class", Source: "s1", Year: 2015}
	b := &domain.ContentItem{ID: "b1", Title: "Itaewon Class", Source: "s2", Year: 2020}

	engine, store := newTestEngine(a, b)
	report, err := engine.Run(context.Background(), domain.TypeDrama)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Compared)
	assert.Empty(t, report.Pairs)
	assert.Empty(t, store.deleted)
}

func TestRunMatchesOnOriginalTitle(t *testing.T) {
	a := &domain.ContentItem{
		ID: "a1", Title: "Crash Landing on You",
		OriginalTitle: "사랑의 불시착", Source: "s1", Year: 2019,
	}
	b := &domain.ContentItem{
		ID: "b1", Title: "Atterrissage d'urgence",
		OriginalTitle: "사랑의 불시착", Source: "s2", Year: 2019,
	}

	engine, _ := newTestEngine(a, b)
	report, err := engine.Run(context.Background(), domain.TypeDrama)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Merged)
}

func TestRunMergedItemIsNotReusedAcrossPairs(t *testing.T) {
	a := &domain.ContentItem{ID: "a1", Title: "Signal", Source: "s1", Year: 2016, Synopsis: "x"}
	b := &domain.ContentItem{ID: "b1", Title: "Signal", Source: "s2", Year: 2016}
	c := &domain.ContentItem{ID: "c1", Title: "Signal", Source: "s3", Year: 2016}

	engine, store := newTestEngine(a, b, c)
	report, err := engine.Run(context.Background(), domain.TypeDrama)
	require.NoError(t, err)

	// b merges into a, then c merges into the retained a; b is never
	// compared again after deletion.
	assert.Equal(t, 2, report.Merged)
	assert.ElementsMatch(t, []string{"b1", "c1"}, store.deleted)
}
