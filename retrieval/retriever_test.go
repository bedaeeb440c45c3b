package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotline-ai/plotline/embedding"
	"github.com/plotline-ai/plotline/index"
	"github.com/plotline-ai/plotline/log"
)

func seededStore(t *testing.T, e embedding.Embedder, texts ...string) *index.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := index.NewMemoryStore()

	entries := make([]index.Entry, len(texts))
	for i, text := range texts {
		vec, err := e.EmbedQuery(ctx, text)
		require.NoError(t, err)
		entries[i] = index.Entry{
			Hash:            text,
			Text:            text,
			SourceRecordIDs: []int{i},
			Embedding:       vec,
		}
	}
	require.NoError(t, store.UpsertBatch(ctx, entries))
	return store
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockEmbedder(128)

	store := seededStore(t, emb,
		"Location: DHA Phase 6, Karachi | Bedrooms: 3 | Property Type: House",
		"Location: Gulberg, Lahore | Bedrooms: 2 | Property Type: Apartment",
		"Location: F-7, Islamabad | Bedrooms: 5 | Property Type: House",
	)

	t.Run("Most similar chunk first", func(t *testing.T) {
		r := New(store, emb, WithK(3), WithFloor(0), WithLogger(&log.NoOpLogger{}))
		result, err := r.Retrieve(ctx, "3 bedroom house in DHA Karachi")
		require.NoError(t, err)
		require.False(t, result.Empty())
		assert.Contains(t, result.Matches[0].Entry.Text, "DHA Phase 6, Karachi")

		for i := 1; i < len(result.Matches); i++ {
			assert.GreaterOrEqual(t, result.Matches[i-1].Score, result.Matches[i].Score)
		}
	})

	t.Run("Result length bounded by k", func(t *testing.T) {
		r := New(store, emb, WithK(2), WithFloor(0), WithLogger(&log.NoOpLogger{}))
		result, err := r.Retrieve(ctx, "house")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(result.Matches), 2)
	})

	t.Run("Floor filters irrelevant chunks", func(t *testing.T) {
		r := New(store, emb, WithK(5), WithFloor(0.99), WithLogger(&log.NoOpLogger{}))
		result, err := r.Retrieve(ctx, "completely unrelated gibberish zzz")
		require.NoError(t, err)
		assert.True(t, result.Empty())
	})

	t.Run("Empty index is not an error", func(t *testing.T) {
		r := New(index.NewMemoryStore(), emb, WithLogger(&log.NoOpLogger{}))
		result, err := r.Retrieve(ctx, "3 bedroom house")
		require.NoError(t, err)
		assert.True(t, result.Empty())
	})

	t.Run("Embedding failure propagates", func(t *testing.T) {
		r := New(store, failingEmbedder{}, WithLogger(&log.NoOpLogger{}))
		_, err := r.Retrieve(ctx, "anything")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embed query")
	})
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("service down")
}

func (failingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("service down")
}
