// Package index persists chunk embeddings keyed by content hash and serves
// similarity search over them.
//
// The store is content-addressed: the same chunk text always maps to the same
// key, which is what makes re-indexing idempotent and lets unchanged chunks
// skip the embedding service entirely. Similarity is cosine, computed the
// same way at index and query time.
package index

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrIndexUnavailable is returned when a persisted index cannot be loaded.
// Callers should instruct the operator to re-index the dataset.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Entry is one indexed chunk: its content hash, text, provenance, and
// embedding. Position records insertion order and breaks similarity ties.
type Entry struct {
	Hash            string
	Text            string
	SourceRecordIDs []int
	Overflow        bool
	Position        int
	Embedding       []float32
}

// SearchResult pairs an entry with its similarity to a query vector.
type SearchResult struct {
	Entry Entry
	Score float64
}

// Store is the durable key→(vector, metadata) surface the retrieval layer
// works against. Concurrent readers are safe; UpsertBatch commits atomically.
type Store interface {
	// GetAll returns every entry in insertion order.
	GetAll(ctx context.Context) ([]Entry, error)
	// UpsertBatch inserts or replaces entries as a single atomic commit.
	// Entries whose hash already exists keep their original position.
	UpsertBatch(ctx context.Context, entries []Entry) error
	// Search returns up to k entries with similarity >= floor, ordered by
	// similarity descending, ties broken by insertion order. An empty result
	// is a valid outcome, not an error.
	Search(ctx context.Context, query []float32, k int, floor float64) ([]SearchResult, error)
	Close() error
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// searchEntries implements the shared Search semantics over a snapshot of
// entries.
func searchEntries(entries []Entry, query []float32, k int, floor float64) []SearchResult {
	if k <= 0 || len(entries) == 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, 0, len(entries))
	for _, e := range entries {
		score := CosineSimilarity(query, e.Embedding)
		if score < floor {
			continue
		}
		results = append(results, SearchResult{Entry: e, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.Position < results[j].Entry.Position
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
