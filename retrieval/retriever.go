// Package retrieval serves top-k similarity search for classified property
// queries.
package retrieval

import (
	"context"
	"fmt"

	"github.com/plotline-ai/plotline/embedding"
	"github.com/plotline-ai/plotline/index"
	"github.com/plotline-ai/plotline/log"
)

// Result is an ordered retrieval outcome: entries sorted by similarity
// descending, ties broken by index insertion order, length at most k. An
// empty Result means no listing cleared the similarity floor, which is a
// designed outcome rather than an error.
type Result struct {
	Matches []index.SearchResult
}

// Empty reports whether no chunk was relevant enough.
func (r Result) Empty() bool {
	return len(r.Matches) == 0
}

// Retriever embeds queries and searches the vector index.
type Retriever struct {
	store    index.Store
	embedder embedding.Embedder
	k        int
	floor    float64
	logger   log.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithK sets the number of results to retrieve.
func WithK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithFloor sets the minimum similarity a chunk must reach to be returned.
func WithFloor(floor float64) Option {
	return func(r *Retriever) {
		r.floor = floor
	}
}

// WithLogger sets the retriever's logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Retriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Retriever. Defaults: k=5, floor=0.2.
func New(store index.Store, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		k:        5,
		floor:    0.2,
		logger:   log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds query and returns the top-k most similar indexed chunks
// above the similarity floor. An empty result is returned, not an error,
// when the index is empty or nothing is relevant enough.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Result, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Search(ctx, vec, r.k, r.floor)
	if err != nil {
		return Result{}, fmt.Errorf("similarity search: %w", err)
	}

	r.logger.Debug("retrieved %d/%d chunks above floor %.2f", len(matches), r.k, r.floor)
	return Result{Matches: matches}, nil
}
