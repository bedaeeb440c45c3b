package index

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/plotline-ai/plotline/chunker"
	"github.com/plotline-ai/plotline/embedding"
	"github.com/plotline-ai/plotline/log"
)

// DefaultWorkers bounds concurrent embedding calls during a build, to stay
// under external-service rate limits.
const DefaultWorkers = 4

// Indexer computes and persists embeddings for chunks. Embeddings already in
// the store (matched by content hash) are reused without touching the
// embedding service, so the first build is slow and later builds are cheap.
type Indexer struct {
	store    Store
	embedder embedding.Embedder
	workers  int
	logger   log.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithWorkers sets the embedding concurrency bound.
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithLogger sets the indexer's logger.
func WithLogger(logger log.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// NewIndexer creates an Indexer over store using embedder.
func NewIndexer(store Store, embedder embedding.Embedder, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		store:    store,
		embedder: embedder,
		workers:  DefaultWorkers,
		logger:   log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build indexes chunks. Chunks whose content hash is already stored are
// reused as-is; the rest are embedded concurrently and committed in one
// atomic batch. If any embedding fails after retries, nothing is committed
// and the previously stored index remains intact.
func (ix *Indexer) Build(ctx context.Context, chunks []chunker.Chunk) error {
	existing, err := ix.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load existing index: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		known[e.Hash] = struct{}{}
	}

	// Deduplicate by content hash, keeping first occurrence order.
	seen := make(map[string]struct{}, len(chunks))
	var missing []chunker.Chunk
	for _, c := range chunks {
		h := c.Hash()
		if _, ok := known[h]; ok {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		missing = append(missing, c)
	}

	if len(missing) == 0 {
		ix.logger.Info("index up to date: %d chunks, nothing to embed", len(chunks))
		return nil
	}
	ix.logger.Info("indexing %d chunks (%d reused, %d to embed)",
		len(chunks), len(chunks)-len(missing), len(missing))

	vectors := make([][]float32, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, c := range missing {
		g.Go(func() error {
			vec, err := ix.embedder.EmbedQuery(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", c.Hash(), err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// No commit: the previously stored index stays loadable unchanged.
		return err
	}

	entries := make([]Entry, len(missing))
	for i, c := range missing {
		entries[i] = Entry{
			Hash:            c.Hash(),
			Text:            c.Text,
			SourceRecordIDs: c.SourceRecordIDs,
			Overflow:        c.Overflow,
			Embedding:       vectors[i],
		}
	}
	if err := ix.store.UpsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("commit index batch: %w", err)
	}

	ix.logger.Info("committed %d new entries", len(entries))
	return nil
}
