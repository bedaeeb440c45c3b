// Package embedding defines the embedding-service boundary and its adapters.
//
// The service is assumed deterministic for identical text; the persisted
// index's content-hash cache depends on that. Errors are classified as
// transient (retryable) or fatal at this boundary.
package embedding

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/plotline-ai/plotline/retry"
)

// Embedder produces fixed-length vectors for text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// LangChainEmbedder adapts a langchaingo embeddings.Embedder.
type LangChainEmbedder struct {
	embedder embeddings.Embedder
}

var _ Embedder = (*LangChainEmbedder)(nil)

// NewLangChainEmbedder creates an adapter for langchaingo embedders.
func NewLangChainEmbedder(embedder embeddings.Embedder) *LangChainEmbedder {
	return &LangChainEmbedder{embedder: embedder}
}

// EmbedQuery embeds a single text. Timeouts and rate-limit failures come
// back marked transient so the retry policy can tell them apart from fatal
// errors such as invalid input.
func (l *LangChainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, retry.MarkTransient(err)
	}
	return vec, nil
}

// EmbedDocuments embeds a batch of texts.
func (l *LangChainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, retry.MarkTransient(err)
	}
	return vecs, nil
}

// Retrying wraps an Embedder with a bounded retry policy. Transient failures
// are retried; fatal failures and exhausted budgets propagate.
type Retrying struct {
	inner  Embedder
	policy *retry.Policy
}

var _ Embedder = (*Retrying)(nil)

// NewRetrying wraps inner with policy. A nil policy uses retry.DefaultPolicy.
func NewRetrying(inner Embedder, policy *retry.Policy) *Retrying {
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	return &Retrying{inner: inner, policy: policy}
}

// EmbedQuery embeds text, retrying transient failures.
func (r *Retrying) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		vec, err = r.inner.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedDocuments embeds texts, retrying transient failures.
func (r *Retrying) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		vecs, err = r.inner.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}
