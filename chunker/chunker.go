// Package chunker splits property records into bounded, overlapping text
// chunks suitable for embedding.
//
// The unit of chunk_size and chunk_overlap is characters of the canonical
// record serialization. Chunk boundaries are record-aligned: a record is
// never split across chunks unless it alone exceeds the chunk size, in which
// case it is split by itself and flagged as overflow.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/plotline-ai/plotline/property"
)

// ErrInvalidConfig is returned when the chunking parameters are unusable.
// This is fatal at startup; there is no sensible default to fall back to.
var ErrInvalidConfig = errors.New("invalid chunker config")

// Chunk is a bounded text span derived from one or more records.
//
// Text always begins with OverlapPrefix, the trailing characters of the
// previous chunk. Concatenating Text[len(OverlapPrefix):] across a chunk
// sequence reconstructs the serialized record stream exactly once.
type Chunk struct {
	Text            string
	OverlapPrefix   string
	SourceRecordIDs []int
	// Overflow marks chunks produced by splitting a single record that
	// exceeded the chunk size on its own.
	Overflow bool
}

// Hash returns the SHA-256 hex digest of the chunk text. It is the
// content-addressed key for the persisted index.
func (c Chunk) Hash() string {
	sum := sha256.Sum256([]byte(c.Text))
	return hex.EncodeToString(sum[:])
}

// Body returns the chunk text without the overlap prefix.
func (c Chunk) Body() string {
	return c.Text[len(c.OverlapPrefix):]
}

// Chunker splits record sequences with a sliding window.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Chunker. Fails with ErrInvalidConfig unless
// 0 <= chunkOverlap < chunkSize.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidConfig, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk serializes each record canonically and packs the stream into chunks
// of at most chunkSize characters, each carrying the trailing chunkOverlap
// characters of its predecessor as a prefix. Deterministic for identical
// input and config.
func (c *Chunker) Chunk(records []property.Record) []Chunk {
	var chunks []Chunk

	prefix := ""
	cur := ""
	var ids []int

	flush := func(overflow bool) {
		if len(ids) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Text:            prefix + cur,
			OverlapPrefix:   prefix,
			SourceRecordIDs: append([]int(nil), ids...),
			Overflow:        overflow,
		})
		prefix = tail(prefix+cur, c.chunkOverlap)
		cur = ""
		ids = nil
	}

	for _, rec := range records {
		s := rec.Canonical()

		if len(s) > c.chunkSize {
			// Single-record overflow: close the current chunk and split
			// the record by itself.
			flush(false)
			c.splitOverflow(&chunks, &prefix, rec.ID, s)
			continue
		}

		if len(prefix)+len(cur)+len(s) > c.chunkSize {
			flush(false)
			// The carried prefix may leave too little room for the record;
			// shrink it so the chunk stays within bounds.
			if len(prefix)+len(s) > c.chunkSize {
				prefix = tail(prefix, c.chunkSize-len(s))
			}
		}

		cur += s
		ids = append(ids, rec.ID)
	}
	flush(false)

	return chunks
}

// splitOverflow slides a window over a single oversized record serialization.
func (c *Chunker) splitOverflow(chunks *[]Chunk, prefix *string, id int, s string) {
	pos := 0
	for pos < len(s) {
		p := *prefix
		room := c.chunkSize - len(p)
		end := min(pos+room, len(s))
		text := p + s[pos:end]
		*chunks = append(*chunks, Chunk{
			Text:            text,
			OverlapPrefix:   p,
			SourceRecordIDs: []int{id},
			Overflow:        true,
		})
		*prefix = tail(text, c.chunkOverlap)
		pos = end
	}
}

// tail returns the trailing n characters of s.
func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		if n <= 0 {
			return ""
		}
		return s
	}
	return s[len(s)-n:]
}
