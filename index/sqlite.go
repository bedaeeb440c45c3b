package index

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a durable Store backed by a SQLite database. Entries are
// keyed by content hash; the full entry set is cached in memory so searches
// never touch the database, and the cache is swapped only after a batch
// commits.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.RWMutex
	entries []Entry
	byHash  map[string]int
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the index database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		byHash: make(map[string]int),
	}

	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.reload(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// LoadSQLite opens an existing index database at path. Fails with
// ErrIndexUnavailable if the file does not exist or cannot be read, in which
// case the caller should re-index.
func LoadSQLite(path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, path)
	}
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS chunks (
			hash TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			record_ids TEXT NOT NULL,
			overflow INTEGER NOT NULL,
			position INTEGER NOT NULL,
			embedding BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_position ON chunks (position);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// reload replaces the in-memory cache from the database.
func (s *SQLiteStore) reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, text, record_ids, overflow, position, embedding FROM chunks ORDER BY position`)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	byHash := make(map[string]int)

	for rows.Next() {
		var (
			e        Entry
			idsJSON  string
			overflow int
			blob     []byte
		)
		if err := rows.Scan(&e.Hash, &e.Text, &idsJSON, &overflow, &e.Position, &blob); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &e.SourceRecordIDs); err != nil {
			return fmt.Errorf("corrupt record ids for %s: %w", e.Hash, err)
		}
		e.Overflow = overflow != 0
		e.Embedding, err = decodeVector(blob)
		if err != nil {
			return fmt.Errorf("corrupt embedding for %s: %w", e.Hash, err)
		}
		byHash[e.Hash] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	s.mu.Lock()
	s.entries = entries
	s.byHash = byHash
	s.mu.Unlock()
	return nil
}

// GetAll returns a copy of all entries in insertion order.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...), nil
}

// UpsertBatch writes entries in a single transaction and swaps the cache in
// only after the commit succeeds, so readers never observe a half-written
// index and a failed batch leaves the previous state intact.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.RLock()
	next := len(s.entries)
	positions := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := s.byHash[e.Hash]; ok {
			positions[e.Hash] = s.entries[i].Position
		} else if _, ok := positions[e.Hash]; !ok {
			positions[e.Hash] = next
			next++
		}
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (hash, text, record_ids, overflow, position, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			text = excluded.text,
			record_ids = excluded.record_ids,
			overflow = excluded.overflow,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		idsJSON, err := json.Marshal(e.SourceRecordIDs)
		if err != nil {
			return fmt.Errorf("failed to marshal record ids: %w", err)
		}
		overflow := 0
		if e.Overflow {
			overflow = 1
		}
		if _, err := stmt.ExecContext(ctx, e.Hash, e.Text, string(idsJSON), overflow,
			positions[e.Hash], encodeVector(e.Embedding)); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", e.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return s.reload(ctx)
}

// Search performs cosine similarity search over the cached entries.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int, floor float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return searchEntries(s.entries, query, k, floor), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector serializes a vector as little-endian float32 values.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	r := bytes.NewReader(blob)
	if err := binary.Read(r, binary.LittleEndian, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
