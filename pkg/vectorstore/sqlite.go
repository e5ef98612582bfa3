package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/harun/reactor/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// SQLiteStore keeps records and their sqlite-vec index in one database file.
// Both tables are written in the same transaction, so they cannot diverge
// through a partial ingest. Distances are L2.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	embedder EmbeddingProvider
	logger   zerolog.Logger

	mu     sync.RWMutex
	count  int
	dim    int
	closed bool
}

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	Path              string
	EmbeddingProvider EmbeddingProvider
	Logger            zerolog.Logger
}

// OpenSQLiteStore opens or creates the database at cfg.Path and loads its state.
func OpenSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.EmbeddingProvider == nil {
		return nil, errors.New("embedding provider is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		path:     cfg.Path,
		embedder: cfg.EmbeddingProvider,
		logger:   cfg.Logger,
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Load re-reads the dimension and record count and verifies that the record
// table and the vector index hold the same number of rows.
func (s *SQLiteStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	dim := 0
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_meta WHERE key = 'dimension'").Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read store dimension: %w", err)
	default:
		if dim, err = strconv.Atoi(raw); err != nil || dim <= 0 {
			return fmt.Errorf("%w: invalid stored dimension %q", ErrPersistenceInconsistency, raw)
		}
	}

	var records, nextID int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(MAX(id) + 1, 0) FROM records").Scan(&records, &nextID); err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if records != nextID {
		return fmt.Errorf("%w: record ids are not contiguous (%d records, next id %d)", ErrPersistenceInconsistency, records, nextID)
	}

	vectors := 0
	if dim > 0 {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&vectors); err != nil {
			return fmt.Errorf("failed to count embeddings: %w", err)
		}
	}
	if vectors != records {
		return fmt.Errorf("%w: %d records but %d indexed vectors", ErrPersistenceInconsistency, records, vectors)
	}

	s.dim = dim
	s.count = records
	observability.SetMemoryEntries(records)

	s.logger.Debug().
		Str("path", s.path).
		Int("records", records).
		Int("dimension", dim).
		Msg("Vector store loaded")

	return nil
}

// Save checkpoints the write-ahead log into the main database file.
func (s *SQLiteStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if s.path == ":memory:" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}

// Ingest embeds texts and appends them with contiguous ids starting at Count.
func (s *SQLiteStore) Ingest(ctx context.Context, texts []string, metadatas []map[string]interface{}) ([]int64, error) {
	if err := validateBatch(texts, metadatas); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return []int64{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	start := time.Now()

	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	dim, err := checkDimension(vectors, s.dim)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.dim == 0 {
		createVec := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS embeddings USING vec0(embedding float[%d])", dim)
		if _, err := tx.ExecContext(ctx, createVec); err != nil {
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO store_meta (key, value) VALUES ('dimension', ?)", strconv.Itoa(dim)); err != nil {
			return nil, fmt.Errorf("failed to record dimension: %w", err)
		}
	}

	ids := make([]int64, len(texts))
	now := time.Now().Unix()
	for i, text := range texts {
		id := int64(s.count + i)

		metaJSON, err := json.Marshal(metadataAt(metadatas, i))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata for record %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO records (id, text, metadata, created_at) VALUES (?, ?, ?, ?)",
			id, text, string(metaJSON), now,
		); err != nil {
			return nil, fmt.Errorf("failed to insert record %d: %w", id, err)
		}

		vecJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedding for record %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO embeddings (rowid, embedding) VALUES (?, ?)",
			id, string(vecJSON),
		); err != nil {
			return nil, fmt.Errorf("failed to insert embedding %d: %w", id, err)
		}

		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ingest: %w", err)
	}

	s.dim = dim
	s.count += len(texts)

	observability.RecordMemoryWrite(time.Since(start))
	observability.SetMemoryEntries(s.count)

	s.logger.Debug().
		Int("records", len(texts)).
		Int("total", s.count).
		Msg("Records ingested")

	return ids, nil
}

// Query returns up to k records nearest to text, nearest first.
func (s *SQLiteStore) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if s.count == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if k > s.count {
		k = s.count
	}

	start := time.Now()
	defer func() {
		observability.RecordMemorySearch(time.Since(start))
	}()

	queryVec, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(queryVec) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", ErrDimensionMismatch, len(queryVec), s.dim)
	}
	vecJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH knn AS (
			SELECT rowid, distance FROM embeddings
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT knn.rowid, knn.distance, r.text, r.metadata
		FROM knn LEFT JOIN records r ON r.id = knn.rowid
		ORDER BY knn.distance ASC`,
		string(vecJSON), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var (
			id       int64
			distance float64
			text     sql.NullString
			metaJSON sql.NullString
		)
		if err := rows.Scan(&id, &distance, &text, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		if !text.Valid {
			s.logger.Warn().Int64("id", id).Msg("Vector index returned an id with no record, skipping")
			continue
		}

		meta := map[string]interface{}{}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for record %d: %w", id, err)
			}
		}

		hits = append(hits, Hit{
			Record:   Record{ID: id, Text: text.String, Metadata: meta},
			Distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hits, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Dimension returns the fixed vector dimension, or 0 before the first ingest.
func (s *SQLiteStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
