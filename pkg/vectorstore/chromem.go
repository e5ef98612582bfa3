package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/harun/reactor/internal/observability"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
)

const chromemCollection = "long_term"

// ChromemStore keeps an in-memory chromem-go index persisted as two files:
// the exported index (<base>.index.gob.gz) and the metadata list
// (<base>.meta.json). Each ingest rewrites the index and then the metadata,
// each through a temp file and rename. A crash between the two renames leaves
// the counts different, which Load reports as ErrPersistenceInconsistency.
// Distances are cosine (1 - similarity).
type ChromemStore struct {
	indexPath string
	metaPath  string
	embedder  EmbeddingProvider
	logger    zerolog.Logger

	mu      sync.RWMutex
	db      *chromem.DB
	col     *chromem.Collection
	records []Record
	dim     int
	closed  bool
}

type chromemMeta struct {
	Dimension int      `json:"dimension"`
	Records   []Record `json:"records"`
}

// ChromemConfig configures a ChromemStore. An empty BasePath keeps the store
// in memory only.
type ChromemConfig struct {
	BasePath          string
	EmbeddingProvider EmbeddingProvider
	Logger            zerolog.Logger
}

// OpenChromemStore creates the store and loads any persisted artifacts.
func OpenChromemStore(ctx context.Context, cfg ChromemConfig) (*ChromemStore, error) {
	if cfg.EmbeddingProvider == nil {
		return nil, errors.New("embedding provider is required")
	}

	s := &ChromemStore{
		embedder: cfg.EmbeddingProvider,
		logger:   cfg.Logger,
	}
	if cfg.BasePath != "" {
		s.indexPath = cfg.BasePath + ".index.gob.gz"
		s.metaPath = cfg.BasePath + ".meta.json"
		if err := os.MkdirAll(filepath.Dir(cfg.BasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.GenerateEmbedding(ctx, text)
	}
}

func (s *ChromemStore) resetLocked() error {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(chromemCollection, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	s.db = db
	s.col = col
	s.records = nil
	s.dim = 0
	return nil
}

// Load rebuilds the store from its artifacts. Missing artifacts on both sides
// yield an empty store; anything else that does not line up is an error.
func (s *ChromemStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := s.resetLocked(); err != nil {
		return err
	}
	if s.indexPath == "" {
		return nil
	}

	indexExists := fileExists(s.indexPath)
	metaExists := fileExists(s.metaPath)
	switch {
	case !indexExists && !metaExists:
		return nil
	case indexExists != metaExists:
		return fmt.Errorf("%w: index present=%v, metadata present=%v", ErrPersistenceInconsistency, indexExists, metaExists)
	}

	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta chromemMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(s.indexPath, ""); err != nil {
		return fmt.Errorf("failed to import index: %w", err)
	}
	col := db.GetCollection(chromemCollection, s.embeddingFunc())
	indexed := 0
	if col != nil {
		indexed = col.Count()
	} else if col, err = db.GetOrCreateCollection(chromemCollection, nil, s.embeddingFunc()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if indexed != len(meta.Records) {
		return fmt.Errorf("%w: %d metadata records but %d indexed vectors", ErrPersistenceInconsistency, len(meta.Records), indexed)
	}
	for i, rec := range meta.Records {
		if rec.ID != int64(i) {
			return fmt.Errorf("%w: metadata record %d has id %d", ErrPersistenceInconsistency, i, rec.ID)
		}
	}

	s.db = db
	s.col = col
	s.records = meta.Records
	s.dim = meta.Dimension
	observability.SetMemoryEntries(len(s.records))

	s.logger.Debug().
		Str("index", s.indexPath).
		Int("records", len(s.records)).
		Int("dimension", s.dim).
		Msg("Vector store loaded")

	return nil
}

// Save writes both artifacts.
func (s *ChromemStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.persistLocked()
}

func (s *ChromemStore) persistLocked() error {
	if s.indexPath == "" {
		return nil
	}

	tmpIndex := s.indexPath + ".tmp"
	if err := s.db.ExportToFile(tmpIndex, true, ""); err != nil {
		return fmt.Errorf("failed to export index: %w", err)
	}
	if err := os.Rename(tmpIndex, s.indexPath); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}

	data, err := json.Marshal(chromemMeta{Dimension: s.dim, Records: s.records})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := writeFileAtomic(s.metaPath, data); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Ingest embeds texts, appends them with contiguous ids and persists both
// artifacts. When persisting fails the batch is removed again and no ids are
// returned, so the store keeps its previous contents.
func (s *ChromemStore) Ingest(ctx context.Context, texts []string, metadatas []map[string]interface{}) ([]int64, error) {
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

	base := len(s.records)
	ids := make([]int64, len(texts))
	docs := make([]chromem.Document, len(texts))
	newRecords := make([]Record, len(texts))
	for i, text := range texts {
		id := int64(base + i)
		ids[i] = id
		docs[i] = chromem.Document{
			ID:        strconv.FormatInt(id, 10),
			Content:   text,
			Embedding: vectors[i],
		}
		newRecords[i] = Record{ID: id, Text: text, Metadata: metadataAt(metadatas, i)}
	}

	if err := s.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	prevDim := s.dim
	s.records = append(s.records, newRecords...)
	s.dim = dim

	if err := s.persistLocked(); err != nil {
		docIDs := make([]string, len(docs))
		for i, d := range docs {
			docIDs[i] = d.ID
		}
		if derr := s.col.Delete(ctx, nil, nil, docIDs...); derr != nil {
			s.logger.Error().Err(derr).Int("records", len(docIDs)).Msg("Failed to roll back vector index after persist failure")
		}
		s.records = s.records[:base]
		s.dim = prevDim
		return nil, err
	}

	observability.RecordMemoryWrite(time.Since(start))
	observability.SetMemoryEntries(len(s.records))

	return ids, nil
}

// Query returns up to k records nearest to text, nearest first.
func (s *ChromemStore) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	count := s.col.Count()
	if count == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if k > count {
		k = count
	}

	start := time.Now()
	defer func() {
		observability.RecordMemorySearch(time.Since(start))
	}()

	queryVec, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if s.dim != 0 && len(queryVec) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", ErrDimensionMismatch, len(queryVec), s.dim)
	}

	results, err := s.col.QueryEmbedding(ctx, queryVec, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil || id < 0 || id >= int64(len(s.records)) {
			s.logger.Warn().Str("id", r.ID).Msg("Vector index returned an id with no record, skipping")
			continue
		}
		hits = append(hits, Hit{
			Record:   s.records[id],
			Distance: float64(1 - r.Similarity),
		})
	}

	return hits, nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension returns the fixed vector dimension, or 0 before the first ingest.
func (s *ChromemStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Close marks the store closed. Persisted artifacts are left as they are.
func (s *ChromemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
