package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPersistenceInconsistency means the persisted index and metadata disagree on record count.
	ErrPersistenceInconsistency = errors.New("persistence inconsistency")
	// ErrDimensionMismatch means a vector does not match the store's fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Record is one long-term entry. ID is its position in ingestion order and the
// only key shared by the vector index and the metadata table.
type Record struct {
	ID       int64                  `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Hit is a query result.
type Hit struct {
	Record
	Distance float64 `json:"distance"`
}

// Store is an append-only similarity-searchable record store.
// Ingest calls are serialized; Query may run concurrently with other queries.
type Store interface {
	Ingest(ctx context.Context, texts []string, metadatas []map[string]interface{}) ([]int64, error)
	Query(ctx context.Context, text string, k int) ([]Hit, error)
	Count() int
	Dimension() int
	Close() error
}

// Persister is implemented by stores that can reload and flush durable state.
type Persister interface {
	Load(ctx context.Context) error
	Save(ctx context.Context) error
}

func validateBatch(texts []string, metadatas []map[string]interface{}) error {
	if len(metadatas) != 0 && len(metadatas) != len(texts) {
		return fmt.Errorf("got %d metadata entries for %d texts", len(metadatas), len(texts))
	}
	return nil
}

func metadataAt(metadatas []map[string]interface{}, i int) map[string]interface{} {
	if i < len(metadatas) && metadatas[i] != nil {
		return metadatas[i]
	}
	return map[string]interface{}{}
}

// checkDimension verifies every vector has the same length and that it matches
// fixed when fixed is non-zero. It returns the batch dimension.
func checkDimension(vectors [][]float32, fixed int) (int, error) {
	dim := fixed
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, fmt.Errorf("%w: vector %d is empty", ErrDimensionMismatch, i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return 0, fmt.Errorf("%w: vector %d has %d dimensions, store has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return dim, nil
}
