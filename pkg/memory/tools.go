package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harun/reactor/pkg/toolexecutor"
	"github.com/harun/reactor/pkg/vectorstore"
)

// ToolRegistrar is the part of the tool registry memory tools need.
type ToolRegistrar interface {
	RegisterTool(def toolexecutor.ToolDefinition) error
}

// IngestParams defines parameters for the memory_ingest tool
type IngestParams struct {
	Texts    []string                 `json:"texts"`
	Metadata []map[string]interface{} `json:"metadata,omitempty"`
}

// IngestResult is returned by memory_ingest.
type IngestResult struct {
	IDs   []int64 `json:"ids"`
	Total int     `json:"total"`
}

// QueryParams defines parameters for the memory_query tool
type QueryParams struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Ingest stores texts in the long-term store.
func Ingest(ctx context.Context, store vectorstore.Store, params IngestParams) (*IngestResult, error) {
	if len(params.Texts) == 0 {
		return nil, fmt.Errorf("texts must not be empty")
	}
	ids, err := store.Ingest(ctx, params.Texts, params.Metadata)
	if err != nil {
		return nil, err
	}
	return &IngestResult{IDs: ids, Total: store.Count()}, nil
}

// Query returns the k records nearest to the query text.
func Query(ctx context.Context, store vectorstore.Store, params QueryParams) ([]vectorstore.Hit, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if params.K <= 0 {
		params.K = DefaultTopK
	}
	return store.Query(ctx, params.Query, params.K)
}

// RegisterMemoryTools registers memory_ingest and memory_query against store.
func RegisterMemoryTools(registry ToolRegistrar, store vectorstore.Store) error {
	tools := []toolexecutor.ToolDefinition{
		{
			Name:        "memory_ingest",
			Description: "Store texts in long-term memory so they can be recalled later",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "texts", Type: "array", Items: "string", Description: "Texts to remember", Required: true},
				{Name: "metadata", Type: "array", Items: "object", Description: "Optional metadata object per text"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				var p IngestParams
				if err := decodeParams(params, &p); err != nil {
					return nil, err
				}
				return Ingest(ctx, store, p)
			},
		},
		{
			Name:        "memory_query",
			Description: "Retrieve the texts in long-term memory most similar to a query",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "query", Type: "string", Description: "What to look up", Required: true},
				{Name: "k", Type: "integer", Description: "How many results to return", Default: DefaultTopK},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				var p QueryParams
				if err := decodeParams(params, &p); err != nil {
					return nil, err
				}
				return Query(ctx, store, p)
			},
		},
	}

	for _, tool := range tools {
		if err := registry.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register %s: %w", tool.Name, err)
		}
	}

	return nil
}

func decodeParams(params map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}
