package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harun/reactor/internal/observability"
	"github.com/harun/reactor/internal/tracing"
	"github.com/harun/reactor/pkg/vectorstore"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultTopK is the number of long-term hits rendered when the caller passes none.
const DefaultTopK = 3

// Manager composes short-term and long-term memory.
type Manager struct {
	buffer *ShortTermBuffer
	store  vectorstore.Store
	logger zerolog.Logger
}

// Config holds memory manager configuration
type Config struct {
	Store    vectorstore.Store
	Capacity int
	Logger   zerolog.Logger
}

// NewManager creates a new memory manager
func NewManager(cfg Config) (*Manager, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, errors.New("long-term store is required")
	}

	return &Manager{
		buffer: NewShortTermBuffer(cfg.Capacity),
		store:  cfg.Store,
		logger: cfg.Logger,
	}, nil
}

// Store returns the long-term store.
func (m *Manager) Store() vectorstore.Store {
	return m.store
}

// AddMessage records a message in the short-term buffer and ingests it into
// the long-term store tagged with its role. The buffer is updated even when
// ingestion fails; the ingest error is returned.
func (m *Manager) AddMessage(ctx context.Context, role, text string) error {
	m.buffer.Add(Message{Role: role, Text: text})

	if _, err := m.store.Ingest(ctx, []string{text}, []map[string]interface{}{{"role": role}}); err != nil {
		m.logger.Warn().Err(err).Str("role", role).Msg("Failed to ingest message into long-term memory")
		return fmt.Errorf("failed to ingest %s message: %w", role, err)
	}
	return nil
}

// Recent returns the short-term buffer, oldest first.
func (m *Manager) Recent() []Message {
	return m.buffer.Messages()
}

// ConstructPrompt renders the k long-term records nearest to query, the
// short-term buffer and the query itself into one prompt. A failing long-term
// lookup is logged and rendered as an empty context block.
func (m *Manager) ConstructPrompt(ctx context.Context, query string, k int) (string, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	ctx, span := tracing.StartSpan(ctx, "reactor.memory", "memory.construct_prompt",
		attribute.Int("top_k", k),
	)
	defer span.End()

	hits, err := m.store.Query(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Warn().Err(err).Msg("Failed to load long-term context")
		hits = nil
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))

	return renderPrompt(hits, m.buffer.Messages(), query), nil
}

func renderPrompt(hits []vectorstore.Hit, recent []Message, query string) string {
	var sb strings.Builder

	sb.WriteString("### Context\n")
	sb.WriteString("This is relevant information from past conversations:\n")
	for _, hit := range hits {
		sb.WriteString("- ")
		sb.WriteString(hit.Text)
		sb.WriteString("\n")
	}

	sb.WriteString("\n### Conversation History\n")
	sb.WriteString("This is the recent conversation history:\n")
	for _, msg := range recent {
		sb.WriteString(capitalize(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Text)
		sb.WriteString("\n")
	}

	sb.WriteString("\n### User Query\n")
	sb.WriteString(query)

	return sb.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Load reloads the long-term store when it supports persistence.
func (m *Manager) Load(ctx context.Context) error {
	p, ok := m.store.(vectorstore.Persister)
	if !ok {
		return nil
	}
	if err := p.Load(ctx); err != nil {
		return fmt.Errorf("failed to load long-term memory: %w", err)
	}
	m.logger.Debug().Int("records", m.store.Count()).Msg("Long-term memory loaded")
	return nil
}

// Save flushes the long-term store when it supports persistence.
func (m *Manager) Save(ctx context.Context) error {
	p, ok := m.store.(vectorstore.Persister)
	if !ok {
		return nil
	}
	if err := p.Save(ctx); err != nil {
		return fmt.Errorf("failed to save long-term memory: %w", err)
	}
	return nil
}

// Close closes the long-term store.
func (m *Manager) Close() error {
	return m.store.Close()
}
