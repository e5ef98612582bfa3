package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/reactor/pkg/vectorstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	ingestErr error
	queryErr  error
	ingested  []string
}

func (f *failingStore) Ingest(ctx context.Context, texts []string, metadatas []map[string]interface{}) ([]int64, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	f.ingested = append(f.ingested, texts...)
	ids := make([]int64, len(texts))
	for i := range texts {
		ids[i] = int64(len(f.ingested) - len(texts) + i)
	}
	return ids, nil
}

func (f *failingStore) Query(ctx context.Context, text string, k int) ([]vectorstore.Hit, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []vectorstore.Hit{}, nil
}

func (f *failingStore) Count() int     { return len(f.ingested) }
func (f *failingStore) Dimension() int { return 0 }
func (f *failingStore) Close() error   { return nil }

func newTestStore(t *testing.T) vectorstore.Store {
	t.Helper()
	s, err := vectorstore.OpenChromemStore(context.Background(), vectorstore.ChromemConfig{
		BasePath:          filepath.Join(t.TempDir(), "mem"),
		EmbeddingProvider: vectorstore.NewHashEmbeddingProvider(64),
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewManager_RequiresStore(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)
}

func TestManager_ConstructPromptFormat(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(Config{Store: newTestStore(t), Capacity: 5, Logger: zerolog.Nop()})
	require.NoError(t, err)

	require.NoError(t, m.AddMessage(ctx, "user", "my cat is called Miso"))
	require.NoError(t, m.AddMessage(ctx, "assistant", "Noted, Miso the cat."))

	prompt, err := m.ConstructPrompt(ctx, "what is my cat called", 1)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "### Context\nThis is relevant information from past conversations:\n- "))
	assert.Contains(t, prompt, "\n### Conversation History\nThis is the recent conversation history:\n"+
		"User: my cat is called Miso\nAssistant: Noted, Miso the cat.\n")
	assert.True(t, strings.HasSuffix(prompt, "\n### User Query\nwhat is my cat called"))
	assert.Equal(t, 1, strings.Count(prompt, "\n- "))
}

func TestManager_ConstructPromptEmptyStore(t *testing.T) {
	m, err := NewManager(Config{Store: newTestStore(t), Logger: zerolog.Nop()})
	require.NoError(t, err)

	prompt, err := m.ConstructPrompt(context.Background(), "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "### Context\nThis is relevant information from past conversations:\n"+
		"\n### Conversation History\nThis is the recent conversation history:\n"+
		"\n### User Query\nhello", prompt)
}

func TestManager_IngestFailureStillBuffers(t *testing.T) {
	store := &failingStore{ingestErr: errors.New("disk full")}
	m, err := NewManager(Config{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = m.AddMessage(context.Background(), "user", "remember this")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []Message{{Role: "user", Text: "remember this"}}, m.Recent())
}

func TestManager_QueryFailureRendersEmptyContext(t *testing.T) {
	store := &failingStore{queryErr: errors.New("index broken")}
	m, err := NewManager(Config{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, m.AddMessage(context.Background(), "user", "hi"))

	prompt, err := m.ConstructPrompt(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Contains(t, prompt, "past conversations:\n\n### Conversation History")
	assert.Contains(t, prompt, "User: hi\n")
}

func TestManager_LoadSaveWithoutPersister(t *testing.T) {
	m, err := NewManager(Config{Store: &failingStore{}, Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.NoError(t, m.Load(context.Background()))
	assert.NoError(t, m.Save(context.Background()))
	assert.NoError(t, m.Close())
}

func TestManager_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	base := filepath.Join(t.TempDir(), "mem")
	open := func() vectorstore.Store {
		s, err := vectorstore.OpenSQLiteStore(ctx, vectorstore.SQLiteConfig{
			Path:              base + ".db",
			EmbeddingProvider: vectorstore.NewHashEmbeddingProvider(32),
			Logger:            zerolog.Nop(),
		})
		require.NoError(t, err)
		return s
	}

	m, err := NewManager(Config{Store: open(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, m.AddMessage(ctx, "user", "the build server is ci-01"))
	require.NoError(t, m.Save(ctx))
	require.NoError(t, m.Close())

	m2, err := NewManager(Config{Store: open(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer m2.Close()
	require.NoError(t, m2.Load(ctx))
	assert.Equal(t, 1, m2.Store().Count())
	assert.Empty(t, m2.Recent())

	prompt, err := m2.ConstructPrompt(ctx, "which build server", 1)
	require.NoError(t, err)
	assert.Contains(t, prompt, "- the build server is ci-01\n")
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "User", capitalize("user"))
	assert.Equal(t, "Tool", capitalize("TOOL"))
	assert.Equal(t, "", capitalize(""))
}
