package memory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/harun/reactor/pkg/vectorstore"
	"github.com/rs/zerolog"
)

const maxChunkChars = 1000

// KnowledgeWatcher ingests markdown and text files into the long-term store
// whenever they are created or written in a watched directory.
type KnowledgeWatcher struct {
	watcher  *fsnotify.Watcher
	store    vectorstore.Store
	logger   zerolog.Logger
	debounce time.Duration
	onIngest func(path string, ids []int64, err error)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopCh  chan struct{}
	stopped bool
}

// WatcherConfig configures a KnowledgeWatcher.
type WatcherConfig struct {
	Store    vectorstore.Store
	Logger   zerolog.Logger
	Debounce time.Duration
	// OnIngest, when set, is called after each file is processed.
	OnIngest func(path string, ids []int64, err error)
}

// NewKnowledgeWatcher creates a watcher; call Watch to add directories.
func NewKnowledgeWatcher(cfg WatcherConfig) (*KnowledgeWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	kw := &KnowledgeWatcher{
		watcher:  watcher,
		store:    cfg.Store,
		logger:   cfg.Logger,
		debounce: debounce,
		onIngest: cfg.OnIngest,
		pending:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}

	go kw.run()

	return kw, nil
}

// Watch starts watching a directory
func (kw *KnowledgeWatcher) Watch(path string) error {
	return kw.watcher.Add(path)
}

// Stop stops the watcher. Pending changes that have not fired are dropped.
func (kw *KnowledgeWatcher) Stop() error {
	kw.mu.Lock()
	if kw.stopped {
		kw.mu.Unlock()
		return nil
	}
	kw.stopped = true
	if kw.timer != nil {
		kw.timer.Stop()
	}
	kw.mu.Unlock()

	close(kw.stopCh)
	return kw.watcher.Close()
}

func (kw *KnowledgeWatcher) run() {
	for {
		select {
		case event, ok := <-kw.watcher.Events:
			if !ok {
				return
			}
			if !isKnowledgeFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				kw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Knowledge file change detected")
				kw.schedule(event.Name)
			}

		case err, ok := <-kw.watcher.Errors:
			if !ok {
				return
			}
			kw.logger.Error().Err(err).Msg("Knowledge watcher error")

		case <-kw.stopCh:
			return
		}
	}
}

func (kw *KnowledgeWatcher) schedule(path string) {
	kw.mu.Lock()
	defer kw.mu.Unlock()

	if kw.stopped {
		return
	}
	kw.pending[path] = struct{}{}
	if kw.timer != nil {
		kw.timer.Stop()
	}
	kw.timer = time.AfterFunc(kw.debounce, kw.flush)
}

func (kw *KnowledgeWatcher) flush() {
	kw.mu.Lock()
	paths := make([]string, 0, len(kw.pending))
	for p := range kw.pending {
		paths = append(paths, p)
	}
	kw.pending = make(map[string]struct{})
	stopped := kw.stopped
	kw.mu.Unlock()

	if stopped {
		return
	}
	sort.Strings(paths)

	for _, path := range paths {
		ids, err := IngestFile(context.Background(), kw.store, path)
		if err != nil {
			kw.logger.Warn().Err(err).Str("file", path).Msg("Failed to ingest knowledge file")
		} else {
			kw.logger.Info().Str("file", path).Int("chunks", len(ids)).Msg("Knowledge file ingested")
		}
		if kw.onIngest != nil {
			kw.onIngest(path, ids, err)
		}
	}
}

// IngestFile splits a text file into paragraph chunks and ingests them with
// the file path as source metadata.
func IngestFile(ctx context.Context, store vectorstore.Store, path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	chunks := ChunkText(string(data), maxChunkChars)
	if len(chunks) == 0 {
		return []int64{}, nil
	}

	metas := make([]map[string]interface{}, len(chunks))
	for i := range chunks {
		metas[i] = map[string]interface{}{
			"role":   "knowledge",
			"source": path,
			"chunk":  i,
		}
	}
	return store.Ingest(ctx, chunks, metas)
}

// ChunkText groups blank-line separated paragraphs into chunks of at most
// maxChars characters. A single paragraph longer than maxChars is split.
func ChunkText(text string, maxChars int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > maxChars {
			flush()
			chunks = append(chunks, para[:maxChars])
			para = para[maxChars:]
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

func isKnowledgeFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".txt":
		return true
	}
	return false
}
