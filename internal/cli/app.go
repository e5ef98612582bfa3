package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harun/reactor/internal/config"
	"github.com/harun/reactor/internal/logger"
	"github.com/harun/reactor/internal/observability"
	"github.com/harun/reactor/internal/tracing"
	"github.com/harun/reactor/pkg/agent"
	"github.com/harun/reactor/pkg/coretools"
	"github.com/harun/reactor/pkg/memory"
	"github.com/harun/reactor/pkg/sandbox"
	"github.com/harun/reactor/pkg/toolexecutor"
	"github.com/harun/reactor/pkg/vectorstore"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// newProviderCreator builds the model clients behind the failover provider.
// Tests replace it with a scripted backend.
var newProviderCreator = func(baseURLs map[string]string) agent.ProviderCreator {
	return &agent.ProviderFactory{BaseURLs: baseURLs}
}

// appOptions selects which parts of the runtime a command needs.
type appOptions struct {
	memory   bool
	provider bool
	tools    bool
	watch    bool
}

// app owns everything a command constructs from the config. Close releases
// it in reverse order.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    vectorstore.Store
	memory   *memory.Manager
	watcher  *memory.KnowledgeWatcher
	tools    *toolexecutor.ToolExecutor
	provider agent.LLMProvider
	audit    *observability.AuditLog

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer, opts appOptions) (*app, error) {
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		Console:    cfg.Logging.Console,
		Pretty:     cfg.Logging.Pretty,
		Redaction:  cfg.Logging.Redaction,
		ConsoleOut: stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log.SetVerbosity(cfg.Debug)

	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Close)

	tc := cfg.Tracing
	err = tracing.InitOpenTelemetry(ctx, tracing.Config{
		ServiceName: "reactor",
		Version:     GetVersion(),
		Endpoint:    tc.Endpoint,
		Insecure:    tc.Insecure,
		SampleRatio: tc.SampleRatio,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		a.closers = append(a.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tracing.ShutdownOpenTelemetry(shutdownCtx)
		})
	}

	if err := a.setup(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) setup(ctx context.Context, opts appOptions) error {
	zl := a.log.GetZerolog()

	if opts.memory {
		if err := a.openMemory(ctx, zl, opts.watch); err != nil {
			return err
		}
	}

	if opts.tools {
		if a.cfg.Logging.AuditFile != "" {
			audit, err := observability.OpenAuditLog(a.cfg.Logging.AuditFile)
			if err != nil {
				return err
			}
			a.audit = audit
			a.closers = append(a.closers, audit.Close)
		}
		tools, err := a.buildTools(zl)
		if err != nil {
			return err
		}
		a.tools = tools
	}

	if opts.provider {
		provider, err := buildProvider(a.cfg, zl)
		if err != nil {
			return err
		}
		a.provider = provider
	}

	return nil
}

func (a *app) openMemory(ctx context.Context, zl zerolog.Logger, watch bool) error {
	mc := a.cfg.Memory

	embedder, err := buildEmbedder(a.cfg)
	if err != nil {
		return err
	}
	if mc.Embedding.CacheSize > 0 {
		cached, err := vectorstore.NewCachedEmbeddingProvider(embedder, mc.Embedding.CacheSize)
		if err != nil {
			return fmt.Errorf("failed to create embedding cache: %w", err)
		}
		a.closers = append(a.closers, func() error { cached.Close(); return nil })
		embedder = cached
	}

	storeLogger := zl.With().Str("component", "vectorstore").Str("engine", mc.Engine).Logger()
	switch mc.Engine {
	case "chromem":
		a.store, err = vectorstore.OpenChromemStore(ctx, vectorstore.ChromemConfig{
			BasePath:          mc.Path,
			EmbeddingProvider: embedder,
			Logger:            storeLogger,
		})
	default:
		a.store, err = vectorstore.OpenSQLiteStore(ctx, vectorstore.SQLiteConfig{
			Path:              mc.Path,
			EmbeddingProvider: embedder,
			Logger:            storeLogger,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to open %s memory at %s: %w", mc.Engine, mc.Path, err)
	}

	manager, err := memory.NewManager(memory.Config{
		Store:    a.store,
		Capacity: mc.Capacity,
		Logger:   zl.With().Str("component", "memory").Logger(),
	})
	if err != nil {
		a.store.Close()
		return err
	}
	a.memory = manager
	a.closers = append(a.closers, manager.Close)

	if watch && mc.KnowledgeDir != "" {
		watcher, err := memory.NewKnowledgeWatcher(memory.WatcherConfig{
			Store:  a.store,
			Logger: zl.With().Str("component", "knowledge").Logger(),
		})
		if err != nil {
			return fmt.Errorf("failed to create knowledge watcher: %w", err)
		}
		a.closers = append(a.closers, watcher.Stop)
		if err := watcher.Watch(mc.KnowledgeDir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", mc.KnowledgeDir, err)
		}
		a.watcher = watcher
		zl.Info().Str("dir", mc.KnowledgeDir).Msg("Watching knowledge directory")
	}

	return nil
}

func buildEmbedder(cfg *config.Config) (vectorstore.EmbeddingProvider, error) {
	ec := cfg.Memory.Embedding
	if ec.Provider != "openai" {
		return vectorstore.NewHashEmbeddingProvider(ec.Dimension), nil
	}

	var key, baseURL string
	for _, p := range cfg.AI.Profiles {
		if p.Provider == "openai" && p.APIKey != "" {
			key, baseURL = p.APIKey, p.BaseURL
			break
		}
	}
	if key == "" {
		key = os.Getenv(config.ProviderEnvKeys["openai"])
	}
	if key == "" {
		return nil, errors.New("openai embeddings need an openai api key")
	}

	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return vectorstore.NewOpenAIEmbeddingProvider(key, ec.Model, ec.Dimension, opts...), nil
}

func (a *app) buildTools(zl zerolog.Logger) (*toolexecutor.ToolExecutor, error) {
	execOpts := []toolexecutor.Option{toolexecutor.WithPolicy(toolexecutor.NewAllowPolicy(a.cfg.EnabledTools))}
	if a.audit != nil {
		execOpts = append(execOpts, toolexecutor.WithAuditor(a.audit))
	}
	tools := toolexecutor.New(execOpts...)

	sc := a.cfg.Sandbox
	runner, err := sandbox.New(sandbox.Config{
		Backend:     sandbox.Backend(sc.Backend),
		Interpreter: sc.Interpreter,
		Image:       sc.Image,
		Timeout:     time.Duration(sc.TimeoutSeconds) * time.Second,
		Memory:      sc.Memory,
		CPUs:        sc.CPUs,
	})
	if err != nil {
		zl.Warn().Err(err).Str("backend", sc.Backend).Msg("Sandbox unavailable, code_exec disabled")
		runner = nil
	}

	if err := coretools.RegisterCoreTools(tools, coretools.Options{
		WorkspaceRoot: a.cfg.Workspace,
		Sandbox:       runner,
		Web: coretools.WebOptions{
			UserAgent:      a.cfg.Web.UserAgent,
			Timeout:        time.Duration(a.cfg.Web.TimeoutSeconds) * time.Second,
			BlockedDomains: a.cfg.Web.BlockedDomains,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to register core tools: %w", err)
	}

	if a.store != nil {
		if err := memory.RegisterMemoryTools(tools, a.store); err != nil {
			return nil, fmt.Errorf("failed to register memory tools: %w", err)
		}
	}

	zl.Debug().Int("tools", len(tools.ListTools())).Msg("Tools registered")
	return tools, nil
}

// buildProvider layers failover across the configured profiles under an
// optional rate limit.
func buildProvider(cfg *config.Config, zl zerolog.Logger) (agent.LLMProvider, error) {
	profiles := make([]agent.AuthProfile, 0, len(cfg.AI.Profiles))
	baseURLs := make(map[string]string)
	for _, p := range cfg.AI.Profiles {
		profiles = append(profiles, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		})
		if p.BaseURL != "" {
			baseURLs[p.Provider] = p.BaseURL
		}
	}

	failover, err := agent.NewFailoverProvider(agent.FailoverConfig{
		Profiles: profiles,
		Factory:  newProviderCreator(baseURLs),
		Logger:   zl.With().Str("component", "provider").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return agent.NewRateLimitedProvider(failover, cfg.AI.RequestsPerMinute), nil
}

// modelFor picks the configured model, or the default of the provider that
// will be tried first.
func modelFor(cfg *config.Config) string {
	if cfg.AI.Model != "" {
		return cfg.AI.Model
	}
	provider := cfg.AI.Provider
	best := -1
	for _, p := range cfg.AI.Profiles {
		if best == -1 || p.Priority < best {
			best = p.Priority
			provider = p.Provider
		}
	}
	return agent.DefaultModel(provider)
}

func (a *app) newRunner() (*agent.Runner, error) {
	cfg := a.cfg
	opts := agent.Options{
		Model:           modelFor(cfg),
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		MaxTurns:        cfg.MaxTurns,
		TopK:            cfg.Memory.TopK,
		ParallelSteps:   cfg.ParallelSteps,
		CorrectivePlans: cfg.CorrectivePlans,
	}

	runnerCfg := agent.Config{
		Provider: a.provider,
		Tools:    a.tools,
		Logger:   a.log.GetZerolog().With().Str("component", "agent").Logger(),
		Options:  opts,
	}
	if a.memory != nil {
		runnerCfg.Memory = a.memory
	}
	return agent.NewRunner(runnerCfg)
}

// saveMemory flushes the long-term store, logging rather than failing.
func (a *app) saveMemory(ctx context.Context) {
	if a.memory == nil {
		return
	}
	if err := a.memory.Save(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Failed to save memory")
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
