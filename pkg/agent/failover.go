package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/reactor/internal/observability"
	"github.com/harun/reactor/internal/tracing"
	"github.com/rs/zerolog"
)

// FailoverProvider tries auth profiles in priority order (lower first). Each
// profile is retried with exponential backoff on transient errors. A failing
// profile is put in cooldown, growing with consecutive failures.
type FailoverProvider struct {
	factory    ProviderCreator
	logger     zerolog.Logger
	maxRetries int
	retryBase  time.Duration
	cooldown   time.Duration

	mu        sync.Mutex
	profiles  []AuthProfile
	providers map[string]LLMProvider
	last      string
}

// FailoverConfig configures a FailoverProvider.
type FailoverConfig struct {
	Profiles []AuthProfile
	Factory  ProviderCreator
	Logger   zerolog.Logger
	// MaxRetries is the number of attempts per profile (default 3).
	MaxRetries int
	// RetryBaseDelay is the first backoff delay (default 1s).
	RetryBaseDelay time.Duration
	// Cooldown is multiplied by the failure count (default 1m).
	Cooldown time.Duration
}

// NewFailoverProvider creates a failover provider over the given profiles.
func NewFailoverProvider(cfg FailoverConfig) (*FailoverProvider, error) {
	observability.EnsureRegistered()

	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one auth profile is required")
	}

	factory := cfg.Factory
	if factory == nil {
		factory = &ProviderFactory{}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryBase := cfg.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = time.Second
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	profiles := make([]AuthProfile, len(cfg.Profiles))
	copy(profiles, cfg.Profiles)
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	return &FailoverProvider{
		factory:    factory,
		logger:     cfg.Logger,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		cooldown:   cooldown,
		profiles:   profiles,
		providers:  make(map[string]LLMProvider),
	}, nil
}

// Provider returns the name of the provider that last answered, or of the
// highest-priority profile before the first call.
func (f *FailoverProvider) Provider() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last != "" {
		return f.last
	}
	return f.profiles[0].Provider
}

// Call executes the request against the first profile that succeeds.
func (f *FailoverProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	logger := tracing.LoggerFromContext(ctx, f.logger)

	f.mu.Lock()
	profiles := make([]AuthProfile, len(f.profiles))
	copy(profiles, f.profiles)
	f.mu.Unlock()

	var lastErr error

	for _, profile := range profiles {
		if profile.CooldownUntil != nil && time.Now().UnixMilli() < *profile.CooldownUntil {
			observability.SetProviderCooldown(profile.Provider, true)
			logger.Debug().Str("profile_id", profile.ID).Msg("Skipping profile in cooldown")
			continue
		}

		provider, err := f.providerFor(profile)
		if err != nil {
			logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Failed to create provider")
			lastErr = err
			continue
		}

		response, err := f.callWithRetry(ctx, logger, provider, request)
		if err == nil {
			f.markSuccess(profile.ID)
			return response, nil
		}

		lastErr = err
		logger.Warn().Str("profile_id", profile.ID).Err(err).Msg("Auth profile failed")
		f.markFailure(profile.ID)

		if !IsRetryableError(err) {
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, ErrNoProfiles
	}
	logger.Error().Err(lastErr).Msg("All auth profiles failed")
	return nil, fmt.Errorf("all auth profiles failed: %w", lastErr)
}

func (f *FailoverProvider) providerFor(profile AuthProfile) (LLMProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[profile.ID]; ok {
		return p, nil
	}
	p, err := f.factory.NewProvider(profile)
	if err != nil {
		return nil, err
	}
	f.providers[profile.ID] = p
	return p, nil
}

func (f *FailoverProvider) callWithRetry(ctx context.Context, logger zerolog.Logger, provider LLMProvider, request LLMRequest) (*LLMResponse, error) {
	var lastErr error

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !IsRetryableError(err) || attempt == f.maxRetries-1 {
			break
		}

		delay := backoffDelay(f.retryBase, attempt)
		logger.Info().
			Str("provider", provider.Provider()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

func (f *FailoverProvider) markSuccess(profileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.profiles {
		if f.profiles[i].ID == profileID {
			f.profiles[i].FailureCount = 0
			f.profiles[i].CooldownUntil = nil
			f.last = f.profiles[i].Provider
			observability.SetProviderCooldown(f.profiles[i].Provider, false)
			break
		}
	}
}

func (f *FailoverProvider) markFailure(profileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.profiles {
		if f.profiles[i].ID == profileID {
			f.profiles[i].FailureCount++
			until := time.Now().Add(f.cooldown * time.Duration(f.profiles[i].FailureCount)).UnixMilli()
			f.profiles[i].CooldownUntil = &until
			observability.SetProviderCooldown(f.profiles[i].Provider, true)
			break
		}
	}
}

// Profiles returns a snapshot of the profiles with their failure state.
func (f *FailoverProvider) Profiles() []AuthProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AuthProfile, len(f.profiles))
	copy(out, f.profiles)
	return out
}
