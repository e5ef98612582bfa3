package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestAnthropicProvider_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.Equal(t, float64(256), body["max_tokens"])
		assert.Equal(t, 0.2, body["temperature"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content": [{"type": "text", "text": " hello there "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL, anthropicoption.WithMaxRetries(0))
	assert.Equal(t, "anthropic", p.Provider())

	resp, err := p.Call(context.Background(), LLMRequest{
		Model:       "claude-test",
		Prompt:      "hi",
		MaxTokens:   256,
		Temperature: floatPtr(0.2),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
}

func TestOpenAIProvider_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4.1-mini", body["model"])
		_, hasTemp := body["temperature"]
		assert.False(t, hasTemp)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4.1-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "answer"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
		}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, openaioption.WithMaxRetries(0))
	resp, err := p.Call(context.Background(), LLMRequest{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Content)
	assert.Equal(t, 5, resp.Usage.InputTokens)
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("k", server.URL, openaioption.WithMaxRetries(0))
	_, err := p.Call(context.Background(), LLMRequest{Prompt: "q"})
	assert.Error(t, err)
}

func TestGeminiProvider_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "gem-key", r.URL.Query().Get("key"))

		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig map[string]interface{} `json:"generationConfig"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		assert.Equal(t, "prompt text", body.Contents[0].Parts[0].Text)
		assert.Equal(t, float64(64), body.GenerationConfig["maxOutputTokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "part one "}, {"text": "part two"}]}}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2}
		}`))
	}))
	defer server.Close()

	p := NewGeminiProvider("gem-key", server.URL)
	resp, err := p.Call(context.Background(), LLMRequest{Model: "gemini-test", Prompt: "prompt text", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, 4, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestGeminiProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request"}}`))
	}))
	defer server.Close()

	p := NewGeminiProvider("k", server.URL)
	_, err := p.Call(context.Background(), LLMRequest{Model: "m", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestProviderFactory(t *testing.T) {
	f := &ProviderFactory{}

	for _, name := range []string{"anthropic", "openai", "gemini"} {
		p, err := f.NewProvider(AuthProfile{ID: name, Provider: name, APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, name, p.Provider())
	}

	_, err := f.NewProvider(AuthProfile{ID: "x", Provider: "mystery", APIKey: "k"})
	assert.Error(t, err)

	_, err = f.NewProvider(AuthProfile{ID: "y", Provider: "openai"})
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("read: ECONNRESET"), true},
		{errors.New("status 429 Too Many Requests"), true},
		{errors.New("Rate limit exceeded"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("401 Unauthorized"), false},
		{errors.New("invalid model"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableError(tt.err), "%v", tt.err)
	}
}

type stubProvider struct {
	name  string
	mu    sync.Mutex
	calls int
	err   error
	reply string
}

func (s *stubProvider) Provider() string { return s.name }

func (s *stubProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &LLMResponse{Content: s.reply}, nil
}

type stubFactory map[string]LLMProvider

func (f stubFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	p, ok := f[profile.ID]
	if !ok {
		return nil, errors.New("no stub")
	}
	return p, nil
}

func TestFailoverProvider(t *testing.T) {
	t.Run("falls over on transient errors and cools down", func(t *testing.T) {
		primary := &stubProvider{name: "anthropic", err: errors.New("503 overloaded")}
		backup := &stubProvider{name: "openai", reply: "from backup"}

		f, err := NewFailoverProvider(FailoverConfig{
			Profiles: []AuthProfile{
				{ID: "backup", Provider: "openai", Priority: 2},
				{ID: "primary", Provider: "anthropic", Priority: 1},
			},
			Factory:        stubFactory{"primary": primary, "backup": backup},
			Logger:         zerolog.Nop(),
			MaxRetries:     2,
			RetryBaseDelay: time.Millisecond,
		})
		require.NoError(t, err)
		assert.Equal(t, "anthropic", f.Provider())

		resp, err := f.Call(context.Background(), LLMRequest{Prompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, "from backup", resp.Content)
		assert.Equal(t, 2, primary.calls)
		assert.Equal(t, "openai", f.Provider())

		_, err = f.Call(context.Background(), LLMRequest{Prompt: "y"})
		require.NoError(t, err)
		assert.Equal(t, 2, primary.calls, "primary should be in cooldown")

		profiles := f.Profiles()
		assert.Equal(t, "primary", profiles[0].ID)
		assert.Equal(t, 1, profiles[0].FailureCount)
		assert.NotNil(t, profiles[0].CooldownUntil)
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		primary := &stubProvider{name: "anthropic", err: errors.New("401 invalid api key")}
		backup := &stubProvider{name: "openai", reply: "unused"}

		f, err := NewFailoverProvider(FailoverConfig{
			Profiles: []AuthProfile{
				{ID: "primary", Provider: "anthropic", Priority: 1},
				{ID: "backup", Provider: "openai", Priority: 2},
			},
			Factory: stubFactory{"primary": primary, "backup": backup},
			Logger:  zerolog.Nop(),
		})
		require.NoError(t, err)

		_, err = f.Call(context.Background(), LLMRequest{Prompt: "x"})
		require.Error(t, err)
		assert.Equal(t, 1, primary.calls)
		assert.Equal(t, 0, backup.calls)
	})

	t.Run("all profiles cooling down", func(t *testing.T) {
		only := &stubProvider{name: "gemini", err: errors.New("429 rate limit")}
		f, err := NewFailoverProvider(FailoverConfig{
			Profiles:       []AuthProfile{{ID: "only", Provider: "gemini"}},
			Factory:        stubFactory{"only": only},
			Logger:         zerolog.Nop(),
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
		})
		require.NoError(t, err)

		_, err = f.Call(context.Background(), LLMRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all auth profiles failed")

		_, err = f.Call(context.Background(), LLMRequest{})
		assert.True(t, errors.Is(err, ErrNoProfiles))
	})

	t.Run("requires a profile", func(t *testing.T) {
		_, err := NewFailoverProvider(FailoverConfig{})
		assert.Error(t, err)
	})
}

func TestRateLimitedProvider(t *testing.T) {
	inner := &stubProvider{name: "openai", reply: "ok"}

	assert.Same(t, LLMProvider(inner), NewRateLimitedProvider(inner, 0))

	p := NewRateLimitedProvider(inner, 1200) // one call per 50ms
	assert.Equal(t, "openai", p.Provider())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Call(context.Background(), LLMRequest{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, inner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Call(ctx, LLMRequest{})
	assert.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}
