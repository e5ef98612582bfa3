package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Provider() string {
	return m.Called().String(0)
}

func (m *mockProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	args := m.Called(ctx, request)
	if resp, ok := args.Get(0).(*LLMResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) NewProvider(profile AuthProfile) (LLMProvider, error) {
	args := m.Called(profile)
	if p, ok := args.Get(0).(LLMProvider); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestFailoverProvider_RecoversAfterCooldown(t *testing.T) {
	primary := new(mockProvider)
	backup := new(mockProvider)
	creator := new(mockCreator)

	creator.On("NewProvider", mock.MatchedBy(func(p AuthProfile) bool { return p.ID == "primary" })).
		Return(primary, nil).Once()
	creator.On("NewProvider", mock.MatchedBy(func(p AuthProfile) bool { return p.ID == "backup" })).
		Return(backup, nil).Once()

	primary.On("Provider").Return("anthropic").Maybe()
	backup.On("Provider").Return("openai").Maybe()

	primary.On("Call", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset by peer")).Once()
	primary.On("Call", mock.Anything, mock.Anything).
		Return(&LLMResponse{Content: "primary again"}, nil)
	backup.On("Call", mock.Anything, mock.MatchedBy(func(r LLMRequest) bool { return r.Prompt == "first" })).
		Return(&LLMResponse{Content: "backup"}, nil).Once()

	f, err := NewFailoverProvider(FailoverConfig{
		Profiles: []AuthProfile{
			{ID: "primary", Provider: "anthropic", Priority: 0},
			{ID: "backup", Provider: "openai", Priority: 1},
		},
		Factory:        creator,
		Logger:         zerolog.Nop(),
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		Cooldown:       time.Nanosecond,
	})
	require.NoError(t, err)

	resp, err := f.Call(context.Background(), LLMRequest{Prompt: "first"})
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Content)
	assert.Equal(t, 1, f.Profiles()[0].FailureCount)

	time.Sleep(2 * time.Millisecond)

	resp, err = f.Call(context.Background(), LLMRequest{Prompt: "second"})
	require.NoError(t, err)
	assert.Equal(t, "primary again", resp.Content)
	assert.Equal(t, "anthropic", f.Provider())

	profiles := f.Profiles()
	assert.Equal(t, 0, profiles[0].FailureCount)
	assert.Nil(t, profiles[0].CooldownUntil)

	creator.AssertExpectations(t)
	primary.AssertExpectations(t)
	backup.AssertExpectations(t)
}

func TestFailoverProvider_CreatorError(t *testing.T) {
	backup := new(mockProvider)
	creator := new(mockCreator)

	creator.On("NewProvider", mock.MatchedBy(func(p AuthProfile) bool { return p.ID == "broken" })).
		Return(nil, errors.New("unsupported provider"))
	creator.On("NewProvider", mock.MatchedBy(func(p AuthProfile) bool { return p.ID == "backup" })).
		Return(backup, nil)

	backup.On("Provider").Return("openai").Maybe()
	backup.On("Call", mock.Anything, mock.Anything).Return(&LLMResponse{Content: "ok"}, nil)

	f, err := NewFailoverProvider(FailoverConfig{
		Profiles: []AuthProfile{
			{ID: "broken", Provider: "unknown", Priority: 0},
			{ID: "backup", Provider: "openai", Priority: 1},
		},
		Factory: creator,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	resp, err := f.Call(context.Background(), LLMRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 0, f.Profiles()[0].FailureCount, "creation errors do not start a cooldown")

	creator.AssertExpectations(t)
}
