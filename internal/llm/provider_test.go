package llm

import (
	"context"
	"testing"

	"github.com/samsaffron/relaychat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.UpstreamConfig
		wantName string
		wantErr  bool
	}{
		{name: "groq default", cfg: config.UpstreamConfig{APIKey: "k", DefaultModel: "mixtral-8x7b-32768"}, wantName: "groq (mixtral-8x7b-32768)"},
		{name: "openai", cfg: config.UpstreamConfig{Provider: "openai", APIKey: "k", DefaultModel: "gpt-4o"}, wantName: "openai (gpt-4o)"},
		{name: "anthropic", cfg: config.UpstreamConfig{Provider: "Anthropic", APIKey: "k", DefaultModel: "claude-sonnet-4-5"}, wantName: "anthropic (claude-sonnet-4-5)"},
		{name: "mock needs no key", cfg: config.UpstreamConfig{Provider: "mock"}, wantName: "mock (echo)"},
		{name: "missing key", cfg: config.UpstreamConfig{Provider: "groq"}, wantErr: true},
		{name: "unknown", cfg: config.UpstreamConfig{Provider: "nope", APIKey: "k"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, p.Name())
		})
	}
}

func TestEchoProvider(t *testing.T) {
	p := &EchoProvider{}
	stream, err := p.Stream(context.Background(), Request{Messages: []Message{SystemText("sys"), UserText("echo this back please")}})
	require.NoError(t, err)
	defer stream.Close()

	text, usage, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "echo this back please", text)
	require.NotNil(t, usage)
	assert.Greater(t, usage.OutputTokens, 0)
}
