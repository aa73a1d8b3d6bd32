package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 1, CountTokens("hello"))
	assert.Greater(t, CountTokens("The quick brown fox jumps over the lazy dog"), 5)
}

func TestCountMessageTokens(t *testing.T) {
	assert.Equal(t, 0, CountMessageTokens(nil))
	msgs := []Message{UserText("hello"), AssistantText("hello")}
	assert.Equal(t, 3+2*(perMessageOverhead+1), CountMessageTokens(msgs))
}

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, ""},
		{-5, ""},
		{812, "812"},
		{8192, "8K"},
		{32768, "33K"},
		{128000, "128K"},
		{1_000_000, "1M"},
		{2_097_152, "2.1M"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatTokenCount(tc.in), "tokens=%d", tc.in)
	}
}

func TestContextUsage(t *testing.T) {
	u := ContextUsage{Used: 12_300, Window: 128_000}
	assert.Equal(t, "12K / 128K", u.String())
	assert.InDelta(t, 9.6, u.Percent(), 0.01)

	assert.Equal(t, "0 / 8K", ContextUsage{Window: 8192}.String())
	assert.Equal(t, 0.0, ContextUsage{Used: 10}.Percent())
}
