package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestBuildGeminiRequest(t *testing.T) {
	system, rest := splitSystem([]Message{SystemText("be brief"), UserText("hi"), AssistantText("hey"), UserText("again")})
	contents, cfg := buildGeminiRequest(system, rest, Request{Temperature: 0.7, MaxOutputTokens: 1000})

	require.Len(t, contents, 3)
	roles := make([]string, 0, len(contents))
	for _, c := range contents {
		roles = append(roles, c.Role)
	}
	assert.Equal(t, []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}, roles)
	assert.Equal(t, "hey", contents[1].Parts[0].Text)

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0.7), *cfg.Temperature)
	assert.Equal(t, int32(1000), cfg.MaxOutputTokens)
}

func TestBuildGeminiRequestOmitsUnsetOptions(t *testing.T) {
	_, cfg := buildGeminiRequest("", []Message{UserText("hi")}, Request{})
	assert.Nil(t, cfg.SystemInstruction)
	assert.Nil(t, cfg.Temperature)
	assert.Zero(t, cfg.MaxOutputTokens)
}
