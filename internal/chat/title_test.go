package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "General Greeting", want: "General Greeting"},
		{raw: `"Weather Questions"`, want: "Weather Questions"},
		{raw: "'Go Concurrency'", want: "Go Concurrency"},
		{raw: "Title: Travel Plans", want: "Travel Plans"},
		{raw: "title travel plans", want: "travel plans"},
		{raw: "TITLE:Cooking Tips", want: "Cooking Tips"},
		{raw: "1. Math Help", want: "Math Help"},
		{raw: "- Rust Basics", want: "Rust Basics"},
		{raw: "  \"Title: 2. Nested\"\n", want: "Nested"},
		{raw: `"Title: Quoted"`, want: "Quoted"},
		{raw: `"Title: 1. - Weather Chat"`, want: "Weather Chat"},
		{raw: "   ", want: ""},
		{raw: `""`, want: ""},
		{raw: "Title:", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeTitle(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeTitle(got), "normalization must be idempotent")
		})
	}
}
