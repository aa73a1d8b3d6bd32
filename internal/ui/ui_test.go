package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/config"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/testutil"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer conversation title", 10, "a longe..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestFormatResult(t *testing.T) {
	s := NewStyles(os.Stderr)
	testutil.AssertContainsPlain(t, s.FormatResult(true, "saved"), SuccessIcon+" saved")
	testutil.AssertContainsPlain(t, s.FormatResult(false, "failed"), FailIcon+" failed")
	testutil.AssertContainsPlain(t, s.FormatActive(true, "chat"), ActiveIcon+" chat")
}

func TestRenderMarkdownWithError_ZeroWidth_DoesNotError(t *testing.T) {
	_, err := RenderMarkdownWithError("# title", 0)
	if err != nil {
		t.Fatalf("RenderMarkdownWithError must not fail for zero width: %v", err)
	}
}

func TestRenderMarkdownKeepsText(t *testing.T) {
	out := RenderMarkdown("**bold** and `code`", 80)
	testutil.AssertContainsPlain(t, out, "bold")
	testutil.AssertContainsPlain(t, out, "code")
	testutil.AssertNotContainsPlain(t, out, "**")
	if RenderMarkdown("", 80) != "" {
		t.Error("empty input should render empty")
	}
}

func TestModelOptions(t *testing.T) {
	opts := modelOptions(catalog.Builtin)
	if len(opts) != len(catalog.Builtin) {
		t.Fatalf("got %d options, want %d", len(opts), len(catalog.Builtin))
	}
	for i, o := range opts {
		if o.Value != catalog.Builtin[i].ID {
			t.Errorf("option %d value = %q, want %q", i, o.Value, catalog.Builtin[i].ID)
		}
	}
	last := testutil.StripANSI(opts[len(opts)-1].Key)
	if !strings.Contains(last, "preview") || !strings.Contains(last, "128K") {
		t.Errorf("preview model label missing details: %q", last)
	}
}

func TestConversationOptions(t *testing.T) {
	conv := session.NewConversation("gemma2-9b-it", session.Now())
	conv.Title = strings.Repeat("x", 80)
	opts := conversationOptions(session.List{conv})
	if len(opts) != 1 || opts[0].Value != conv.ID {
		t.Fatalf("unexpected options: %+v", opts)
	}
	testutil.AssertContainsPlain(t, opts[0].Key, "0 msgs")
	testutil.AssertContainsPlain(t, opts[0].Key, "...")
}

func TestProviderOptionsListAvailableFirst(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")

	opts := providerOptions(detectAvailableProviders())
	if opts[0].Value != config.ProviderAnthropic || opts[1].Value != config.ProviderMock {
		t.Errorf("available providers should come first, got %q, %q", opts[0].Value, opts[1].Value)
	}
	testutil.AssertContains(t, opts[2].Key, "set GROQ_API_KEY")
}
