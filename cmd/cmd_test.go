package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/chat"
	"github.com/samsaffron/relaychat/internal/exitcode"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/usage"
)

// setupCLI isolates config and data dirs and points the client at the
// in-process relay with the echo upstream.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("RELAYCHAT_UPSTREAM_PROVIDER", "mock")
	t.Setenv("RELAYCHAT_CLIENT_TRANSPORT", "local")
	t.Setenv("RELAYCHAT_LOG_LEVEL", "error")
	t.Cleanup(resetFlags)
	return dir
}

// resetFlags restores flag variables; cobra keeps values between Execute calls.
func resetFlags() {
	askText, askContinue, chatNew, modelsJSON, convListJSON, convYes = false, false, false, false, false, false
	convFormat, convOutput = "md", ""
	usageDays, usageJSON = 0, false
	askFlags, chatFlags = clientFlags{}, clientFlags{}
	serveAddr, serveToken, servePprof = "", "", -1
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitcode.Success},
		{"generic", errors.New("boom"), exitcode.Error},
		{"usage", exitcode.BadUsage("bad flag"), exitcode.Usage},
		{"wrapped usage", errors.Wrap(exitcode.BadUsage("bad"), "ctx"), exitcode.Usage},
		{"cancelled", context.Canceled, exitcode.Cancelled},
		{"submission failed", &chat.SubmitError{Cause: errors.New("upstream")}, exitcode.SubmissionFailed},
		{"unreachable", &chat.SubmitError{Cause: chat.ErrRelayUnreachable}, exitcode.Unreachable},
		{"cancelled submission", &chat.SubmitError{Cause: context.Canceled}, exitcode.Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "relaychat version dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestAskStoresConversation(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "ask", "--text", "hello there")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if strings.TrimSpace(out) != "hello there" {
		t.Errorf("answer = %q, want the echoed question", out)
	}

	out, err = runCLI(t, "", "conversations", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "hello there") || !strings.Contains(out, "2 msgs") {
		t.Errorf("list output missing conversation:\n%s", out)
	}

	out, err = runCLI(t, "", "ask", "--text", "--continue", "second question")
	if err != nil {
		t.Fatalf("ask --continue: %v", err)
	}
	if strings.TrimSpace(out) != "second question" {
		t.Errorf("answer = %q", out)
	}

	out, err = runCLI(t, "", "conversations", "export", "1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if strings.Count(out, "### User") != 2 || strings.Count(out, "### Assistant") != 2 {
		t.Errorf("export should hold two exchanges:\n%s", out)
	}
}

func TestAskFromStdin(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "  piped question \n", "ask", "--text", "-")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if strings.TrimSpace(out) != "piped question" {
		t.Errorf("answer = %q", out)
	}
}

func TestAskEmptyQuestionIsUsageError(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "   ", "ask", "-")
	if exitCode(err) != exitcode.Usage {
		t.Fatalf("exit code = %d (%v), want usage", exitCode(err), err)
	}
}

func TestAskUnknownTransport(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "ask", "--transport", "carrier-pigeon", "hi")
	if exitCode(err) != exitcode.Usage {
		t.Fatalf("exit code = %d (%v), want usage", exitCode(err), err)
	}
}

func TestAskUnreachableRelay(t *testing.T) {
	setupCLI(t)
	t.Setenv("RELAYCHAT_CLIENT_TRANSPORT", "http")

	_, err := runCLI(t, "", "ask", "--text", "--relay", "http://127.0.0.1:1", "hi")
	if exitCode(err) != exitcode.Unreachable {
		t.Fatalf("exit code = %d (%v), want unreachable", exitCode(err), err)
	}
}

func TestChatLineMode(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "first line\n\nsecond line\n", "chat")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(out, "first line") || !strings.Contains(out, "second line") {
		t.Errorf("answers missing from output:\n%s", out)
	}

	out, err = runCLI(t, "", "conversations", "list", "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list session.List
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(list) != 1 || len(list[0].Messages) != 4 {
		t.Fatalf("want one conversation with 4 turns, got %+v", list)
	}
	if list[0].Title != "first line" {
		t.Errorf("title = %q", list[0].Title)
	}
}

func TestConversationDelete(t *testing.T) {
	setupCLI(t)

	if _, err := runCLI(t, "", "ask", "--text", "to be removed"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if _, err := runCLI(t, "", "conversations", "delete", "--yes", "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	out, err := runCLI(t, "", "conversations", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No conversations yet.") {
		t.Errorf("conversation not deleted:\n%s", out)
	}

	_, err = runCLI(t, "", "conversations", "show", "nope")
	if exitCode(err) != exitcode.Usage {
		t.Errorf("show unknown: exit code %d, want usage", exitCode(err))
	}
}

func TestFindConversation(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := session.NewConversation("m", now)
	a.ID = "aaaa1111-0000-0000-0000-000000000000"
	b := session.NewConversation("m", now)
	b.ID = "aaaa2222-0000-0000-0000-000000000000"
	list := session.List{a, b}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"1", a.ID, false},
		{"2", b.ID, false},
		{b.ID, b.ID, false},
		{"aaaa1", a.ID, false},
		{"aaaa", "", true},
		{"3", "", true},
		{"zzz", "", true},
	}
	for _, tt := range tests {
		got, err := findConversation(list, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Errorf("findConversation(%q) = %s, want error", tt.ref, got.ID)
			}
			continue
		}
		if err != nil || got.ID != tt.want {
			t.Errorf("findConversation(%q) = %s, %v; want %s", tt.ref, got.ID, err, tt.want)
		}
	}
}

func TestModelsCommand(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "models", "--json")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	var models []catalog.ModelDescriptor
	if err := json.Unmarshal([]byte(out), &models); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(models) != len(catalog.Builtin) {
		t.Errorf("got %d models, want %d", len(models), len(catalog.Builtin))
	}

	out, err = runCLI(t, "", "models", "gemma")
	if err != nil {
		t.Fatalf("models gemma: %v", err)
	}
	if !strings.Contains(out, "gemma2-9b-it") || strings.Contains(out, "mixtral") {
		t.Errorf("filtered output wrong:\n%s", out)
	}

	out, err = runCLI(t, "", "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, "* mixtral-8x7b-32768") {
		t.Errorf("default model not marked:\n%s", out)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	setupCLI(t)
	t.Setenv("RELAYCHAT_UPSTREAM_API_KEY", "gsk_abcdefghijklmnop")

	out, err := runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "abcdefghijklmnop") {
		t.Errorf("api key leaked:\n%s", out)
	}
	if !strings.Contains(out, "gsk_********") {
		t.Errorf("masked key missing:\n%s", out)
	}
}

func TestMaskSecret(t *testing.T) {
	for in, want := range map[string]string{
		"":                 "",
		"short":            "********",
		"sk-1234567890abc": "sk-1********",
	} {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUsageCommand(t *testing.T) {
	setupCLI(t)

	out, err := runCLI(t, "", "usage")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if !strings.Contains(out, "No usage recorded.") {
		t.Errorf("unexpected output:\n%s", out)
	}

	for _, q := range []string{"one two three", "four five"} {
		if _, err := runCLI(t, "", "ask", "--text", q); err != nil {
			t.Fatalf("ask: %v", err)
		}
	}

	out, err = runCLI(t, "", "usage", "--json", "--days", "1")
	if err != nil {
		t.Fatalf("usage --json: %v", err)
	}
	var rows []usage.Summary
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].Model != "mixtral-8x7b-32768" || rows[0].Answers != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].InputTokens == 0 || rows[0].OutputTokens == 0 {
		t.Errorf("token counts missing: %+v", rows[0])
	}

	_, err = runCLI(t, "", "usage", "--days", "-1")
	if exitCode(err) != exitcode.Usage {
		t.Errorf("negative days: exit code %d", exitCode(err))
	}
}
