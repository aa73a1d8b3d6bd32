// Package usage keeps a local ledger of the tokens each answer consumed.
package usage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Entry is one answered submission.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Model          string    `json:"model"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
}

// Logger appends entries to daily JSONL files under a directory.
type Logger struct {
	baseDir string
	mu      sync.Mutex
}

// NewLogger writes under dir, normally <data dir>/usage.
func NewLogger(dir string) *Logger {
	return &Logger{baseDir: dir}
}

func (l *Logger) Dir() string { return l.baseDir }

// Log writes entry to the file for its UTC date.
func (l *Logger) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.baseDir, 0o755); err != nil {
		return errors.Wrap(err, "create usage directory")
	}

	date := entry.Timestamp.UTC().Format("2006-01-02")
	filename := filepath.Join(l.baseDir, date+".jsonl")

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open usage log")
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
