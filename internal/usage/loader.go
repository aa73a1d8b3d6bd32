package usage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LoadResult holds every readable entry plus per-line failures.
type LoadResult struct {
	Entries []Entry
	Errors  []error
}

// Load reads all daily files under dir. A missing dir yields an empty result.
func Load(dir string) LoadResult {
	var result LoadResult

	files, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, errors.Wrap(err, "read usage directory"))
		}
		return result
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".jsonl") {
			continue
		}
		entries, errs := loadFile(filepath.Join(dir, file.Name()))
		result.Entries = append(result.Entries, entries...)
		result.Errors = append(result.Errors, errs...)
	}
	sort.SliceStable(result.Entries, func(i, j int) bool {
		return result.Entries[i].Timestamp.Before(result.Entries[j].Timestamp)
	})
	return result
}

func loadFile(path string) ([]Entry, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{err}
	}
	defer f.Close()

	var entries []Entry
	var errs []error
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			errs = append(errs, errors.Wrapf(err, "%s:%d", filepath.Base(path), line))
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return entries, errs
}

// Summary is the total for one model.
type Summary struct {
	Model        string `json:"model"`
	Answers      int    `json:"answers"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Summarize totals entries at or after since, per model, largest first.
// A zero since includes everything.
func Summarize(entries []Entry, since time.Time) []Summary {
	byModel := map[string]*Summary{}
	for _, e := range entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		s := byModel[e.Model]
		if s == nil {
			s = &Summary{Model: e.Model}
			byModel[e.Model] = s
		}
		s.Answers++
		s.InputTokens += e.InputTokens
		s.OutputTokens += e.OutputTokens
	}

	out := make([]Summary, 0, len(byModel))
	for _, s := range byModel {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		ti := out[i].InputTokens + out[i].OutputTokens
		tj := out[j].InputTokens + out[j].OutputTokens
		if ti != tj {
			return ti > tj
		}
		return out[i].Model < out[j].Model
	})
	return out
}
