package llm

import "fmt"

// FormatTokenCount returns a human-readable string for a token count
// (e.g., "128K", "1M", "200K"). Returns "" for zero or negative values.
// Counts under one thousand are printed as-is.
func FormatTokenCount(tokens int) string {
	if tokens <= 0 {
		return ""
	}
	if tokens < 1_000 {
		return fmt.Sprintf("%d", tokens)
	}
	if tokens >= 1_000_000 {
		// Round to nearest 100K for cleaner display
		rounded := (tokens + 50_000) / 100_000 // e.g., 1_048_576 → 10, 2_097_152 → 21
		if rounded%10 == 0 {
			return fmt.Sprintf("%dM", rounded/10) // e.g., 10 → "1M"
		}
		return fmt.Sprintf("%.1fM", float64(rounded)/10) // e.g., 21 → "2.1M"
	}
	k := (tokens + 500) / 1_000 // Round to nearest K
	return fmt.Sprintf("%dK", k)
}

// ContextUsage describes how much of a model's context window a prompt fills.
type ContextUsage struct {
	Used   int
	Window int
}

// Percent returns the filled share of the window, 0 when the window is unknown.
func (u ContextUsage) Percent() float64 {
	if u.Window <= 0 {
		return 0
	}
	return float64(u.Used) * 100 / float64(u.Window)
}

func (u ContextUsage) String() string {
	if u.Window <= 0 {
		return FormatTokenCount(u.Used)
	}
	used := FormatTokenCount(u.Used)
	if used == "" {
		used = "0"
	}
	return fmt.Sprintf("%s / %s", used, FormatTokenCount(u.Window))
}

// EstimateContext measures messages against a window size.
func EstimateContext(messages []Message, window int) ContextUsage {
	return ContextUsage{Used: CountMessageTokens(messages), Window: window}
}
