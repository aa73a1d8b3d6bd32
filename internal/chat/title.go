package chat

import (
	"regexp"
	"strings"
)

// TitlePrompt is the instruction sent with the first user message of a conversation.
const TitlePrompt = `Generate a very short title (2-4 words) for a conversation that starts with this message. For example, if the user asks "How are you?", respond with "General Greeting". Only return the title, nothing else.`

var titleRules = []*regexp.Regexp{
	regexp.MustCompile(`^["']|["']$`),
	regexp.MustCompile(`(?i)^title:?\s*`),
	regexp.MustCompile(`^\d+\.\s*`),
	regexp.MustCompile(`^-\s*`),
}

// NormalizeTitle cleans a raw model reply into a display title. The rules are
// applied until nothing changes, so NormalizeTitle(NormalizeTitle(s)) equals
// NormalizeTitle(s). An empty result means the reply held no usable title.
func NormalizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for {
		next := title
		for _, rule := range titleRules {
			next = rule.ReplaceAllString(next, "")
		}
		next = strings.TrimSpace(next)
		if next == title {
			return title
		}
		title = next
	}
}
