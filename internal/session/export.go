package session

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ExportOptions configures conversation export.
type ExportOptions struct {
	ModelName string // Display name for the model row; falls back to the id
}

// escapeTableCell escapes special characters for markdown table cells.
func escapeTableCell(s string) string {
	// Replace pipe characters and newlines which break tables
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// ExportToMarkdown renders a conversation as a markdown document.
func ExportToMarkdown(conv Conversation, opts ExportOptions) string {
	var b strings.Builder

	title := conv.Title
	if title == "" {
		title = DefaultTitle
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	model := opts.ModelName
	if model == "" {
		model = conv.Model
	} else if model != conv.Model {
		model = fmt.Sprintf("%s (`%s`)", model, conv.Model)
	}

	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| **Model** | %s |\n", escapeTableCell(model))
	fmt.Fprintf(&b, "| **Created** | %s |\n", conv.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "| **Updated** | %s |\n", conv.UpdatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "| **Turns** | %d |\n", len(conv.Messages))
	fmt.Fprintf(&b, "| **ID** | `%s` |\n\n", conv.ID)

	b.WriteString("---\n\n")

	for _, turn := range conv.Messages {
		switch turn.Message.Role {
		case llm.RoleUser:
			b.WriteString("### User\n\n")
		case llm.RoleAssistant:
			b.WriteString("### Assistant\n\n")
		default:
			fmt.Fprintf(&b, "### %s\n\n", turn.Message.Role)
		}
		b.WriteString(strings.TrimRight(turn.Message.Content, "\n"))
		b.WriteString("\n\n---\n\n")
	}

	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ExportToHTML renders the markdown export as a standalone HTML page.
// Raw HTML in messages is escaped by goldmark's default renderer.
func ExportToHTML(conv Conversation, opts ExportOptions) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(ExportToMarkdown(conv, opts)), &body); err != nil {
		return "", errors.Wrap(err, "render markdown")
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(conv.Title))
	b.WriteString("<style>body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;line-height:1.5}pre{overflow-x:auto}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
