package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/ui"
)

// DialogType represents the type of dialog
type DialogType int

const (
	DialogNone DialogType = iota
	DialogModelPicker
	DialogConversationList
)

// DialogModel handles modal dialogs
type DialogModel struct {
	dialogType DialogType
	items      []DialogItem
	filtered   []DialogItem
	cursor     int
	query      string
	title      string
	width      int
	styles     *ui.Styles
}

// DialogItem represents an item in a dialog list
type DialogItem struct {
	ID          string
	Label       string
	Description string
	Selected    bool
}

type itemSource []DialogItem

func (s itemSource) String(i int) string { return s[i].ID + " " + s[i].Label }
func (s itemSource) Len() int            { return len(s) }

// NewDialogModel creates a new dialog model
func NewDialogModel(styles *ui.Styles) *DialogModel {
	return &DialogModel{
		dialogType: DialogNone,
		styles:     styles,
	}
}

// SetWidth updates the available width
func (d *DialogModel) SetWidth(width int) {
	d.width = width
}

// IsOpen returns whether a dialog is open
func (d *DialogModel) IsOpen() bool {
	return d.dialogType != DialogNone
}

// Type returns the current dialog type
func (d *DialogModel) Type() DialogType {
	return d.dialogType
}

// Close closes the dialog
func (d *DialogModel) Close() {
	d.dialogType = DialogNone
	d.items = nil
	d.filtered = nil
	d.cursor = 0
	d.query = ""
}

// ShowModelPicker opens the model picker dialog
func (d *DialogModel) ShowModelPicker(currentModel string, models []catalog.ModelDescriptor) {
	items := make([]DialogItem, 0, len(models))
	for _, m := range models {
		desc := m.Developer + " · " + llm.FormatTokenCount(m.ContextWindow)
		if m.Type == catalog.TypePreview {
			desc += " · preview"
		}
		items = append(items, DialogItem{
			ID:          m.ID,
			Label:       m.Name,
			Description: desc,
			Selected:    m.ID == currentModel,
		})
	}
	d.open(DialogModelPicker, "Select Model", items)
}

// ShowConversationList opens the conversation picker
func (d *DialogModel) ShowConversationList(list session.List, currentID string) {
	items := make([]DialogItem, 0, len(list))
	for _, c := range list {
		items = append(items, DialogItem{
			ID:          c.ID,
			Label:       ui.Truncate(c.Title, 40),
			Description: c.UpdatedAt.Local().Format("Jan 2 15:04"),
			Selected:    c.ID == currentID,
		})
	}
	d.open(DialogConversationList, "Conversations", items)
}

func (d *DialogModel) open(t DialogType, title string, items []DialogItem) {
	d.dialogType = t
	d.title = title
	d.query = ""
	d.items = items
	d.filtered = items
	d.cursor = 0
	for i, item := range items {
		if item.Selected {
			d.cursor = i
			break
		}
	}
}

// Selected returns the currently highlighted item
func (d *DialogModel) Selected() *DialogItem {
	if len(d.filtered) == 0 {
		return nil
	}
	if d.cursor >= len(d.filtered) {
		d.cursor = len(d.filtered) - 1
	}
	return &d.filtered[d.cursor]
}

// SetQuery updates the filter query
func (d *DialogModel) SetQuery(query string) {
	d.query = query
	d.filterItems()
}

// filterItems fuzzy-filters items based on query
func (d *DialogModel) filterItems() {
	if d.query == "" {
		d.filtered = d.items
	} else {
		d.filtered = nil
		for _, match := range fuzzy.FindFrom(d.query, itemSource(d.items)) {
			d.filtered = append(d.filtered, d.items[match.Index])
		}
	}
	if d.cursor >= len(d.filtered) {
		d.cursor = max(0, len(d.filtered)-1)
	}
}

// Update handles navigation and filtering keys. Enter is handled by the caller.
func (d *DialogModel) Update(msg tea.Msg) (*DialogModel, tea.Cmd) {
	if d.dialogType == DialogNone {
		return d, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}
	switch {
	case key.Matches(keyMsg, key.NewBinding(key.WithKeys("up", "ctrl+p"))):
		if d.cursor > 0 {
			d.cursor--
		}
	case key.Matches(keyMsg, key.NewBinding(key.WithKeys("down", "ctrl+n"))):
		if d.cursor < len(d.filtered)-1 {
			d.cursor++
		}
	case key.Matches(keyMsg, key.NewBinding(key.WithKeys("esc"))):
		d.Close()
	case key.Matches(keyMsg, key.NewBinding(key.WithKeys("backspace"))):
		if d.query != "" {
			r := []rune(d.query)
			d.SetQuery(string(r[:len(r)-1]))
		}
	case keyMsg.Type == tea.KeyRunes:
		d.SetQuery(d.query + string(keyMsg.Runes))
	}
	return d, nil
}

// View renders the dialog
func (d *DialogModel) View() string {
	if d.dialogType == DialogNone {
		return ""
	}

	maxVisible := 12
	startIdx := 0
	if d.cursor >= maxVisible {
		startIdx = d.cursor - maxVisible + 1
	}
	endIdx := min(startIdx+maxVisible, len(d.filtered))
	items := d.filtered[startIdx:endIdx]

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.Blue).
		Padding(0, 1)
	if d.width > 8 {
		borderStyle = borderStyle.MaxWidth(d.width)
	}

	var b strings.Builder
	b.WriteString(d.styles.Title.Render(d.title))
	if d.query != "" {
		b.WriteString(d.styles.Muted.Render("  filter: " + d.query))
	}
	b.WriteString("\n")

	if len(items) == 0 {
		b.WriteString(d.styles.Muted.Render("  no matches"))
	}
	for i, item := range items {
		line := item.Label
		if startIdx+i == d.cursor {
			b.WriteString(d.styles.Highlighted.Render("❯ " + line))
		} else {
			b.WriteString("  " + line)
		}
		if item.Description != "" {
			b.WriteString(d.styles.Muted.Render("  " + item.Description))
		}
		if item.Selected {
			b.WriteString(d.styles.Muted.Render(" (current)"))
		}
		if i < len(items)-1 {
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(d.styles.Muted.Render("type to filter · ↑/↓ navigate · enter select · esc cancel"))

	return borderStyle.Render(b.String())
}
