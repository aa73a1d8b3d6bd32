package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/session"
)

var (
	nameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")) // bright green
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))             // grey
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
)

// formatModel renders a model row: name, developer and context window.
func formatModel(m catalog.ModelDescriptor) string {
	label := nameStyle.Render(m.Name) + detailStyle.Render(fmt.Sprintf("  %s · %s ctx", m.Developer, llm.FormatTokenCount(m.ContextWindow)))
	if m.Type == catalog.TypePreview {
		label += previewStyle.Render("  preview")
	}
	return label
}

func modelOptions(models []catalog.ModelDescriptor) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(models))
	for _, m := range models {
		options = append(options, huh.NewOption(formatModel(m), m.ID))
	}
	return options
}

// SelectModel asks the user to pick a model, starting on current.
func SelectModel(models []catalog.ModelDescriptor, current string) (string, error) {
	selected := current

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a model").
				Options(modelOptions(models)...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

func conversationOptions(list session.List) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(list))
	for _, c := range list {
		label := nameStyle.Render(Truncate(c.Title, 48)) +
			detailStyle.Render(fmt.Sprintf("  %d msgs · %s", len(c.Messages), c.UpdatedAt.Local().Format("Jan 2 15:04")))
		options = append(options, huh.NewOption(label, c.ID))
	}
	return options
}

// SelectConversation asks the user to pick a stored conversation.
func SelectConversation(list session.List, current string) (string, error) {
	selected := current

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a conversation").
				Options(conversationOptions(list)...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return "", err
	}
	return selected, nil
}

// Confirm asks a yes/no question.
func Confirm(question string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
