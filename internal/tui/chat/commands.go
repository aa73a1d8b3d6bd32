package chat

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"github.com/samsaffron/relaychat/internal/session"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "new",
			Aliases:     []string{"n"},
			Description: "Start a new conversation",
			Usage:       "/new",
		},
		{
			Name:        "model",
			Aliases:     []string{"m"},
			Description: "Switch model (picker, or fuzzy match a name)",
			Usage:       "/model [name]",
		},
		{
			Name:        "chats",
			Aliases:     []string{"ls", "c"},
			Description: "Switch conversation (picker, or by list number)",
			Usage:       "/chats [number]",
		},
		{
			Name:        "export",
			Description: "Export the conversation as markdown",
			Usage:       "/export [path]",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit chat",
			Usage:       "/quit",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// FilterCommands returns commands matching the query using fuzzy search
func FilterCommands(query string) []Command {
	commands := AllCommands()
	if query == "" {
		return commands
	}

	query = strings.TrimPrefix(query, "/")

	// First check for exact alias matches
	queryLower := strings.ToLower(query)
	for _, cmd := range commands {
		if cmd.Name == queryLower {
			return []Command{cmd}
		}
		for _, alias := range cmd.Aliases {
			if alias == queryLower {
				return []Command{cmd}
			}
		}
	}

	matches := fuzzy.FindFrom(query, CommandSource(commands))
	var result []Command
	for _, match := range matches {
		result = append(result, commands[match.Index])
	}
	return result
}

func lookupCommand(name string) (*Command, []Command) {
	for _, c := range AllCommands() {
		if c.Name == name {
			return &c, nil
		}
		for _, alias := range c.Aliases {
			if alias == name {
				return &c, nil
			}
		}
	}

	var prefixMatches []Command
	for _, c := range AllCommands() {
		if strings.HasPrefix(c.Name, name) {
			prefixMatches = append(prefixMatches, c)
		}
	}
	if len(prefixMatches) == 1 {
		return &prefixMatches[0], nil
	}
	return nil, prefixMatches
}

// ExecuteCommand handles slash command execution
func (m *Model) ExecuteCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	m.textarea.Reset()

	cmdName := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, candidates := lookupCommand(cmdName)
	if cmd == nil {
		if len(candidates) > 1 {
			var names []string
			for _, c := range candidates {
				names = append(names, "/"+c.Name)
			}
			return m.showSystemMessage(fmt.Sprintf("Ambiguous command: /%s\nDid you mean: %s?", cmdName, strings.Join(names, ", ")))
		}
		return m.showSystemMessage(fmt.Sprintf("Unknown command: /%s\nType /help for available commands.", cmdName))
	}

	switch cmd.Name {
	case "help":
		return m.cmdHelp()
	case "new":
		return m.cmdNew()
	case "model":
		return m.cmdModel(args)
	case "chats":
		return m.cmdChats(args)
	case "export":
		return m.cmdExport(args)
	case "quit":
		return m.cmdQuit()
	default:
		return m.showSystemMessage(fmt.Sprintf("Command /%s is not yet implemented.", cmd.Name))
	}
}

// Command implementations

func (m *Model) showSystemMessage(content string) (tea.Model, tea.Cmd) {
	return m, tea.Println(m.renderMarkdown(content) + "\n")
}

func (m *Model) cmdHelp() (tea.Model, tea.Cmd) {
	var b strings.Builder
	b.WriteString("## Available Commands\n\n")

	for _, cmd := range AllCommands() {
		b.WriteString(fmt.Sprintf("**%s**", cmd.Usage))
		if len(cmd.Aliases) > 0 {
			b.WriteString(fmt.Sprintf(" (aliases: %s)", strings.Join(cmd.Aliases, ", ")))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %s\n\n", cmd.Description))
	}

	b.WriteString("## Keyboard Shortcuts\n\n")
	b.WriteString("- `Enter` - Send message\n")
	b.WriteString("- `Ctrl+J` or `Alt+Enter` - Insert newline\n")
	b.WriteString("- `Ctrl+L` - Switch model\n")
	b.WriteString("- `Ctrl+O` - Switch conversation\n")
	b.WriteString("- `Ctrl+N` - New conversation\n")
	b.WriteString("- `Esc` - Cancel the running response\n")
	b.WriteString("- `Ctrl+C` - Quit\n")

	return m.showSystemMessage(b.String())
}

func (m *Model) cmdQuit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.cancelSubmit != nil {
		m.cancelSubmit()
	}
	return m, tea.Quit
}

func (m *Model) cmdNew() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m.showSystemMessage("Wait for the current response to finish.")
	}
	if _, err := m.session.NewConversation(m.ctx); err != nil {
		return m.showSystemMessage("Could not save the new conversation: " + err.Error())
	}
	return m, m.printConversation()
}

func (m *Model) cmdModel(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.dialog.ShowModelPicker(m.session.SelectedModel(), m.catalog.All())
		return m, nil
	}

	matches := m.catalog.Find(strings.Join(args, " "))
	if len(matches) == 0 {
		return m.showSystemMessage(fmt.Sprintf("No model matches %q. Try /model to pick one.", strings.Join(args, " ")))
	}
	return m.switchModel(matches[0].ID)
}

func (m *Model) switchModel(id string) (tea.Model, tea.Cmd) {
	if err := m.session.SelectModel(id); err != nil {
		return m.showSystemMessage(err.Error())
	}
	return m, tea.Println(m.styles.Muted.Render("Model: " + m.catalog.Lookup(id).Name))
}

func (m *Model) cmdChats(args []string) (tea.Model, tea.Cmd) {
	list := m.session.Conversations()
	if len(list) == 0 {
		return m.showSystemMessage("No conversations yet.")
	}
	if len(args) == 0 {
		active, _ := m.session.Active()
		m.dialog.ShowConversationList(list, active.ID)
		return m, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(list) {
		return m.showSystemMessage(fmt.Sprintf("Pick a number between 1 and %d.", len(list)))
	}
	return m.switchConversation(list[n-1].ID)
}

func (m *Model) switchConversation(id string) (tea.Model, tea.Cmd) {
	if m.submitting {
		return m.showSystemMessage("Wait for the current response to finish.")
	}
	if err := m.session.Select(id); err != nil {
		return m.showSystemMessage(err.Error())
	}
	return m, m.printConversation()
}

func (m *Model) cmdExport(args []string) (tea.Model, tea.Cmd) {
	conv, ok := m.session.Active()
	if !ok {
		return m.showSystemMessage("No active conversation.")
	}
	path := session.ShortID(conv.ID) + ".md"
	if len(args) > 0 {
		path = args[0]
	}
	content := session.ExportToMarkdown(conv, session.ExportOptions{ModelName: m.catalog.Lookup(conv.Model).Name})
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return m.showSystemMessage("Export failed: " + err.Error())
	}
	return m, tea.Println(m.styles.FormatResult(true, "Exported to "+path))
}
