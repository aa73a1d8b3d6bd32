package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/exitcode"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	convListJSON bool
	convFormat   string
	convOutput   string
	convYes      bool
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convs", "history"},
	Short:   "Manage stored conversations",
	Long: `List, show, export and delete stored conversations.

A conversation is named by its id, an id prefix, or its 1-based position in
"conversations list" (most recent first).

Examples:
  relaychat conversations list
  relaychat conversations show 1
  relaychat conversations export 3f2b9c1e --format html -o chat.html
  relaychat conversations delete 2`,
}

var convListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runConvList,
}

var convShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a conversation; without an id, pick one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConvShow,
}

var convExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a conversation as markdown or HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvExport,
}

var convDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvDelete,
}

func init() {
	convListCmd.Flags().BoolVar(&convListJSON, "json", false, "Output as JSON")
	convExportCmd.Flags().StringVar(&convFormat, "format", "md", "Export format: md or html")
	convExportCmd.Flags().StringVarP(&convOutput, "output", "o", "", "Write to a file instead of stdout")
	convDeleteCmd.Flags().BoolVarP(&convYes, "yes", "y", false, "Do not ask for confirmation")
	conversationsCmd.AddCommand(convListCmd, convShowCmd, convExportCmd, convDeleteCmd)
	rootCmd.AddCommand(conversationsCmd)
}

func loadConversations(ctx context.Context) (*session.Store, session.List, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	list, err := store.Load(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, list, nil
}

// findConversation resolves ref as a list position, a full id or a unique id prefix.
func findConversation(list session.List, ref string) (session.Conversation, error) {
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(list) {
		return list[n-1], nil
	}
	if i := list.Index(ref); i >= 0 {
		return list[i], nil
	}
	var matches []session.Conversation
	for _, c := range list {
		if strings.HasPrefix(c.ID, ref) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return session.Conversation{}, exitcode.BadUsage(fmt.Sprintf("no conversation matches %q", ref))
	default:
		return session.Conversation{}, exitcode.BadUsage(fmt.Sprintf("%q matches %d conversations", ref, len(matches)))
	}
}

func runConvList(cmd *cobra.Command, args []string) error {
	store, list, err := loadConversations(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return printConversations(cmd.OutOrStdout(), list, convListJSON)
}

func printConversations(w io.Writer, list session.List, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return nil
	}
	for i, c := range list {
		fmt.Fprintf(w, "%3d  %s  %-48s  %3d msgs  %s  %s\n",
			i+1, session.ShortID(c.ID), ui.Truncate(c.Title, 48), len(c.Messages),
			c.Model, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// pickConversation resolves args[0], or asks interactively when no id was given.
func pickConversation(list session.List, args []string) (session.Conversation, error) {
	if len(args) == 1 {
		return findConversation(list, args[0])
	}
	if len(list) == 0 {
		return session.Conversation{}, exitcode.BadUsage("no conversations yet")
	}
	if !isTerminal(os.Stdin) {
		return session.Conversation{}, exitcode.BadUsage("a conversation id is required when stdin is not a terminal")
	}
	id, err := ui.SelectConversation(list, list[0].ID)
	if err != nil {
		return session.Conversation{}, err
	}
	return findConversation(list, id)
}

func runConvShow(cmd *cobra.Command, args []string) error {
	store, list, err := loadConversations(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := pickConversation(list, args)
	if err != nil {
		return err
	}
	md := session.ExportToMarkdown(conv, exportOptions(conv))
	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		md = ui.RenderMarkdown(md, 0)
	}
	_, err = fmt.Fprintln(out, md)
	return err
}

func exportOptions(conv session.Conversation) session.ExportOptions {
	return session.ExportOptions{ModelName: newCatalog(cfg).Lookup(conv.Model).Name}
}

func runConvExport(cmd *cobra.Command, args []string) error {
	store, list, err := loadConversations(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := findConversation(list, args[0])
	if err != nil {
		return err
	}

	var doc string
	switch strings.ToLower(convFormat) {
	case "md", "markdown":
		doc = session.ExportToMarkdown(conv, exportOptions(conv))
	case "html":
		doc, err = session.ExportToHTML(conv, exportOptions(conv))
		if err != nil {
			return err
		}
	default:
		return exitcode.BadUsage(fmt.Sprintf("unknown export format %q (want md or html)", convFormat))
	}

	if convOutput == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), doc)
		return err
	}
	if err := os.WriteFile(convOutput, []byte(doc), 0o644); err != nil {
		return errors.Wrap(err, "write export")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.DefaultStyles().FormatResult(true, "exported to "+convOutput))
	return nil
}

func runConvDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, list, err := loadConversations(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := findConversation(list, args[0])
	if err != nil {
		return err
	}

	if !convYes && isTerminal(os.Stdin) {
		ok, err := ui.Confirm(fmt.Sprintf("Delete %q (%d messages)?", conv.Title, len(conv.Messages)))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	list, _ = list.Remove(conv.ID)
	if err := store.Save(ctx, list); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, "deleted "+session.ShortID(conv.ID)))
	return nil
}
