package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/config"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/ui"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models [query]",
	Short: "List the models conversations can use",
	Long: `List the model catalog. The first entry is the default unless
upstream.default_model names another one.

An optional query fuzzy-matches model ids and names.

Examples:
  relaychat models
  relaychat models llama
  relaychat models --json
  relaychat models pick          # choose the default model interactively`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

var modelsPickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick the default model and save it to the config file",
	Args:  cobra.NoArgs,
	RunE:  runModelsPick,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	modelsCmd.AddCommand(modelsPickCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	cat := newCatalog(cfg)
	models := cat.All()
	if len(args) == 1 {
		models = cat.Find(args[0])
	}
	return printModels(cmd.OutOrStdout(), models, cfg.Upstream.DefaultModel, modelsJSON)
}

func printModels(w io.Writer, models []catalog.ModelDescriptor, defaultModel string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Fprintln(w, "No models found.")
		return nil
	}

	for _, m := range models {
		marker := "  "
		if m.ID == defaultModel {
			marker = "* "
		}
		fmt.Fprintf(w, "%s%-32s %s\n", marker, m.ID, m.Name)
		detail := fmt.Sprintf("%s, %s context", m.Developer, llm.FormatTokenCount(m.ContextWindow))
		if m.Type == catalog.TypePreview {
			detail += ", preview"
		}
		fmt.Fprintf(w, "    %s\n", detail)
	}
	fmt.Fprintln(w, "\n* marks upstream.default_model")
	return nil
}

func runModelsPick(cmd *cobra.Command, args []string) error {
	cat := newCatalog(cfg)
	selected, err := ui.SelectModel(cat.All(), cfg.Upstream.DefaultModel)
	if err != nil {
		return err
	}
	cfg.Upstream.DefaultModel = selected
	if err := config.Save(cfg, configPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.DefaultStyles().FormatResult(true, "default model set to "+selected))
	return nil
}
