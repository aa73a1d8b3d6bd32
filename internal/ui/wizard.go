package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/samsaffron/relaychat/internal/config"
)

// providerOption represents a provider choice in the setup wizard
type providerOption struct {
	name      string
	value     string
	available bool
	hint      string // Shows how to enable if not available
}

// detectAvailableProviders checks which providers have credentials configured
func detectAvailableProviders() []providerOption {
	options := []providerOption{
		{name: "Groq", value: config.ProviderGroq},
		{name: "OpenAI", value: config.ProviderOpenAI},
		{name: "Anthropic", value: config.ProviderAnthropic},
		{name: "Gemini", value: config.ProviderGemini},
	}
	for i := range options {
		env := config.APIKeyEnv(options[i].value)
		options[i].available = os.Getenv(env) != ""
		options[i].hint = "set " + env
	}
	return append(options, providerOption{
		name:      "Mock - echoes input, no key required",
		value:     config.ProviderMock,
		available: true,
	})
}

// providerOptions lists available providers first.
func providerOptions(providers []providerOption) []huh.Option[string] {
	var available, unavailable []huh.Option[string]
	for _, p := range providers {
		if p.available {
			available = append(available, huh.NewOption(p.name+" ✓", p.value))
		} else {
			unavailable = append(unavailable, huh.NewOption(p.name+" ("+p.hint+")", p.value))
		}
	}
	return append(available, unavailable...)
}

// RunSetupWizard asks for the upstream provider and relay address and returns
// the resulting config. API keys are stored as ${ENV} references, never literally.
func RunSetupWizard() (*config.Config, error) {
	var out io.Writer = os.Stderr
	if tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0); err == nil {
		defer tty.Close()
		out = tty
	}
	fmt.Fprint(out, "Welcome to relaychat! Let's get you set up.\n\n")

	cfg := config.Default()
	provider := config.ProviderGroq
	relayURL := cfg.Client.RelayURL

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which upstream should the relay use?").
				Options(providerOptions(detectAvailableProviders())...).
				Value(&provider),
			huh.NewInput().
				Title("Relay URL for chat clients").
				Value(&relayURL),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg.Upstream.Provider = provider
	if provider != config.ProviderMock {
		cfg.Upstream.APIKey = "${" + config.APIKeyEnv(provider) + "}"
	}
	cfg.Client.RelayURL = relayURL
	return cfg, nil
}
