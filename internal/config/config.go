package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "relaychat"

// Upstream provider names.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Client transports.
const (
	TransportHTTP  = "http"
	TransportWS    = "ws"
	TransportLocal = "local"
)

// Conversation store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
	StoreMemory = "memory"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream" yaml:"upstream"`
	Client   ClientConfig   `mapstructure:"client" yaml:"client"`
	Models   []ModelConfig  `mapstructure:"models" yaml:"models,omitempty"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerConfig controls the relay listener.
type ServerConfig struct {
	Addr    string        `mapstructure:"addr" yaml:"addr"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Token   string        `mapstructure:"token" yaml:"token,omitempty"`
}

// UpstreamConfig selects the completion service the relay forwards to.
type UpstreamConfig struct {
	Provider     string `mapstructure:"provider" yaml:"provider"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey       string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	DefaultModel string `mapstructure:"default_model" yaml:"default_model"`
}

// ClientConfig controls the chat client.
type ClientConfig struct {
	RelayURL  string `mapstructure:"relay_url" yaml:"relay_url"`
	Transport string `mapstructure:"transport" yaml:"transport"`
	Store     string `mapstructure:"store" yaml:"store"`
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
}

// ModelConfig overrides one entry of the model catalog.
type ModelConfig struct {
	ID            string `mapstructure:"id" yaml:"id"`
	Name          string `mapstructure:"name" yaml:"name"`
	Developer     string `mapstructure:"developer" yaml:"developer"`
	ContextWindow int    `mapstructure:"context_window" yaml:"context_window"`
	Type          string `mapstructure:"type" yaml:"type"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{
			Addr:    "127.0.0.1:8787",
			Timeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			Provider:     ProviderGroq,
			DefaultModel: "mixtral-8x7b-32768",
		},
		Client: ClientConfig{
			RelayURL:  "http://127.0.0.1:8787",
			Transport: TransportHTTP,
			Store:     StoreFile,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("server.token", "")
	v.SetDefault("upstream.provider", d.Upstream.Provider)
	v.SetDefault("upstream.base_url", "")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.default_model", d.Upstream.DefaultModel)
	v.SetDefault("client.relay_url", d.Client.RelayURL)
	v.SetDefault("client.transport", d.Client.Transport)
	v.SetDefault("client.store", d.Client.Store)
	v.SetDefault("client.data_dir", "")
}

// Load reads the config file (optional) and environment overrides.
// An empty path searches the user config dir and the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}

	setDefaults(v)
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && os.IsNotExist(err)) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	key, err := ResolveValue(cfg.Upstream.APIKey)
	if err != nil {
		return nil, errors.Wrap(err, "resolve upstream.api_key")
	}
	cfg.Upstream.APIKey = key
	if cfg.Upstream.APIKey == "" {
		cfg.Upstream.APIKey = os.Getenv(APIKeyEnv(cfg.Upstream.Provider))
	}

	if cfg.Client.DataDir == "" {
		dir, err := GetDataDir()
		if err != nil {
			return nil, err
		}
		cfg.Client.DataDir = dir
	}
	if cfg.Server.Timeout <= 0 {
		cfg.Server.Timeout = Default().Server.Timeout
	}

	return &cfg, nil
}

// APIKeyEnv names the environment variable consulted for a provider's key.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// GetConfigDir returns the directory holding config.yaml.
func GetConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get config dir")
	}
	return filepath.Join(configDir, appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// GetDataDir returns the XDG data directory for conversations and logs.
func GetDataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, appName), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to path, or the default location when path is empty.
// API keys are never written; use the environment or a ${VAR} reference instead.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	out := *cfg
	if out.Upstream.APIKey != "" && !IsReference(cfg.Upstream.APIKey) {
		out.Upstream.APIKey = ""
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return os.WriteFile(path, data, 0o600)
}
