package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	configDirName = "gh-scriptai"
	defaultConfig = ".config"
)

// Provider names accepted in the configuration.
const (
	ProviderOllama  = "ollama"
	ProviderChiven  = "chiven"
	ProviderCopilot = "copilot"
)

var configFiles = []string{
	"config.yaml",
	"config.yml",
}

// Config represents the structure of the configuration file used by the application.
// It is passed by value into every provider and session; nothing reads it globally.
type Config struct {
	Provider    string                  `yaml:"provider" default:"ollama"`
	Model       string                  `yaml:"model" default:"deepseek-r1:1.5b"`
	Endpoint    string                  `yaml:"endpoint"`
	Token       string                  `yaml:"token"`
	Key         string                  `yaml:"key"`
	Temperature float64                 `yaml:"temperature" default:"1"`
	Timeout     time.Duration           `yaml:"timeout" default:"60s"`
	LogLevel    string                  `yaml:"log_level" default:"warn"`
	Render      RenderConfig            `yaml:"render"`
	Prompts     map[string]PromptConfig `yaml:"prompts"`
}

// RenderConfig controls terminal output.
type RenderConfig struct {
	Format    string `yaml:"format" default:"markdown"`
	Wrap      int    `yaml:"wrap" default:"120"`
	Theme     string `yaml:"theme" default:"auto"`
	ShowThink bool   `yaml:"show_think" default:"true"`
}

// PromptConfig is a predefined prompt exposed as a subcommand.
type PromptConfig struct {
	Prompt string `yaml:"prompt"`
	Model  string `yaml:"model"`
}

// configResult is a struct used to return the configuration and any error that occurs during loading.
type configResult struct {
	config *Config
	err    error
}

// NewDefaultConfig creates a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// defaults are static struct tags; failing here is a programming error
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	cfg.Prompts = map[string]PromptConfig{}
	return cfg
}

// Validate reports configuration values the CLI cannot work with.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderChiven, ProviderCopilot:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Render.Format {
	case "markdown", "plain":
	default:
		return fmt.Errorf("unknown render format %q", c.Render.Format)
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return nil
}

// applyEnv overrides connection settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SCRIPTAI_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("SCRIPTAI_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("SCRIPTAI_MODEL"); v != "" {
		c.Model = v
	}
}

// getConfigPath retrieves the path to the configuration directory based on the XDG_CONFIG_HOME environment variable.
func getConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(home, defaultConfig)
	}

	return filepath.Join(configHome, configDirName), nil
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = map[string]PromptConfig{}
	}
	return cfg, nil
}

// tryLoadConfig attempts to load a configuration file from the specified path.
func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadConfig loads the configuration from the user's home directory, with a timeout.
func LoadConfig(ctx context.Context) (*Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := make(chan configResult, 1)

	go func() {
		cfg, err := loadConfigFiles(ctx)
		result <- configResult{config: cfg, err: err}
	}()

	done := ctx.Done()
	select {
	case <-done:
		return nil, ctx.Err()
	case r := <-result:
		if r.err != nil {
			return nil, r.err
		}
		r.config.applyEnv()
		if err := r.config.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return r.config, nil
	}
}

// loadConfigFiles loads configuration files from the user's home directory.
func loadConfigFiles(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before loading config: %w", err)
	}

	configDir, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Return default config early if directory doesn't exist
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return NewDefaultConfig(), nil
	}

	for _, filename := range configFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg, err := tryLoadConfig(filepath.Join(configDir, filename))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	return NewDefaultConfig(), nil
}
