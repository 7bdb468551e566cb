package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all chatpanel configuration.
type Config struct {
	// Chat service the panel talks to
	Service ServiceConfig `yaml:"service"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServiceConfig configures the remote chat/query service.
type ServiceConfig struct {
	Endpoint     string `yaml:"endpoint"`
	ModelName    string `yaml:"model_name"`
	SystemPrompt string `yaml:"system_prompt"`
	Timeout      string `yaml:"timeout"` // empty or "0" = no timeout
}

// UIConfig configures the interactive panel.
type UIConfig struct {
	Theme       string `yaml:"theme"`        // auto, light, dark
	TableHeight int    `yaml:"table_height"` // max visible result rows
}

const (
	DefaultEndpoint     = "http://127.0.0.1:8000/chat"
	DefaultModelName    = "llama3-70b-8192"
	DefaultSystemPrompt = "Your expert SQL agent"
	DefaultTableHeight  = 10
)

// KnownModels lists the model names the SQL agent service accepts.
var KnownModels = []string{"llama3-70b-8192", "mixtral-8x7b-32768"}

// ValidThemes lists the accepted ui.theme values.
var ValidThemes = []string{"auto", "light", "dark"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Endpoint:     DefaultEndpoint,
			ModelName:    DefaultModelName,
			SystemPrompt: DefaultSystemPrompt,
		},

		UI: UIConfig{
			Theme:       "auto",
			TableHeight: DefaultTableHeight,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns .chatpanel/config.yaml under the working directory.
func DefaultConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".chatpanel", "config.yaml")
	}
	return filepath.Join(cwd, ".chatpanel", "config.yaml")
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHATPANEL_ENDPOINT"); v != "" {
		c.Service.Endpoint = v
	}
	if v := os.Getenv("CHATPANEL_MODEL"); v != "" {
		c.Service.ModelName = v
	}
	if v := os.Getenv("CHATPANEL_SYSTEM_PROMPT"); v != "" {
		c.Service.SystemPrompt = v
	}
	if v := os.Getenv("CHATPANEL_TIMEOUT"); v != "" {
		c.Service.Timeout = v
	}
	if v := os.Getenv("CHATPANEL_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("CHATPANEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetTimeout returns the request timeout. Zero means the request may wait forever.
func (c *Config) GetTimeout() time.Duration {
	if c.Service.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Service.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetTableHeight returns the visible result row count, falling back to the default.
func (c *Config) GetTableHeight() int {
	if c.UI.TableHeight <= 0 {
		return DefaultTableHeight
	}
	return c.UI.TableHeight
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Endpoint == "" {
		return fmt.Errorf("service endpoint not configured (set service.endpoint or CHATPANEL_ENDPOINT)")
	}
	u, err := url.Parse(c.Service.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid service endpoint %q: want an absolute http(s) URL", c.Service.Endpoint)
	}
	if c.Service.ModelName == "" {
		return fmt.Errorf("model name not configured (set service.model_name or CHATPANEL_MODEL)")
	}
	if c.Service.Timeout != "" {
		d, err := time.ParseDuration(c.Service.Timeout)
		if err != nil {
			return fmt.Errorf("invalid service timeout %q: %w", c.Service.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid service timeout %q: must not be negative", c.Service.Timeout)
		}
	}
	if c.UI.Theme != "" && !slices.Contains(ValidThemes, c.UI.Theme) {
		return fmt.Errorf("invalid ui theme: %s (valid: %v)", c.UI.Theme, ValidThemes)
	}
	return nil
}

// Warnings reports settings that are accepted but probably wrong.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Service.ModelName != "" && !slices.Contains(KnownModels, c.Service.ModelName) {
		warnings = append(warnings, fmt.Sprintf("model %q is not one the service is known to accept (%v)", c.Service.ModelName, KnownModels))
	}
	if c.Service.SystemPrompt == "" {
		warnings = append(warnings, "system prompt is empty")
	}
	return warnings
}
