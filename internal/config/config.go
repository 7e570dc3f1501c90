package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/planbridge/internal/types"
)

// ModelOption is one entry of the panel's model selector.
type ModelOption struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"`
}

// APIConfiguration converts the option to its wire form.
func (m ModelOption) APIConfiguration() types.APIConfiguration {
	return types.APIConfiguration{Provider: m.Provider, Model: m.Model, BaseURL: m.BaseURL}
}

type Config struct {
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	Workspace string `json:"workspace"`
	LLM       struct {
		Provider         string  `json:"provider"`
		BaseURL          string  `json:"base_url"`
		APIKey           string  `json:"api_key"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
	} `json:"llm"`
	Models []ModelOption `json:"models"`
	HTTP   struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Index struct {
		MaxEntries     int    `json:"max_entries"`
		RescanSchedule string `json:"rescan_schedule"`
		Watch          bool   `json:"watch"`
	} `json:"index"`
	Telemetry struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"telemetry"`
	Generation struct {
		MaxConcurrent int `json:"max_concurrent"`
		MaxAttempts   int `json:"max_attempts"`
	} `json:"generation"`
	Panel struct {
		CancelOnClear bool `json:"cancel_on_clear"`
	} `json:"panel"`
}

// Active returns the configured model as a selector option.
func (c *Config) Active() ModelOption {
	return ModelOption{Provider: c.LLM.Provider, Model: c.LLM.Model, BaseURL: c.LLM.BaseURL}
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	cfg := &Config{
		DataDir:  filepath.Join(home, ".planbridge"),
		LogLevel: "info",
	}
	cfg.LLM.Provider = "openai"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 4000
	cfg.LLM.Temperature = 0.2
	cfg.LLM.MaxContextTokens = 128000
	cfg.Models = []ModelOption{
		{Provider: "openai", Model: "gpt-4o-mini"},
		{Provider: "openai", Model: "gpt-4o"},
	}
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:7420"
	cfg.Index.MaxEntries = 5000
	cfg.Index.RescanSchedule = "@every 1m"
	cfg.Index.Watch = true
	cfg.Telemetry.Enabled = true
	cfg.Generation.MaxConcurrent = 1
	cfg.Generation.MaxAttempts = 3
	return cfg
}

// Load reads the config at path. A missing file is created with defaults.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if ws := os.Getenv("PLANBRIDGE_WORKSPACE"); ws != "" {
		cfg.Workspace = ws
	}
	if level := os.Getenv("PLANBRIDGE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if cfg.Telemetry.Path == "" {
		cfg.Telemetry.Path = filepath.Join(cfg.DataDir, "telemetry.jsonl")
	}

	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a generic nested map via its JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns cfg as dot-separated keys, optionally masking secrets.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns the value stored in the file under a dot-separated key.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readFlat(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under key in an existing config file. Values that
// parse as JSON keep their type; anything else is stored as a string.
func SetValue(path, key, value string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	flat, err := readFlat(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func readFlat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return Flatten(m), nil
}
