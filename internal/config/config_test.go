package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "PLANBRIDGE_WORKSPACE", "PLANBRIDGE_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected defaults to be written: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log_level=info, got %s", cfg.LogLevel)
	}
	if cfg.Panel.CancelOnClear {
		t.Error("expected cancel_on_clear to default to false")
	}
	if cfg.Index.RescanSchedule != "@every 1m" {
		t.Errorf("expected default rescan schedule, got %q", cfg.Index.RescanSchedule)
	}
	if len(cfg.Models) == 0 {
		t.Error("expected default model options")
	}
	if cfg.Generation.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Generation.MaxAttempts)
	}
	if cfg.Telemetry.Path != filepath.Join(cfg.DataDir, "telemetry.jsonl") {
		t.Errorf("expected telemetry path under data dir, got %s", cfg.Telemetry.Path)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1")
	t.Setenv("PLANBRIDGE_WORKSPACE", "/work")
	t.Setenv("PLANBRIDGE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("expected api key from env, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("expected base url from env, got %s", cfg.LLM.BaseURL)
	}
	if cfg.Workspace != "/work" {
		t.Errorf("expected workspace from env, got %s", cfg.Workspace)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level from env, got %s", cfg.LogLevel)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	original := &Config{
		DataDir:   "/tmp/test-data",
		LogLevel:  "debug",
		Workspace: "/src/project",
	}
	original.LLM.Provider = "openai"
	original.LLM.APIKey = "sk-test-round-trip"
	original.LLM.Model = "gpt-4o"
	original.LLM.Temperature = 0.5
	original.Models = []ModelOption{{Provider: "openai", Model: "gpt-4o"}, {Provider: "local", Model: "llama3", BaseURL: "http://localhost:11434/v1"}}
	original.Index.MaxEntries = 100
	original.Panel.CancelOnClear = true
	original.Telemetry.Path = "/tmp/telemetry.jsonl"

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir mismatch: %v != %v", loaded.DataDir, original.DataDir)
	}
	if loaded.Workspace != original.Workspace {
		t.Errorf("Workspace mismatch: %v != %v", loaded.Workspace, original.Workspace)
	}
	if loaded.LLM.APIKey != original.LLM.APIKey {
		t.Errorf("LLM.APIKey mismatch: %v != %v", loaded.LLM.APIKey, original.LLM.APIKey)
	}
	if loaded.LLM.Temperature != original.LLM.Temperature {
		t.Errorf("LLM.Temperature mismatch: %v != %v", loaded.LLM.Temperature, original.LLM.Temperature)
	}
	if len(loaded.Models) != 2 || loaded.Models[1].BaseURL != "http://localhost:11434/v1" {
		t.Errorf("Models mismatch: %+v", loaded.Models)
	}
	if loaded.Index.MaxEntries != 100 {
		t.Errorf("Index.MaxEntries mismatch: %v", loaded.Index.MaxEntries)
	}
	if !loaded.Panel.CancelOnClear {
		t.Error("Panel.CancelOnClear should survive the round trip")
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	if err := Save(path, &Config{LogLevel: "info"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.json")
	if err := Save(path, &Config{LogLevel: "warn"}); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}

func TestActive(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"

	got := cfg.Active().APIConfiguration()
	if got.Provider != "openai" || got.Model != "gpt-4o" || got.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("unexpected active configuration %+v", got)
	}
}

func TestToMap(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/test", LogLevel: "debug"}
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.MaxTokens = 2000

	m, err := ToMap(cfg)
	if err != nil {
		t.Fatalf("ToMap failed: %v", err)
	}
	if m["data_dir"] != "/tmp/test" {
		t.Errorf("expected data_dir=/tmp/test, got %v", m["data_dir"])
	}
	llm, ok := m["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", m["llm"])
	}
	if llm["model"] != "gpt-4o" {
		t.Errorf("expected llm.model=gpt-4o, got %v", llm["model"])
	}
	// JSON numbers are float64
	if llm["max_tokens"] != float64(2000) {
		t.Errorf("expected llm.max_tokens=2000, got %v", llm["max_tokens"])
	}
}

func TestListValues(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Panel.CancelOnClear = true

	plain, err := ListValues(cfg, false)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if plain["llm.api_key"] != "sk-secret-key-1234" {
		t.Errorf("expected unmasked llm.api_key, got %v", plain["llm.api_key"])
	}
	if plain["panel.cancel_on_clear"] != true {
		t.Errorf("expected panel.cancel_on_clear=true, got %v", plain["panel.cancel_on_clear"])
	}

	masked, err := ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if masked["llm.api_key"] != "***1234" {
		t.Errorf("expected masked llm.api_key=***1234, got %v", masked["llm.api_key"])
	}
	if masked["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", masked["log_level"])
	}
}

func TestGetValue_ExistingKey(t *testing.T) {
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "debug"}
	cfg.LLM.Model = "gpt-4o"
	cfg.Generation.MaxConcurrent = 8
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "llm.model")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "gpt-4o" {
		t.Errorf("expected llm.model=gpt-4o, got %v", v)
	}

	v, err = GetValue(path, "generation.max_concurrent")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != float64(8) {
		t.Errorf("expected generation.max_concurrent=8, got %v (%T)", v, v)
	}
}

func TestGetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, &Config{LogLevel: "info"})

	_, err := GetValue(path, "nonexistent.key")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	expected := "unknown config key: nonexistent.key"
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestGetValue_NonexistentFile(t *testing.T) {
	path := tempConfigPath(t)

	// Load creates the file with defaults.
	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue on new config failed: %v", err)
	}
	if v != "info" {
		t.Errorf("expected default log_level=info, got %v", v)
	}
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  any
	}{
		{name: "string", key: "log_level", value: "debug", want: "debug"},
		{name: "nested string", key: "llm.model", value: "gpt-4o", want: "gpt-4o"},
		{name: "number", key: "index.max_entries", value: "250", want: float64(250)},
		{name: "float", key: "llm.temperature", value: "0.3", want: 0.3},
		{name: "boolean", key: "panel.cancel_on_clear", value: "true", want: true},
		{name: "new key", key: "custom.setting", value: "value", want: "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tempConfigPath(t)
			cfg := &Config{LogLevel: "info"}
			cfg.LLM.Provider = "openai"
			writeTestConfig(t, path, cfg)

			if err := SetValue(path, tt.key, tt.value); err != nil {
				t.Fatalf("SetValue failed: %v", err)
			}
			v, err := GetValue(path, tt.key)
			if err != nil {
				t.Fatalf("GetValue failed: %v", err)
			}
			if v != tt.want {
				t.Errorf("expected %s=%v, got %v (%T)", tt.key, tt.want, v, v)
			}

			v, err = GetValue(path, "llm.provider")
			if err != nil {
				t.Fatalf("GetValue failed: %v", err)
			}
			if v != "openai" {
				t.Errorf("expected llm.provider=openai (preserved), got %v", v)
			}
		})
	}
}

func TestSetValue_ModelsList(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	writeTestConfig(t, path, &Config{LogLevel: "info"})

	if err := SetValue(path, "models", `[{"provider":"openai","model":"o3"}]`); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Models) != 1 || cfg.Models[0].Model != "o3" {
		t.Errorf("expected single o3 option, got %+v", cfg.Models)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}
