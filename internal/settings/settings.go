// Package settings holds the active model configuration of the panel.
package settings

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/user/planbridge/internal/config"
	"github.com/user/planbridge/internal/types"
)

// Store keeps the active configuration and the selectable options. A
// persist hook, when set, runs on every SetActive.
type Store struct {
	mu      sync.RWMutex
	active  types.APIConfiguration
	models  []types.APIConfiguration
	persist func(types.APIConfiguration) error
}

var _ types.SettingsStore = (*Store)(nil)

// New creates an in-memory store. The active configuration is added to the
// options when missing.
func New(active types.APIConfiguration, models []types.APIConfiguration) *Store {
	s := &Store{active: active}
	s.models = append(s.models, models...)
	if indexOf(s.models, active.Model) < 0 && active.Model != "" {
		s.models = append([]types.APIConfiguration{active}, s.models...)
	}
	return s
}

// FromConfig builds a store from cfg that writes selections back to the
// config file at path.
func FromConfig(path string, cfg *config.Config) *Store {
	models := make([]types.APIConfiguration, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		models = append(models, m.APIConfiguration())
	}
	s := New(cfg.Active().APIConfiguration(), models)
	s.persist = func(c types.APIConfiguration) error {
		return persistActive(path, c)
	}
	return s
}

func persistActive(path string, c types.APIConfiguration) error {
	values := map[string]string{
		"llm.provider": c.Provider,
		"llm.model":    c.Model,
	}
	if c.BaseURL != "" {
		values["llm.base_url"] = c.BaseURL
	}
	for key, v := range values {
		quoted, _ := json.Marshal(v)
		if err := config.SetValue(path, key, string(quoted)); err != nil {
			return fmt.Errorf("persist %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) Active() types.APIConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) Models() []types.APIConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.APIConfiguration(nil), s.models...)
}

// Lookup returns the option for model.
func (s *Store) Lookup(model string) (types.APIConfiguration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := indexOf(s.models, model)
	if i < 0 {
		return types.APIConfiguration{}, false
	}
	return s.models[i], true
}

func (s *Store) SetActive(c types.APIConfiguration) error {
	s.mu.Lock()
	s.active = c
	if indexOf(s.models, c.Model) < 0 {
		s.models = append(s.models, c)
	}
	persist := s.persist
	s.mu.Unlock()

	if persist != nil {
		return persist(c)
	}
	return nil
}

func indexOf(models []types.APIConfiguration, model string) int {
	for i, m := range models {
		if m.Model == model {
			return i
		}
	}
	return -1
}
