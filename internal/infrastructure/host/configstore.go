package host

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ConfigNamespaces holds per-extension configuration. Each config/*.json
// file under an extension root becomes a namespace keyed by
// "<id>.<filename>".
type ConfigNamespaces struct {
	mu     sync.RWMutex
	values map[string]map[string]any
}

// NewConfigNamespaces creates an empty config store.
func NewConfigNamespaces() *ConfigNamespaces {
	return &ConfigNamespaces{values: make(map[string]map[string]any)}
}

// RegisterDir loads every *.json file in configDir under the extension id.
// Re-registering an id replaces all of its namespaces.
func (c *ConfigNamespaces) RegisterDir(id, configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		return fmt.Errorf("failed to read config dir %s: %w", configDir, err)
	}

	loaded := make(map[string]map[string]any)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(configDir, name))
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", name, err)
		}
		var values map[string]any
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", name, err)
		}
		namespace := id + "." + strings.TrimSuffix(name, ".json")
		loaded[namespace] = values
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for namespace := range c.values {
		if strings.HasPrefix(namespace, id+".") {
			delete(c.values, namespace)
		}
	}
	for namespace, values := range loaded {
		c.values[namespace] = values
	}
	return nil
}

// UnregisterID drops every namespace belonging to the extension id.
func (c *ConfigNamespaces) UnregisterID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for namespace := range c.values {
		if strings.HasPrefix(namespace, id+".") {
			delete(c.values, namespace)
		}
	}
}

// Get resolves "id.file.key" to a config value.
func (c *ConfigNamespaces) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for namespace, values := range c.values {
		if strings.HasPrefix(key, namespace+".") {
			if value, ok := values[strings.TrimPrefix(key, namespace+".")]; ok {
				return value, true
			}
		}
	}
	return nil, false
}

// Clear drops all namespaces. Called when framework caches are flushed
// after an install.
func (c *ConfigNamespaces) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]map[string]any)
}
