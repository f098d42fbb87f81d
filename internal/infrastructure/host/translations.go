package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FallbackLocale is consulted when the requested locale carries no value.
const FallbackLocale = "en"

// Translator holds translation strings loaded from extension lang
// directories. Each resources/lang/<locale>.yml file is a flat or nested
// YAML map; keys are addressed as "id::dotted.key".
type Translator struct {
	mu sync.RWMutex
	// namespace -> locale -> flattened key -> value
	tables map[string]map[string]map[string]string
}

// NewTranslator creates an empty translator.
func NewTranslator() *Translator {
	return &Translator{tables: make(map[string]map[string]map[string]string)}
}

// RegisterNamespace loads every <locale>.yml under langDir into the
// namespace, replacing any previous registration for the id.
func (t *Translator) RegisterNamespace(id, langDir string) error {
	entries, err := os.ReadDir(langDir)
	if err != nil {
		return fmt.Errorf("failed to read lang dir %s: %w", langDir, err)
	}

	locales := make(map[string]map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml")) {
			continue
		}
		locale := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")

		data, err := os.ReadFile(filepath.Join(langDir, name))
		if err != nil {
			return fmt.Errorf("failed to read lang file %s: %w", name, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse lang file %s: %w", name, err)
		}
		flat := make(map[string]string)
		flatten("", raw, flat)
		locales[locale] = flat
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tables[id] = locales
	return nil
}

// UnregisterNamespace drops an extension's translations.
func (t *Translator) UnregisterNamespace(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tables, id)
}

// Translate resolves "id::dotted.key" for locale, falling back to the
// fallback locale, then to the key itself so missing translations render
// visibly instead of breaking pages.
func (t *Translator) Translate(locale, key string) string {
	ns, rest, found := strings.Cut(key, "::")
	if !found {
		return key
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	locales, ok := t.tables[ns]
	if !ok {
		return key
	}
	if value, ok := locales[locale][rest]; ok {
		return value
	}
	if value, ok := locales[FallbackLocale][rest]; ok {
		return value
	}
	return key
}

func flatten(prefix string, raw map[string]any, out map[string]string) {
	for key, value := range raw {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case string:
			out[full] = v
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}
