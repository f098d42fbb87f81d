package host

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ViewEngine resolves template names to files. Plugin views are namespaced
// ("shop::cart") and unaffected by theme switches. Unnamespaced views
// resolve against the active theme's view directory first, then the
// built-in views, so themes override core templates.
type ViewEngine struct {
	defaultDir string

	mu         sync.RWMutex
	themeDir   string
	namespaces map[string]string
}

// NewViewEngine creates an engine with the built-in view directory as the
// final fallback.
func NewViewEngine(defaultDir string) *ViewEngine {
	return &ViewEngine{
		defaultDir: defaultDir,
		namespaces: make(map[string]string),
	}
}

// RegisterNamespace maps an extension id to its resources/views directory.
// Re-registering the same namespace replaces the previous mapping, which
// keeps per-boot binding idempotent.
func (e *ViewEngine) RegisterNamespace(id, dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.namespaces[id] = dir
}

// UnregisterNamespace drops an extension's views.
func (e *ViewEngine) UnregisterNamespace(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.namespaces, id)
}

// SetThemeDir replaces the theme override directory. An empty dir restores
// built-in-only resolution. There is no intermediate state: callers always
// observe either the previous theme's directory or the new one.
func (e *ViewEngine) SetThemeDir(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.themeDir = dir
}

// Resolve returns the template file path for a view name. Namespaced names
// use "id::relative/name"; plain names search theme then default.
func (e *ViewEngine) Resolve(name string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ns, rest, found := strings.Cut(name, "::"); found {
		dir, ok := e.namespaces[ns]
		if !ok {
			return "", fmt.Errorf("unknown view namespace %q", ns)
		}
		return e.lookup([]string{dir}, rest)
	}

	dirs := make([]string, 0, 2)
	if e.themeDir != "" {
		dirs = append(dirs, e.themeDir)
	}
	dirs = append(dirs, e.defaultDir)
	return e.lookup(dirs, name)
}

func (e *ViewEngine) lookup(dirs []string, name string) (string, error) {
	// Reject traversal out of the registered directories.
	clean := filepath.Clean(name)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid view name %q", name)
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, clean+".tmpl")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("view %q not found", name)
}

// Render parses and executes the named view with data.
func (e *ViewEngine) Render(w io.Writer, name string, data any) error {
	path, err := e.Resolve(name)
	if err != nil {
		return err
	}
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		return fmt.Errorf("failed to parse view %s: %w", path, err)
	}
	return tmpl.Execute(w, data)
}
