package host

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
)

// RouteDefinition is one entry of a declarative route table. Extensions
// ship routes/web.json and routes/admin.json, each a JSON array of these.
// Handlers are declarative: a route either renders a view or redirects.
type RouteDefinition struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	View     string `json:"view,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Router holds the registered extension routes. Registration is guarded
// against duplicates: registering the same method+pattern twice is a
// correctness bug, not a performance one, and fails loudly.
type Router struct {
	views *ViewEngine

	webMiddleware   []Middleware
	adminMiddleware []Middleware

	mu     sync.RWMutex
	routes map[string]http.Handler // "METHOD /pattern"
}

// NewRouter creates a router rendering views through engine. The admin
// chain must always include the auth+admin middleware; callers pass it in
// full, the router never serves an admin prefix without it.
func NewRouter(views *ViewEngine, web, admin []Middleware) *Router {
	return &Router{
		views:           views,
		webMiddleware:   web,
		adminMiddleware: admin,
		routes:          make(map[string]http.Handler),
	}
}

// LoadRouteFile parses a routes/*.json table.
func LoadRouteFile(path string) ([]RouteDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []RouteDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse route table %s: %w", path, err)
	}
	for i, def := range defs {
		if def.Path == "" {
			return nil, fmt.Errorf("route %d in %s has no path", i, path)
		}
		if def.View == "" && def.Redirect == "" {
			return nil, fmt.Errorf("route %d in %s declares neither view nor redirect", i, path)
		}
	}
	return defs, nil
}

// RegisterPublic mounts defs under plugins/{id} with the web middleware.
func (r *Router) RegisterPublic(extensionID string, defs []RouteDefinition) error {
	return r.register("plugins/"+extensionID, extensionID, defs, r.webMiddleware)
}

// RegisterAdmin mounts defs under admin/plugins/{id} with the full admin
// chain. The admin prefix is never reachable through the web chain, even
// when the route table forgets to guard individual entries.
func (r *Router) RegisterAdmin(extensionID string, defs []RouteDefinition) error {
	return r.register("admin/plugins/"+extensionID, extensionID, defs, r.adminMiddleware)
}

func (r *Router) register(prefix, extensionID string, defs []RouteDefinition, chain []Middleware) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate the whole table before mutating so a duplicate midway
	// through does not leave a half-registered extension.
	keys := make([]string, len(defs))
	for i, def := range defs {
		method := strings.ToUpper(def.Method)
		if method == "" {
			method = http.MethodGet
		}
		key := method + " /" + prefix + "/" + strings.TrimPrefix(def.Path, "/")
		if _, exists := r.routes[key]; exists {
			return fmt.Errorf("duplicate route registration: %s", key)
		}
		keys[i] = key
	}

	for i, def := range defs {
		handler := r.handlerFor(extensionID, def)
		for j := len(chain) - 1; j >= 0; j-- {
			handler = chain[j](handler)
		}
		r.routes[keys[i]] = handler
	}
	return nil
}

func (r *Router) handlerFor(extensionID string, def RouteDefinition) http.Handler {
	if def.Redirect != "" {
		return http.RedirectHandler(def.Redirect, http.StatusFound)
	}
	view := def.View
	if !strings.Contains(view, "::") {
		view = extensionID + "::" + view
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := r.views.Render(w, view, map[string]any{"request": req.URL.Path}); err != nil {
			http.Error(w, "view not found", http.StatusNotFound)
		}
	})
}

// Unregister removes every route belonging to extensionID, both public and
// admin. Used when rebinding after an uninstall.
func (r *Router) Unregister(extensionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.routes {
		if routeBelongsTo(key, extensionID) {
			delete(r.routes, key)
		}
	}
}

// Routes returns the registered route keys, sorted. Used for listing and
// in tests.
func (r *Router) Routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.routes))
	for key := range r.routes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ServeHTTP dispatches to the registered route, exact method+path match.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	handler, ok := r.routes[req.Method+" "+req.URL.Path]
	r.mu.RUnlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	handler.ServeHTTP(w, req)
}

func routeBelongsTo(key, extensionID string) bool {
	_, path, found := strings.Cut(key, " ")
	if !found {
		return false
	}
	return strings.HasPrefix(path, "/plugins/"+extensionID+"/") ||
		strings.HasPrefix(path, "/admin/plugins/"+extensionID+"/")
}
