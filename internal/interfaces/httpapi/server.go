package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"stronghold.gg/cms/internal/application/services"
	"stronghold.gg/cms/internal/core/domain"
)

// Server exposes the admin API and the bound extension routes over one
// http.Handler. Admin endpoints live under /api and require the bearer
// token; everything else falls through to the extension router.
type Server struct {
	extensions *services.ExtensionService
	themes     *services.ThemeService
	hostRouter http.Handler
	logger     *log.Logger

	adminToken     string
	allowedOrigins []string
}

// NewServer wires the admin HTTP surface.
func NewServer(
	extensions *services.ExtensionService,
	themes *services.ThemeService,
	hostRouter http.Handler,
	adminToken string,
	allowedOrigins []string,
	logger *log.Logger,
) *Server {
	return &Server{
		extensions:     extensions,
		themes:         themes,
		hostRouter:     hostRouter,
		logger:         logger,
		adminToken:     adminToken,
		allowedOrigins: allowedOrigins,
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/extensions", s.auth(http.HandlerFunc(s.handleList)))
	mux.Handle("POST /api/extensions", s.auth(http.HandlerFunc(s.handleInstall)))
	mux.Handle("DELETE /api/extensions/{id}", s.auth(http.HandlerFunc(s.handleUninstall)))
	mux.Handle("POST /api/plugins/{id}/enable", s.auth(http.HandlerFunc(s.handleEnable)))
	mux.Handle("POST /api/plugins/{id}/disable", s.auth(http.HandlerFunc(s.handleDisable)))
	mux.Handle("POST /api/themes/{id}/activate", s.auth(http.HandlerFunc(s.handleActivateTheme)))
	mux.Handle("POST /api/themes/deactivate", s.auth(http.HandlerFunc(s.handleDeactivateTheme)))
	mux.Handle("GET /api/backups", s.auth(http.HandlerFunc(s.handleListBackups)))
	mux.Handle("GET /api/backups/{name}", s.auth(http.HandlerFunc(s.handleDownloadBackup)))
	mux.Handle("POST /api/reload", s.auth(http.HandlerFunc(s.handleReload)))

	// Bound extension routes: /plugins/{id}/... and /admin/plugins/{id}/...
	mux.Handle("/", s.hostRouter)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(mux)
}

// auth guards admin endpoints with a constant-time bearer token check. An
// unset token means local development; the serve command warns loudly.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken != "" {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses with a specific
// failure reason string, never a stack trace.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		archiveErr *domain.ArchiveError
		structErr  *domain.UnrecognizedStructureError
		parseErr   *domain.ManifestParseError
		unmetErr   *domain.UnmetRequirementError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrArchiveTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.As(err, &archiveErr), errors.As(err, &parseErr):
		status = http.StatusBadRequest
	case errors.As(err, &structErr), errors.As(err, &unmetErr):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		// Full detail goes to the operational log only.
		s.logger.Printf("api: %v", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
