package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"stronghold.gg/cms/internal/core/domain"
)

// maxUploadBytes bounds the whole multipart request, a little above the
// archive cap so a legal archive plus form overhead still fits.
const maxUploadBytes = 12 << 20

type extensionView struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Enabled     bool   `json:"enabled"`
}

type installView struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Replaced bool   `json:"replaced"`
	Backup   string `json:"backup,omitempty"`
	Enabled  bool   `json:"enabled"`
}

type backupView struct {
	Name        string `json:"name"`
	ExtensionID string `json:"extension_id"`
	CreatedAt   string `json:"created_at"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.extensions.ListPlugins(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	themes, err := s.themes.ListThemes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]extensionView, 0, len(plugins)+len(themes))
	for _, p := range plugins {
		out = append(out, viewOf(p.Descriptor, p.Enabled))
	}
	for _, t := range themes {
		out = append(out, viewOf(t.Descriptor, t.Active))
	}
	writeJSON(w, http.StatusOK, map[string]any{"extensions": out})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing archive upload"})
		return
	}
	defer file.Close()

	kind, err := parseKind(r.FormValue("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	autoEnable, _ := strconv.ParseBool(r.FormValue("auto_enable"))

	result, err := s.extensions.Install(r.Context(), file, header.Size, kind, autoEnable)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.reapplyTheme(r.Context())

	writeJSON(w, http.StatusCreated, installView{
		ID:       result.Descriptor.ID,
		Kind:     string(result.Descriptor.Kind),
		Name:     result.Descriptor.Name,
		Version:  result.Descriptor.Version,
		Replaced: result.Replaced,
		Backup:   result.BackupName,
		Enabled:  result.Enabled,
	})
}

func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	backup := true
	if v := r.URL.Query().Get("backup"); v != "" {
		backup, _ = strconv.ParseBool(v)
	}

	if err := s.extensions.Uninstall(r.Context(), r.PathValue("id"), kind, backup); err != nil {
		s.writeError(w, err)
		return
	}
	s.reapplyTheme(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// reapplyTheme restores the active theme's registrations after an install
// or uninstall reset evicted them. Failures are logged, not surfaced; the
// install itself already succeeded.
func (s *Server) reapplyTheme(ctx context.Context) {
	if err := s.themes.ApplyActive(ctx); err != nil {
		s.logger.Printf("theme: failed to reapply active theme: %v", err)
	}
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if err := s.extensions.EnablePlugin(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	bound := s.extensions.BindEnabled(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": "enabled", "bound": bound})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if err := s.extensions.DisablePlugin(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (s *Server) handleActivateTheme(w http.ResponseWriter, r *http.Request) {
	if err := s.themes.Activate(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handleDeactivateTheme(w http.ResponseWriter, r *http.Request) {
	if err := s.themes.Deactivate(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "default"})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	infos, err := s.extensions.Backups().List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]backupView, 0, len(infos))
	for _, info := range infos {
		out = append(out, backupView{
			Name:        info.Name,
			ExtensionID: info.ExtensionID,
			CreatedAt:   info.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			SizeBytes:   info.SizeBytes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": out})
}

func (s *Server) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	if err := s.extensions.Backups().Archive(name, w); err != nil {
		// Headers may already be out; log and best-effort report.
		s.logger.Printf("api: backup download %s: %v", name, err)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.extensions.Reload()
	bound := s.extensions.BindEnabled(r.Context())
	if err := s.themes.ApplyActive(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "bound": bound})
}

func viewOf(desc *domain.ExtensionDescriptor, enabled bool) extensionView {
	return extensionView{
		ID:          desc.ID,
		Kind:        string(desc.Kind),
		Name:        desc.Name,
		Version:     desc.Version,
		Description: desc.Description,
		Author:      desc.Author,
		Enabled:     enabled,
	}
}

func parseKind(v string) (domain.Kind, error) {
	switch v {
	case "", "plugin":
		return domain.KindPlugin, nil
	case "theme":
		return domain.KindTheme, nil
	default:
		return "", fmt.Errorf("unknown extension kind %q", v)
	}
}
