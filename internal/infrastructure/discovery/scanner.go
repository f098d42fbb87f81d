package discovery

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stronghold.gg/cms/internal/core/domain"
)

// Marker strings looked for inside src/ files when no manifest exists.
// Legacy extensions dropped in by hand reference one of these base types.
// The heuristic only inspects text; extension code is never executed.
var heuristicMarkers = map[domain.Kind][]string{
	domain.KindPlugin: {"BasePlugin", "PluginServiceProvider"},
	domain.KindTheme:  {"BaseTheme", "ThemeServiceProvider"},
}

// FilesystemScanner discovers extensions by enumerating the immediate child
// directories of a root and parsing their manifests. Directories with a
// malformed manifest are skipped and logged, never fatal: one bad extension
// must not take down discovery for the rest.
type FilesystemScanner struct {
	logger *log.Logger
}

// NewFilesystemScanner creates a scanner that reports skips to logger.
func NewFilesystemScanner(logger *log.Logger) *FilesystemScanner {
	return &FilesystemScanner{logger: logger}
}

// Scan enumerates root's child directories and returns one descriptor per
// recognized extension, sorted by directory name so registration order is
// reproducible across scans.
func (s *FilesystemScanner) Scan(root string, kind domain.Kind) []*domain.ExtensionDescriptor {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("scan: failed to read %s: %v", root, err)
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}

	var descriptors []*domain.ExtensionDescriptor
	seen := make(map[string]bool)
	for _, name := range names {
		dir := filepath.Join(root, name)

		if !s.withinRoot(resolvedRoot, dir) {
			s.logger.Printf("scan: skipping %s: resolves outside %s", dir, root)
			continue
		}

		desc := s.classify(dir, name, kind)
		if desc == nil {
			continue
		}
		if seen[desc.ID] {
			s.logger.Printf("scan: skipping %s: duplicate %s id %q", dir, kind, desc.ID)
			continue
		}
		seen[desc.ID] = true
		descriptors = append(descriptors, desc)
	}

	return descriptors
}

// classify turns one candidate directory into a descriptor, or nil when the
// directory is not a recognizable extension.
func (s *FilesystemScanner) classify(dir, name string, kind domain.Kind) *domain.ExtensionDescriptor {
	manifestPath := filepath.Join(dir, kind.ManifestFileName())
	data, err := os.ReadFile(manifestPath)
	if err == nil {
		manifest, perr := domain.ParseManifest(data)
		if perr != nil {
			s.logger.Printf("scan: skipping %s: %v", dir, perr)
			return nil
		}
		return manifest.Descriptor(kind, dir)
	}
	if !os.IsNotExist(err) {
		s.logger.Printf("scan: skipping %s: failed to read manifest: %v", dir, err)
		return nil
	}

	// No manifest. Fall back to the structural heuristic for legacy
	// extensions: a src/ directory whose files reference a known base type.
	if HasCapabilityMarker(dir, kind) {
		return domain.PlaceholderDescriptor(kind, name, dir)
	}
	return nil
}

// withinRoot reports whether dir, with symlinks resolved, still lives under
// the scan root. Symlinked entries pointing elsewhere are not followed.
func (s *FilesystemScanner) withinRoot(resolvedRoot, dir string) bool {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// HasCapabilityMarker reports whether dir contains a src/ directory with
// at least one file mentioning a base-capability marker for the kind. Text
// match only; also used by the install pipeline to validate uploads.
func HasCapabilityMarker(dir string, kind domain.Kind) bool {
	srcDir := filepath.Join(dir, "src")
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return false
	}

	markers := heuristicMarkers[kind]
	found := false
	filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found || d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		content := string(data)
		for _, marker := range markers {
			if strings.Contains(content, marker) {
				found = true
				break
			}
		}
		return nil
	})
	return found
}
