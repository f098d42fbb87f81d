package domain

import "sort"

// Kind distinguishes the two extension flavors the host understands.
type Kind string

const (
	KindPlugin Kind = "plugin"
	KindTheme  Kind = "theme"
)

// ManifestFileName returns the manifest file looked up for this kind.
func (k Kind) ManifestFileName() string {
	if k == KindTheme {
		return "theme.json"
	}
	return "plugin.json"
}

// Detection records how a descriptor was classified during discovery.
// Extensions are never executed to learn their metadata; a descriptor is
// either declared by a manifest file or detected from directory structure.
type Detection string

const (
	// DetectionManifest means a valid plugin.json/theme.json was parsed.
	DetectionManifest Detection = "manifest"

	// DetectionHeuristic means no manifest existed and the extension was
	// recognized from its src/ layout. Metadata is placeholder quality.
	DetectionHeuristic Detection = "heuristic"
)

// ExtensionDescriptor is the parsed, in-memory metadata record for one
// extension. It is a read-only view over the filesystem: descriptors are
// rebuilt on every discovery scan and never mutated in place. Enabled state
// is intentionally absent; it lives in the enablement store and is joined
// at query time.
type ExtensionDescriptor struct {
	// ID is unique within its kind, derived from the manifest id field or
	// the directory name.
	ID string

	Kind        Kind
	Name        string
	Version     string
	Description string
	Author      string
	URL         string
	Screenshot  string

	// RootPath is the absolute directory of the extension and the source
	// of truth for all sub-resource lookups (views, lang, migrations,
	// config, routes).
	RootPath string

	// Requires maps capability names to version constraint strings. The
	// constraints are checked for presence, not resolved; there is no
	// dependency graph.
	Requires map[string]string

	Supports []string

	// RegistrationHandle names a compiled-in registration hook to invoke
	// after conventional binding. Empty for new-style extensions.
	RegistrationHandle string

	Detection Detection
}

// RequiredCapabilities returns the capability names from Requires in a
// stable order.
func (d *ExtensionDescriptor) RequiredCapabilities() []string {
	if len(d.Requires) == 0 {
		return nil
	}
	caps := make([]string, 0, len(d.Requires))
	for name := range d.Requires {
		caps = append(caps, name)
	}
	sort.Strings(caps)
	return caps
}

// DisplayName returns the human-facing name, falling back to the id.
func (d *ExtensionDescriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
