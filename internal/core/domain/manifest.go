package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// DefaultVersion is assumed when a manifest omits the version field.
const DefaultVersion = "1.0.0"

// Manifest represents the plugin.json / theme.json structure.
type Manifest struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Version         string            `json:"version,omitempty"`
	Description     string            `json:"description,omitempty"`
	Author          string            `json:"author,omitempty"`
	URL             string            `json:"url,omitempty"`
	Screenshot      string            `json:"screenshot,omitempty"`
	Requires        map[string]string `json:"requires,omitempty"`
	Supports        []string          `json:"supports,omitempty"`
	ServiceProvider string            `json:"service_provider,omitempty"`
}

// ParseManifest parses manifest JSON and validates required fields.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{Cause: err}
	}
	if m.ID == "" {
		return nil, &ManifestParseError{MissingField: "id"}
	}
	if m.Name == "" {
		return nil, &ManifestParseError{MissingField: "name"}
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	return &m, nil
}

// Descriptor builds a manifest-declared descriptor rooted at rootPath.
func (m *Manifest) Descriptor(kind Kind, rootPath string) *ExtensionDescriptor {
	return &ExtensionDescriptor{
		ID:                 m.ID,
		Kind:               kind,
		Name:               m.Name,
		Version:            m.Version,
		Description:        m.Description,
		Author:             m.Author,
		URL:                m.URL,
		Screenshot:         m.Screenshot,
		RootPath:           rootPath,
		Requires:           m.Requires,
		Supports:           m.Supports,
		RegistrationHandle: m.ServiceProvider,
		Detection:          DetectionManifest,
	}
}

// PlaceholderDescriptor builds a heuristic-detected descriptor for a
// directory that carries no manifest. The name is the title-cased directory
// name and the version is the default.
func PlaceholderDescriptor(kind Kind, id, rootPath string) *ExtensionDescriptor {
	return &ExtensionDescriptor{
		ID:        id,
		Kind:      kind,
		Name:      titleCase(id),
		Version:   DefaultVersion,
		RootPath:  rootPath,
		Detection: DetectionHeuristic,
	}
}

func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return s
	}
	return strings.Join(words, " ")
}

// ManifestParseError reports a malformed or incomplete manifest. Scanner
// callers skip the offending directory; they never abort the whole scan.
type ManifestParseError struct {
	MissingField string
	Cause        error
}

func (e *ManifestParseError) Error() string {
	if e.MissingField != "" {
		return fmt.Sprintf("manifest missing required field: %s", e.MissingField)
	}
	return fmt.Sprintf("failed to parse manifest JSON: %v", e.Cause)
}

func (e *ManifestParseError) Unwrap() error { return e.Cause }
