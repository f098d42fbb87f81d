package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a referenced extension id is not present in the
// registry. Surfaced to admins as a plain "not found" message.
var ErrNotFound = errors.New("extension not found")

// UnrecognizedStructureError reports that an uploaded archive carried
// neither a manifest nor a recognizable src/ layout.
type UnrecognizedStructureError struct {
	Detail string
}

func (e *UnrecognizedStructureError) Error() string {
	if e.Detail == "" {
		return "invalid extension structure: no manifest or recognizable layout found"
	}
	return fmt.Sprintf("invalid extension structure: %s", e.Detail)
}

// UnmetRequirementError reports a declared requirement that does not
// resolve to an installed capability. Fatal to theme activation.
type UnmetRequirementError struct {
	Extension  string
	Capability string
}

func (e *UnmetRequirementError) Error() string {
	return fmt.Sprintf("extension %q requires capability %q which is not installed", e.Extension, e.Capability)
}

// ArchiveError reports a corrupt or unreadable uploaded archive, keeping
// the underlying archive library error for diagnostics.
type ArchiveError struct {
	Cause error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("failed to open archive: %v", e.Cause)
}

func (e *ArchiveError) Unwrap() error { return e.Cause }

// ErrArchiveTooLarge is returned before extraction when an upload exceeds
// the configured size cap.
var ErrArchiveTooLarge = errors.New("archive exceeds maximum allowed size")
