// Package boxes discovers Distrobox containers, classifies them into Linux
// distribution families, and runs commands inside them.
//
// A Box is re-derived from `distrobox list` on every command invocation and is
// never cached across processes. Classification reads /etc/os-release inside
// the container and matches ID/ID_LIKE against a closed family table; boxes
// that match nothing are tagged FamilyUnknown and are listed but never
// auto-selected.
package boxes

import (
	"errors"
	"strings"
)

// Family is a class of Linux distributions sharing a package-manager
// ecosystem. The set is closed: behavior for each family is driven by the
// static command tables in family.go, not by per-box probing.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyDebian
	FamilyFedora
	FamilyOpenSUSE
	FamilyArch
)

// Box is one Distrobox container as reported by the container runtime.
type Box struct {
	Name    string
	Image   string
	Runtime string // podman, docker, or "unknown"
	Family  Family
}

var (
	// ErrBoxNotFound reports that an explicitly requested box does not exist
	// or is unreachable.
	ErrBoxNotFound = errors.New("box not found")

	// ErrNoMatchingBox reports that no live box of the required family exists
	// and creation was not requested.
	ErrNoMatchingBox = errors.New("no matching box")
)

func (f Family) String() string {
	switch f {
	case FamilyDebian:
		return "debian"
	case FamilyFedora:
		return "fedora"
	case FamilyOpenSUSE:
		return "opensuse"
	case FamilyArch:
		return "arch"
	default:
		return "unknown"
	}
}

// ParseFamily converts a user-supplied family name to a Family.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debian", "ubuntu":
		return FamilyDebian, nil
	case "fedora":
		return FamilyFedora, nil
	case "opensuse", "suse":
		return FamilyOpenSUSE, nil
	case "arch":
		return FamilyArch, nil
	default:
		return FamilyUnknown, errors.New("unknown family " + s)
	}
}

// SanitizeName maps a box name to the restricted charset used in suffixed
// export names and shim filenames. Anything outside [A-Za-z0-9_-] becomes '-'.
func SanitizeName(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
