package bridge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PathScheme selects how object ids are derived from devices.
type PathScheme string

const (
	// PathById keys objects by the stable device id.
	PathById PathScheme = "id"
	// PathByName builds "<Room>.<Device-Name>" ids. Renaming a device on the
	// controller creates a new object.
	PathByName PathScheme = "name"
)

const unassignedRoom = "Unassigned"

func ParsePathScheme(s string) PathScheme {
	if PathScheme(strings.ToLower(s)) == PathByName {
		return PathByName
	}
	return PathById
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// NormalizeName collapses whitespace runs into a single "-" and squeezes
// repeated separators. Dots are replaced since they split the object tree.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ".", "-")), "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

// LegacyPath returns the name based object id for a device in room.
func LegacyPath(room, device string) string {
	room = NormalizeName(room)
	if room == "" {
		room = unassignedRoom
	}
	return Capitalize(room) + "." + NormalizeName(device)
}
