package ldaprecord

import (
	"fmt"

	"github.com/google/uuid"
)

// guidBytesLength is the fixed size of a directory GUID value.
const guidBytesLength = 16

// ValidGUID reports whether s parses as a GUID in hyphenated or compact
// hex form.
func ValidGUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeGUID converts a GUID string to canonical lowercase hyphenated
// form.
func NormalizeGUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return u.String(), nil
}

// GUIDToBytes converts a GUID string to the server-native byte encoding.
// Active Directory stores GUIDs mixed-endian: the first three groups are
// little-endian, the final eight bytes keep their order.
func GUIDToBytes(s string) ([]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", s, err)
	}

	b := u[:]
	out := make([]byte, guidBytesLength)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])

	return out, nil
}

// GUIDFromBytes converts server-native GUID bytes back to the canonical
// hyphenated string form.
func GUIDFromBytes(b []byte) (string, error) {
	if len(b) != guidBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", guidBytesLength, len(b))
	}

	std := make([]byte, guidBytesLength)
	std[0], std[1], std[2], std[3] = b[3], b[2], b[1], b[0]
	std[4], std[5] = b[5], b[4]
	std[6], std[7] = b[7], b[6]
	copy(std[8:], b[8:])

	u, err := uuid.FromBytes(std)
	if err != nil {
		return "", fmt.Errorf("failed to decode GUID bytes: %w", err)
	}

	return u.String(), nil
}
