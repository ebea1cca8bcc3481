package ldaprecord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// DecodeSID converts a binary objectSid value to its S-1-5-21-... string
// representation.
func DecodeSID(b []byte) (string, error) {
	// go-objectsid indexes into the buffer without bounds checks; a SID is
	// at least a revision byte, a subauthority count, and a 6-byte
	// identifier authority.
	if len(b) < 8 {
		return "", fmt.Errorf("invalid SID: %d bytes is too short", len(b))
	}
	return objectsid.Decode(b).String(), nil
}

// ValidSIDString reports whether s looks like a textual security
// identifier.
func ValidSIDString(s string) bool {
	return len(s) >= 5 && strings.HasPrefix(s, "S-")
}
