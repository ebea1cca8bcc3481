package ldaprecord

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeFilterValue escapes a value for literal use inside a search filter
// per RFC 4515.
func EscapeFilterValue(value string) string {
	return ldap.EscapeFilter(value)
}

// EscapeDNValue escapes special characters in a DN attribute value per
// RFC 4514: the characters , + " \ < > ; always, a leading #, leading and
// trailing spaces, and NUL bytes as \00.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case 0:
			b.WriteString("\\00")
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// UnescapeDNValue reverses EscapeDNValue, handling both escaped characters
// and two-digit hex escapes such as \00.
func UnescapeDNValue(value string) string {
	if !strings.Contains(value, "\\") {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))

	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '\\' || i == len(runes)-1 {
			b.WriteRune(runes[i])
			continue
		}
		if i+2 < len(runes) {
			if hi, ok := hexVal(runes[i+1]); ok {
				if lo, ok := hexVal(runes[i+2]); ok {
					b.WriteRune(rune(hi<<4 | lo))
					i += 2
					continue
				}
			}
		}
		// Plain escaped character.
		b.WriteRune(runes[i+1])
		i++
	}

	return b.String()
}

func hexVal(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	}
	return 0, false
}

// NeedsDNEscaping reports whether a value contains characters that require
// DN escaping.
func NeedsDNEscaping(value string) bool {
	if value == "" {
		return false
	}
	if value[0] == ' ' || value[0] == '#' || value[len(value)-1] == ' ' {
		return true
	}
	for _, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';', 0:
			return true
		}
	}
	return false
}
