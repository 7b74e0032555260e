// Package ucs2 converts between UTF-8 strings and the big-endian UCS-2
// code units used by Wii U save formats
package ucs2

import (
	"errors"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

// ErrUnencodable is returned when a rune has no single-code-unit
// representation (anything outside the basic multilingual plane)
var ErrUnencodable = errors.New("rune not representable in UCS-2")

// Encode converts s into big-endian UCS-2: exactly one 16-bit code unit
// (two bytes) per rune. Runes requiring surrogate pairs cannot be
// represented and fail with ErrUnencodable.
func Encode(s string) ([]byte, error) {
	for _, r := range s {
		if r > 0xFFFF || utf16.IsSurrogate(r) {
			return nil, fmt.Errorf("encoding %q (%U): %w", r, r, ErrUnencodable)
		}
	}

	out, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("converting to UTF-16BE: %w", err)
	}

	return out, nil
}

// Decode converts big-endian UCS-2 code units back into a string. It fails
// only when b does not contain a whole number of code units; malformed
// units decode to U+FFFD.
func Decode(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%d bytes is not a whole number of code units", len(b))
	}

	out, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("converting from UTF-16BE: %w", err)
	}

	return string(out), nil
}
