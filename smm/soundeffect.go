package smm

import (
	"encoding/binary"
	"fmt"
)

// SoundEffectSize is the fixed wire size of a sound effect record
const SoundEffectSize = 0x8

// SoundEffect is one entry of a level's fixed 300-slot sound effect table.
// Only the leading big-endian dword is modeled; the known sub-fields (type,
// variation, x, y) are not decoded individually yet. The trailing four bytes
// are reserved and zero.
type SoundEffect struct {
	Unknown uint32
}

// DecodeSoundEffect parses a single 8-byte sound effect record
func DecodeSoundEffect(data []byte) (SoundEffect, error) {
	var s SoundEffect

	if len(data) != SoundEffectSize {
		return s, fmt.Errorf("sound effect record is %d bytes, expected %d: %w", len(data), SoundEffectSize, ErrInvalidData)
	}

	s.Unknown = binary.BigEndian.Uint32(data)

	return s, nil
}

// Encode serializes the sound effect into its 8-byte wire form
func (s SoundEffect) Encode() ([]byte, error) {
	out := make([]byte, SoundEffectSize)
	binary.BigEndian.PutUint32(out, s.Unknown)

	return out, nil
}
