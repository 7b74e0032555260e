package ucs2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for name, input := range map[string]string{
		"empty":    "",
		"ascii":    "WORLD 1-1",
		"latin":    "Königslevel",
		"japanese": "マリオメーカー",
		"mixed":    "Mario's 城",
	} {
		t.Run(name, func(t *testing.T) {
			enc, err := Encode(input)
			require.NoError(t, err)
			assert.Len(t, enc, 2*len([]rune(input)))

			dec, err := Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, input, dec)
		})
	}
}

func TestEncodeKnownBytes(t *testing.T) {
	enc, err := Encode("ABC")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 'A', 0x00, 'B', 0x00, 'C'}, enc)

	enc, err = Encode("マ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30, 0xDE}, enc)
}

func TestEncodeRejectsAstralRunes(t *testing.T) {
	for _, input := range []string{"🍄", "level 🎮 one", "𝔐ario"} {
		_, err := Encode(input)
		assert.ErrorIs(t, err, ErrUnencodable, "input %q", input)
	}
}

func TestDecodeRejectsOddLength(t *testing.T) {
	_, err := Decode([]byte{0x00, 'A', 0x00})
	assert.Error(t, err)
}
