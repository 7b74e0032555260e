package smm

import (
	"encoding/binary"
	"hash/crc32"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luzifer/smm-extract/ucs2"
)

// makeTestLevel builds a fully populated stage touching every modeled field
func makeTestLevel() *Level {
	l := NewLevel()
	l.CreationTime = time.Date(2015, time.September, 11, 17, 45, 0, 0, time.UTC)
	l.Name = "TEST COURSE"
	l.GameMode = GameModeSuperMarioWorld
	l.CourseTheme = ThemeUnderground
	l.TimeLimit = 300
	l.AutoScroll = AutoScrollSlow
	l.Flags = 2
	l.Width = 3840

	for i := range l.MiiData {
		l.MiiData[i] = byte(i)
	}

	l.Objects = []Object{
		{X: 100, Z: 50, Y: -10, Width: 1, Height: 1, Type: 7, LinkID: -1, EffectIndex: -1, TransformationID: -1},
		{X: 2000, Y: 270, Width: 4, Height: 4, Flags: 0x060000C0, Type: 9, ChildType: -1, LinkID: 3, EffectIndex: 2, TransformationID: -1, ChildTransformationID: -1},
	}

	l.SoundEffects[0] = SoundEffect{Unknown: 0x00010203}
	l.SoundEffects[12] = SoundEffect{Unknown: 0xFFFF0000}

	return l
}

// minimalLevelData builds the smallest valid wire form: all zero except a
// valid creation date and game mode tag
func minimalLevelData() []byte {
	data := make([]byte, LevelSize)

	binary.BigEndian.PutUint64(data[offVersion:], LevelVersion)
	binary.BigEndian.PutUint16(data[offCreated:], 2020)
	data[offCreated+2] = 1
	data[offCreated+3] = 1
	data[offGameMode], data[offGameMode+1] = 'M', '1'

	return data
}

func TestLevelLayout(t *testing.T) {
	assert.Equal(t, offSoundTable, offObjects+ObjectCapacity*ObjectSize)
	assert.Equal(t, LevelSize, offSoundTable+SoundEffectCount*SoundEffectSize+0xB0)
}

func TestLevelRoundTrip(t *testing.T) {
	l := makeTestLevel()

	enc, err := l.Encode()
	require.NoError(t, err)
	require.Len(t, enc, LevelSize)

	dec, err := DecodeLevel(enc)
	require.NoError(t, err)
	assert.Equal(t, l, dec)
}

func TestLevelEncodeGoldenOffsets(t *testing.T) {
	data, err := makeTestLevel().Encode()
	require.NoError(t, err)

	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0B}, data[offVersion:offVersion+8], "version")
	assert.Equal(t, []byte{0x07, 0xDF, 0x09, 0x0B, 0x11, 0x2D}, data[offCreated:offCreated+6], "creation time")
	assert.Equal(t, []byte{0x00, 'T', 0x00, 'E'}, data[offName:offName+4], "name start")
	assert.Equal(t, []byte{'M', 'W'}, data[offGameMode:offGameMode+2], "mode tag")
	assert.Equal(t, uint8(ThemeUnderground), data[offTheme], "theme")
	assert.Equal(t, []byte{0x01, 0x2C}, data[offTimeLimit:offTimeLimit+2], "time limit")
	assert.Equal(t, uint8(AutoScrollSlow), data[offAutoScroll], "auto-scroll")
	assert.Equal(t, uint8(2), data[offFlags], "flags")
	assert.Equal(t, []byte{0x00, 0x00, 0x0F, 0x00}, data[offWidth:offWidth+4], "width")
	assert.Equal(t, uint8(0x5F), data[offMiiData+0x5F], "mii data end")
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, data[offObjectCount:offObjectCount+4], "object count")

	firstObject, err := makeTestLevel().Objects[0].Encode()
	require.NoError(t, err)
	assert.Equal(t, firstObject, data[offObjects:offObjects+ObjectSize], "first object record")

	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0x03}, data[offSoundTable:offSoundTable+4], "first sound effect")
}

func TestLevelChecksum(t *testing.T) {
	first, err := makeTestLevel().Encode()
	require.NoError(t, err)

	second, err := makeTestLevel().Encode()
	require.NoError(t, err)
	assert.Equal(t, first, second, "encoding must be deterministic")

	assert.Equal(t,
		crc32.ChecksumIEEE(first[checksumStart:]),
		binary.BigEndian.Uint32(first[offChecksum:]),
	)

	require.NoError(t, VerifyLevelChecksum(first))

	first[0x200] ^= 0xFF
	assert.ErrorIs(t, VerifyLevelChecksum(first), ErrChecksumMismatch)

	assert.ErrorIs(t, VerifyLevelChecksum(first[:100]), ErrInvalidData)
}

func TestLevelReservedRegionsZero(t *testing.T) {
	data, err := makeTestLevel().Encode()
	require.NoError(t, err)

	for name, region := range map[string][]byte{
		"after checksum":      data[0x0C:0x10],
		"after timestamp":     data[0x16:0x28],
		"after mode tag":      data[0x6C:0x6D],
		"after theme":         data[0x6E:0x70],
		"after mii data":      data[0xD8:0xEC],
		"after sound effects": data[offSoundTable+SoundEffectCount*SoundEffectSize:],
	} {
		assert.Equal(t, make([]byte, len(region)), region, name)
	}
}

func TestDecodeLevelSize(t *testing.T) {
	for _, size := range []int{0, LevelSize - 1, LevelSize + 1} {
		_, err := DecodeLevel(make([]byte, size))
		assert.ErrorIs(t, err, ErrInvalidData)
	}
}

func TestDecodeLevelMinimal(t *testing.T) {
	l, err := DecodeLevel(minimalLevelData())
	require.NoError(t, err)

	assert.Equal(t, uint64(LevelVersion), l.Version)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), l.CreationTime)
	assert.Equal(t, "", l.Name)
	assert.Equal(t, GameModeSuperMarioBros, l.GameMode)
	assert.Equal(t, ThemeOverworld, l.CourseTheme)
	assert.Equal(t, AutoScrollNone, l.AutoScroll)
	assert.Len(t, l.Objects, 0)
	assert.Len(t, l.SoundEffects, SoundEffectCount)
}

func TestDecodeLevelObjects(t *testing.T) {
	obj := Object{X: 1750, Z: 80, Y: 270, Width: 1, Height: 1, Type: 9, LinkID: -1, EffectIndex: -1}
	rec, err := obj.Encode()
	require.NoError(t, err)

	data := minimalLevelData()
	binary.BigEndian.PutUint32(data[offObjectCount:], 1)
	copy(data[offObjects:], rec)

	l, err := DecodeLevel(data)
	require.NoError(t, err)
	require.Len(t, l.Objects, 1)
	assert.Equal(t, obj, l.Objects[0])
}

func TestDecodeLevelObjectCountOverflow(t *testing.T) {
	data := minimalLevelData()
	binary.BigEndian.PutUint32(data[offObjectCount:], ObjectCapacity+1)

	_, err := DecodeLevel(data)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestLevelGameModeTags(t *testing.T) {
	for tag, mode := range map[string]GameMode{
		"M1": GameModeSuperMarioBros,
		"M3": GameModeSuperMarioBros3,
		"MW": GameModeSuperMarioWorld,
		"WU": GameModeNewSuperMarioBrosU,
	} {
		t.Run(tag, func(t *testing.T) {
			data := minimalLevelData()
			data[offGameMode], data[offGameMode+1] = tag[0], tag[1]

			l, err := DecodeLevel(data)
			require.NoError(t, err)
			assert.Equal(t, mode, l.GameMode)

			enc, err := l.Encode()
			require.NoError(t, err)
			assert.Equal(t, []byte(tag), enc[offGameMode:offGameMode+2])
		})
	}

	t.Run("unknown tag", func(t *testing.T) {
		data := minimalLevelData()
		data[offGameMode], data[offGameMode+1] = 'X', 'Y'

		_, err := DecodeLevel(data)
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestDecodeLevelBadOrdinals(t *testing.T) {
	t.Run("theme", func(t *testing.T) {
		data := minimalLevelData()
		data[offTheme] = uint8(ThemeGhostHouse) + 1

		_, err := DecodeLevel(data)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("auto-scroll", func(t *testing.T) {
		data := minimalLevelData()
		data[offAutoScroll] = uint8(AutoScrollFast) + 1

		_, err := DecodeLevel(data)
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestDecodeLevelBadCalendar(t *testing.T) {
	for name, patch := range map[string]func([]byte){
		"month zero":    func(d []byte) { d[offCreated+2] = 0 },
		"month 13":      func(d []byte) { d[offCreated+2] = 13 },
		"day zero":      func(d []byte) { d[offCreated+3] = 0 },
		"day 30 in feb": func(d []byte) { d[offCreated+2] = 2; d[offCreated+3] = 30 },
		"hour 24":       func(d []byte) { d[offCreated+4] = 24 },
		"minute 60":     func(d []byte) { d[offCreated+5] = 60 },
	} {
		t.Run(name, func(t *testing.T) {
			data := minimalLevelData()
			patch(data)

			_, err := DecodeLevel(data)
			assert.ErrorIs(t, err, ErrInvalidData)
		})
	}
}

func TestLevelEncodeBounds(t *testing.T) {
	t.Run("too many objects", func(t *testing.T) {
		l := makeTestLevel()
		l.Objects = make([]Object, ObjectCapacity+1)

		_, err := l.Encode()
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("full object table", func(t *testing.T) {
		l := makeTestLevel()
		l.Objects = make([]Object, ObjectCapacity)

		_, err := l.Encode()
		assert.NoError(t, err)
	})

	t.Run("too many sound effects", func(t *testing.T) {
		l := makeTestLevel()
		l.SoundEffects = make([]SoundEffect, SoundEffectCount+1)

		_, err := l.Encode()
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("unknown game mode", func(t *testing.T) {
		l := makeTestLevel()
		l.GameMode = GameMode(42)

		_, err := l.Encode()
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("unknown theme", func(t *testing.T) {
		l := makeTestLevel()
		l.CourseTheme = CourseTheme(42)

		_, err := l.Encode()
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("unknown auto-scroll", func(t *testing.T) {
		l := makeTestLevel()
		l.AutoScroll = AutoScroll(42)

		_, err := l.Encode()
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestLevelNameField(t *testing.T) {
	t.Run("boundary 32 chars", func(t *testing.T) {
		l := makeTestLevel()
		l.Name = strings.Repeat("A", MaxNameLength)

		data, err := l.Encode()
		require.NoError(t, err)

		assert.Equal(t, []byte{0x00, 'A'}, data[offName+62:offName+64], "last name unit")
		assert.Equal(t, []byte{0x00, 0x00}, data[offName+64:offName+66], "terminator")

		dec, err := DecodeLevel(data)
		require.NoError(t, err)
		assert.Equal(t, l.Name, dec.Name)
	})

	t.Run("too long", func(t *testing.T) {
		l := makeTestLevel()
		l.Name = strings.Repeat("A", MaxNameLength+1)

		_, err := l.Encode()
		assert.ErrorIs(t, err, ErrNameTooLong)
	})

	t.Run("outside the BMP", func(t *testing.T) {
		l := makeTestLevel()
		l.Name = "MARIO \U0001F344"

		_, err := l.Encode()
		assert.ErrorIs(t, err, ucs2.ErrUnencodable)
	})

	t.Run("embedded zero unit", func(t *testing.T) {
		l := makeTestLevel()
		l.Name = "MARIO\x00WORLD"

		_, err := l.Encode()
		assert.ErrorIs(t, err, ucs2.ErrUnencodable)
	})

	t.Run("japanese round trip", func(t *testing.T) {
		l := makeTestLevel()
		l.Name = "マリオのコース"

		data, err := l.Encode()
		require.NoError(t, err)

		dec, err := DecodeLevel(data)
		require.NoError(t, err)
		assert.Equal(t, l.Name, dec.Name)
	})

	t.Run("unterminated field decodes whole field", func(t *testing.T) {
		data := minimalLevelData()
		for i := 0; i < nameUnits; i++ {
			data[offName+i*2+1] = 'A'
		}

		l, err := DecodeLevel(data)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("A", nameUnits), l.Name)
	})
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "Super Mario World", GameModeSuperMarioWorld.String())
	assert.Equal(t, "GameMode(9)", GameMode(9).String())
	assert.Equal(t, "ghost house", ThemeGhostHouse.String())
	assert.Equal(t, "CourseTheme(99)", CourseTheme(99).String())
	assert.Equal(t, "medium", AutoScrollMedium.String())
	assert.Equal(t, "AutoScroll(7)", AutoScroll(7).String())
}

func TestBlockDimensions(t *testing.T) {
	l := &Level{Width: 3840}
	assert.Equal(t, uint32(240), l.BlockWidth())
	assert.Equal(t, uint32(27), l.BlockHeight())
}

func TestNewLevel(t *testing.T) {
	l := NewLevel()
	assert.Equal(t, uint64(LevelVersion), l.Version)
	assert.Len(t, l.SoundEffects, SoundEffectCount)
	assert.Empty(t, l.Objects)
	assert.Zero(t, l.CreationTime.Second())
}
