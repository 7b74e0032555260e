package smm

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"time"

	"github.com/Luzifer/smm-extract/ucs2"
)

const (
	// LevelSize is the fixed wire size of a level file (course_data.cdt)
	LevelSize = 0x15000
	// LevelVersion is the only format version observed so far
	LevelVersion = 0xB
	// MaxNameLength is the maximum course name length in characters
	MaxNameLength = 32
	// ObjectCapacity is the number of object slots reserved in the wire
	// format regardless of how many objects a level actually contains
	ObjectCapacity = 2600
	// SoundEffectCount is the fixed size of the sound effect table
	SoundEffectCount = 300
)

// Level file layout. Multi-byte integers are big-endian, all regions not
// listed here are reserved and zero.
const (
	offVersion     = 0x00 // u64
	offChecksum    = 0x08 // u32, CRC-32 of everything from checksumStart on
	offCreated     = 0x10 // u16 year, u8 month, u8 day, u8 hour, u8 minute
	offName        = 0x28 // nameUnits UCS-2 code units incl. zero terminator
	offGameMode    = 0x6A // 2 ASCII bytes
	offTheme       = 0x6D // u8 ordinal
	offTimeLimit   = 0x70 // u16
	offAutoScroll  = 0x72 // u8 ordinal
	offFlags       = 0x73 // u8
	offWidth       = 0x74 // u32
	offMiiData     = 0x78 // 0x60 opaque bytes
	offObjectCount = 0xEC // u32
	offObjects     = 0xF0 // ObjectSize * ObjectCapacity reserved
	offSoundTable  = 0x145F0

	checksumStart = 0x10

	nameUnits = MaxNameLength + 1
)

type (
	// GameMode selects the game a level is played in
	GameMode uint8
	// CourseTheme selects the visual theme of a level
	CourseTheme uint8
	// AutoScroll selects the automatic camera scroll speed
	AutoScroll uint8
)

const (
	GameModeSuperMarioBros GameMode = iota
	GameModeSuperMarioBros3
	GameModeSuperMarioWorld
	GameModeNewSuperMarioBrosU
)

const (
	ThemeOverworld CourseTheme = iota
	ThemeUnderground
	ThemeCastle
	ThemeAirship
	ThemeWater
	ThemeGhostHouse
)

const (
	AutoScrollNone AutoScroll = iota
	AutoScrollSlow
	AutoScrollMedium
	AutoScrollFast
)

// gameModeTags maps each game mode to its 2-byte ASCII wire tag
var gameModeTags = map[GameMode][2]byte{
	GameModeSuperMarioBros:     {'M', '1'},
	GameModeSuperMarioBros3:    {'M', '3'},
	GameModeSuperMarioWorld:    {'M', 'W'},
	GameModeNewSuperMarioBrosU: {'W', 'U'},
}

var (
	gameModeNames = map[GameMode]string{
		GameModeSuperMarioBros:     "Super Mario Bros.",
		GameModeSuperMarioBros3:    "Super Mario Bros. 3",
		GameModeSuperMarioWorld:    "Super Mario World",
		GameModeNewSuperMarioBrosU: "New Super Mario Bros. U",
	}

	themeNames = [...]string{"overworld", "underground", "castle", "airship", "water", "ghost house"}

	autoScrollNames = [...]string{"none", "slow", "medium", "fast"}
)

func (g GameMode) String() string {
	if name, ok := gameModeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("GameMode(%d)", uint8(g))
}

func (c CourseTheme) String() string {
	if int(c) < len(themeNames) {
		return themeNames[c]
	}
	return fmt.Sprintf("CourseTheme(%d)", uint8(c))
}

func (a AutoScroll) String() string {
	if int(a) < len(autoScrollNames) {
		return autoScrollNames[a]
	}
	return fmt.Sprintf("AutoScroll(%d)", uint8(a))
}

func gameModeFromTag(tag [2]byte) (GameMode, error) {
	for mode, t := range gameModeTags {
		if t == tag {
			return mode, nil
		}
	}

	return 0, fmt.Errorf("unknown game mode tag %q: %w", tag[:], ErrInvalidData)
}

// Level is the decoded form of one playable stage. Reserved wire regions
// are not represented: they are ignored on decode and zeroed on encode.
type Level struct {
	Version      uint64
	CreationTime time.Time // minute precision, no zone on the wire, decoded as UTC
	Name         string
	GameMode     GameMode
	CourseTheme  CourseTheme
	TimeLimit    uint16
	AutoScroll   AutoScroll
	Flags        uint8 // opaque bitfield, preserved but not interpreted
	Width        uint32
	MiiData      [0x60]byte
	Objects      []Object
	SoundEffects []SoundEffect
}

// NewLevel returns an empty stage with the current format version, the
// creation time set to now and the fixed-size sound effect table already
// allocated
func NewLevel() *Level {
	return &Level{
		Version:      LevelVersion,
		CreationTime: time.Now().UTC().Truncate(time.Minute),
		SoundEffects: make([]SoundEffect, SoundEffectCount),
	}
}

// DecodeLevel parses a complete level file. The buffer must be exactly
// LevelSize bytes. The stored checksum is not validated, use
// VerifyLevelChecksum for that.
func DecodeLevel(data []byte) (*Level, error) {
	if len(data) != LevelSize {
		return nil, fmt.Errorf("level data is %d bytes, expected %d: %w", len(data), LevelSize, ErrInvalidData)
	}

	out := &Level{
		Version: binary.BigEndian.Uint64(data[offVersion:]),
	}

	var (
		year   = int(binary.BigEndian.Uint16(data[offCreated:]))
		month  = time.Month(data[offCreated+2])
		day    = int(data[offCreated+3])
		hour   = int(data[offCreated+4])
		minute = int(data[offCreated+5])
	)

	// time.Date normalizes out-of-range fields instead of failing, so an
	// invalid wire date is caught by comparing the fields after the fact
	out.CreationTime = time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	if out.CreationTime.Year() != year || out.CreationTime.Month() != month ||
		out.CreationTime.Day() != day || out.CreationTime.Hour() != hour ||
		out.CreationTime.Minute() != minute {
		return nil, fmt.Errorf("invalid creation time %04d-%02d-%02d %02d:%02d: %w",
			year, month, day, hour, minute, ErrInvalidData)
	}

	name, err := decodeName(data[offName : offName+nameUnits*2])
	if err != nil {
		return nil, fmt.Errorf("decoding course name: %w", err)
	}
	out.Name = name

	if out.GameMode, err = gameModeFromTag([2]byte{data[offGameMode], data[offGameMode+1]}); err != nil {
		return nil, err
	}

	out.CourseTheme = CourseTheme(data[offTheme])
	if out.CourseTheme > ThemeGhostHouse {
		return nil, fmt.Errorf("unknown course theme ordinal %d: %w", data[offTheme], ErrInvalidData)
	}

	out.TimeLimit = binary.BigEndian.Uint16(data[offTimeLimit:])

	out.AutoScroll = AutoScroll(data[offAutoScroll])
	if out.AutoScroll > AutoScrollFast {
		return nil, fmt.Errorf("unknown auto-scroll ordinal %d: %w", data[offAutoScroll], ErrInvalidData)
	}

	out.Flags = data[offFlags]
	out.Width = binary.BigEndian.Uint32(data[offWidth:])
	copy(out.MiiData[:], data[offMiiData:offMiiData+len(out.MiiData)])

	count := binary.BigEndian.Uint32(data[offObjectCount:])
	if count > ObjectCapacity {
		return nil, fmt.Errorf("object count %d exceeds table capacity %d: %w", count, ObjectCapacity, ErrInvalidData)
	}

	out.Objects = make([]Object, 0, count)
	for i := 0; i < int(count); i++ {
		obj, err := DecodeObject(data[offObjects+i*ObjectSize : offObjects+(i+1)*ObjectSize])
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		out.Objects = append(out.Objects, obj)
	}

	out.SoundEffects = make([]SoundEffect, 0, SoundEffectCount)
	for i := 0; i < SoundEffectCount; i++ {
		effect, err := DecodeSoundEffect(data[offSoundTable+i*SoundEffectSize : offSoundTable+(i+1)*SoundEffectSize])
		if err != nil {
			return nil, fmt.Errorf("sound effect %d: %w", i, err)
		}
		out.SoundEffects = append(out.SoundEffects, effect)
	}

	return out, nil
}

// Encode serializes the level into its fixed-size wire form. The checksum
// is computed over the finished buffer and written last.
func (l *Level) Encode() ([]byte, error) {
	if len(l.Objects) > ObjectCapacity {
		return nil, fmt.Errorf("%d objects exceed the reserved table capacity of %d: %w", len(l.Objects), ObjectCapacity, ErrTooLarge)
	}

	if len(l.SoundEffects) > SoundEffectCount {
		return nil, fmt.Errorf("%d sound effects exceed the table size of %d: %w", len(l.SoundEffects), SoundEffectCount, ErrTooLarge)
	}

	nameField, err := encodeName(l.Name)
	if err != nil {
		return nil, fmt.Errorf("encoding course name: %w", err)
	}

	tag, ok := gameModeTags[l.GameMode]
	if !ok {
		return nil, fmt.Errorf("unknown game mode %d: %w", uint8(l.GameMode), ErrInvalidData)
	}

	if l.CourseTheme > ThemeGhostHouse {
		return nil, fmt.Errorf("unknown course theme %d: %w", uint8(l.CourseTheme), ErrInvalidData)
	}

	if l.AutoScroll > AutoScrollFast {
		return nil, fmt.Errorf("unknown auto-scroll %d: %w", uint8(l.AutoScroll), ErrInvalidData)
	}

	data := make([]byte, LevelSize)

	binary.BigEndian.PutUint64(data[offVersion:], l.Version)

	binary.BigEndian.PutUint16(data[offCreated:], uint16(l.CreationTime.Year())) //#nosec:G115 // the wire format allots 16 bits for the year
	data[offCreated+2] = uint8(l.CreationTime.Month())
	data[offCreated+3] = uint8(l.CreationTime.Day())
	data[offCreated+4] = uint8(l.CreationTime.Hour())
	data[offCreated+5] = uint8(l.CreationTime.Minute())

	copy(data[offName:], nameField)

	data[offGameMode], data[offGameMode+1] = tag[0], tag[1]
	data[offTheme] = uint8(l.CourseTheme)

	binary.BigEndian.PutUint16(data[offTimeLimit:], l.TimeLimit)

	data[offAutoScroll] = uint8(l.AutoScroll)
	data[offFlags] = l.Flags

	binary.BigEndian.PutUint32(data[offWidth:], l.Width)

	copy(data[offMiiData:], l.MiiData[:])

	binary.BigEndian.PutUint32(data[offObjectCount:], uint32(len(l.Objects)))
	for i, obj := range l.Objects {
		rec, err := obj.Encode()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		copy(data[offObjects+i*ObjectSize:], rec)
	}

	// Sound effect slots beyond the given entries stay zero which is
	// wire-identical to explicit zero records
	for i, effect := range l.SoundEffects {
		rec, err := effect.Encode()
		if err != nil {
			return nil, fmt.Errorf("sound effect %d: %w", i, err)
		}
		copy(data[offSoundTable+i*SoundEffectSize:], rec)
	}

	binary.BigEndian.PutUint32(data[offChecksum:], crc32.ChecksumIEEE(data[checksumStart:]))

	return data, nil
}

// VerifyLevelChecksum recomputes the CRC-32 a level file carries and
// compares it against the stored one. Decoding does not depend on the
// checksum, this is an optional corruption signal.
func VerifyLevelChecksum(data []byte) error {
	if len(data) != LevelSize {
		return fmt.Errorf("level data is %d bytes, expected %d: %w", len(data), LevelSize, ErrInvalidData)
	}

	var (
		stored   = binary.BigEndian.Uint32(data[offChecksum:])
		computed = crc32.ChecksumIEEE(data[checksumStart:])
	)

	if stored != computed {
		return fmt.Errorf("stored 0x%08x, computed 0x%08x: %w", stored, computed, ErrChecksumMismatch)
	}

	return nil
}

// BlockWidth is the stage width in blocks; the wire format stores the
// width in units of 1/16 block and caps stages at 240 blocks
func (l *Level) BlockWidth() uint32 { return l.Width / 16 }

// BlockHeight is the stage height in blocks, a format-wide constant
func (l *Level) BlockHeight() uint32 { return 27 }

// decodeName reads the fixed name field: UCS-2 code units up to the first
// zero unit
func decodeName(raw []byte) (string, error) {
	end := len(raw)
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			end = i
			break
		}
	}

	return ucs2.Decode(raw[:end])
}

// encodeName builds the fixed name field: the encoded name, a zero
// terminator and zero padding up to nameUnits code units. Names carrying
// U+0000 cannot be represented in the terminated field and fail with
// ucs2.ErrUnencodable.
func encodeName(name string) ([]byte, error) {
	if n := len([]rune(name)); n > MaxNameLength {
		return nil, fmt.Errorf("%d characters, maximum is %d: %w", n, MaxNameLength, ErrNameTooLong)
	}

	if strings.ContainsRune(name, 0x0000) {
		return nil, fmt.Errorf("name contains the zero code unit terminating the field: %w", ucs2.ErrUnencodable)
	}

	enc, err := ucs2.Encode(name)
	if err != nil {
		return nil, err
	}

	out := make([]byte, nameUnits*2)
	copy(out, enc)

	return out, nil
}
