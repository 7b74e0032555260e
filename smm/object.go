package smm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ObjectSize is the fixed wire size of a placed object record
const ObjectSize = 0x20

// Object is one placed entity inside a level. The wire form is 32 bytes,
// big-endian, field order as declared:
//
//	00  u32  X position (stored at 10x the block coordinate)
//	04  u32  Z position (10x)
//	08  s16  Y position (10x)
//	0A  s8   Width (in blocks)
//	0B  s8   Height (in blocks)
//	0C  u32  Object flags
//	10  u32  Child object flags
//	14  u32  Extended object data (meaning depends on the object type)
//	18  s8   Object type
//	19  s8   Child object type
//	1A  s16  Link ID (-1 = unlinked; shared by linked objects such as pipe ends)
//	1C  s16  Sound effect index (-1 = none)
//	1E  s8   Transformation ID
//	1F  s8   Child object transformation ID
//
// Every bit pattern is a legal value for every field; the codec does not
// interpret flags, types or linkage.
type Object struct {
	X, Z                  uint32
	Y                     int16
	Width, Height         int8
	Flags                 uint32
	ChildFlags            uint32
	ExtendedData          uint32
	Type                  int8
	ChildType             int8
	LinkID                int16
	EffectIndex           int16
	TransformationID      int8
	ChildTransformationID int8
}

// DecodeObject parses a single 32-byte object record
func DecodeObject(data []byte) (Object, error) {
	var o Object

	if len(data) != ObjectSize {
		return o, fmt.Errorf("object record is %d bytes, expected %d: %w", len(data), ObjectSize, ErrInvalidData)
	}

	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, &o); err != nil {
		return o, fmt.Errorf("reading object record: %w", err)
	}

	return o, nil
}

// Encode serializes the object into its 32-byte wire form
func (o Object) Encode() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, ObjectSize))

	if err := binary.Write(buf, binary.BigEndian, o); err != nil {
		return nil, fmt.Errorf("writing object record: %w", err)
	}

	return buf.Bytes(), nil
}
