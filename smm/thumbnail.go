package smm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"
)

// Thumbnail container layout: u32 checksum over everything after it, u32
// payload length, payload, zero padding to ThumbnailSize.
const (
	offThumbChecksum = 0x00
	offThumbLength   = 0x04
	offThumbPayload  = 0x08
)

const (
	// ThumbnailSize is the fixed wire size of a thumbnail container (*.tnl)
	ThumbnailSize = 0xC800
	// MaxJPEGLength is the largest payload fitting the container
	MaxJPEGLength = ThumbnailSize - offThumbPayload

	// Bounds of the in-game course banner, images larger than this are
	// scaled down before compression
	thumbnailMaxWidth  = 768
	thumbnailMaxHeight = 432
)

// jpegQualities are tried highest first until the compressed payload fits
// the container
var jpegQualities = []int{95, 85, 75, 65, 55, 45}

// Thumbnail is the image payload of a thumbnail container. The payload is
// treated as opaque bytes by the codec, Image and ThumbnailFromImage exist
// for callers wanting the decompressed picture.
type Thumbnail struct {
	JPEG []byte
}

// DecodeThumbnail parses a thumbnail container. Only the length prefix and
// the payload are read, the checksum and any trailing padding are ignored.
func DecodeThumbnail(data []byte) (*Thumbnail, error) {
	if len(data) < offThumbPayload {
		return nil, fmt.Errorf("thumbnail data is %d bytes, expected at least %d: %w", len(data), offThumbPayload, ErrInvalidData)
	}

	length := binary.BigEndian.Uint32(data[offThumbLength:])
	if int64(length) > int64(len(data)-offThumbPayload) {
		return nil, fmt.Errorf("payload length %d exceeds the %d available bytes: %w", length, len(data)-offThumbPayload, ErrInvalidData)
	}

	payload := make([]byte, length)
	copy(payload, data[offThumbPayload:])

	return &Thumbnail{JPEG: payload}, nil
}

// Encode serializes the thumbnail into its fixed-size wire form. The
// checksum is computed over the finished content and written last.
func (t *Thumbnail) Encode() ([]byte, error) {
	if len(t.JPEG) > MaxJPEGLength {
		return nil, fmt.Errorf("payload is %d bytes, maximum is %d: %w", len(t.JPEG), MaxJPEGLength, ErrTooLarge)
	}

	data := make([]byte, ThumbnailSize)

	binary.BigEndian.PutUint32(data[offThumbLength:], uint32(len(t.JPEG))) //#nosec:G115 // bounded by MaxJPEGLength above
	copy(data[offThumbPayload:], t.JPEG)

	binary.BigEndian.PutUint32(data[offThumbChecksum:], crc32.ChecksumIEEE(data[offThumbLength:]))

	return data, nil
}

// VerifyThumbnailChecksum recomputes the CRC-32 a thumbnail container
// carries and compares it against the stored one. Decoding does not depend
// on the checksum, this is an optional corruption signal.
func VerifyThumbnailChecksum(data []byte) error {
	if len(data) < offThumbPayload {
		return fmt.Errorf("thumbnail data is %d bytes, expected at least %d: %w", len(data), offThumbPayload, ErrInvalidData)
	}

	var (
		stored   = binary.BigEndian.Uint32(data[offThumbChecksum:])
		computed = crc32.ChecksumIEEE(data[offThumbLength:])
	)

	if stored != computed {
		return fmt.Errorf("stored 0x%08x, computed 0x%08x: %w", stored, computed, ErrChecksumMismatch)
	}

	return nil
}

// Image decompresses the payload
func (t *Thumbnail) Image() (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(t.JPEG))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg payload: %w", err)
	}

	return img, nil
}

// ThumbnailFromImage compresses an image into a thumbnail. Images larger
// than the banner bounds are scaled down first, then the quality is lowered
// step by step until the payload fits the container.
func ThumbnailFromImage(img image.Image) (*Thumbnail, error) {
	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("image is empty: %w", ErrInvalidData)
	}

	if bounds.Dx() > thumbnailMaxWidth || bounds.Dy() > thumbnailMaxHeight {
		scale := math.Min(
			float64(thumbnailMaxWidth)/float64(bounds.Dx()),
			float64(thumbnailMaxHeight)/float64(bounds.Dy()),
		)

		w := int(float64(bounds.Dx()) * scale)
		h := int(float64(bounds.Dy()) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	for _, quality := range jpegQualities {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("compressing image: %w", err)
		}

		if buf.Len() <= MaxJPEGLength {
			return &Thumbnail{JPEG: buf.Bytes()}, nil
		}
	}

	return nil, fmt.Errorf("image does not fit %d bytes at any quality: %w", MaxJPEGLength, ErrTooLarge)
}
