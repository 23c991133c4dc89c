package container

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length of IHDR data.
const HeaderSize = 13

// PNG color types.
const (
	ColorGray      uint8 = 0
	ColorRGB       uint8 = 2
	ColorPalette   uint8 = 3
	ColorGrayAlpha uint8 = 4
	ColorRGBA      uint8 = 6
)

// Header is the decoded IHDR record.
type Header struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	ColorType   uint8
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

// ParseHeader decodes IHDR data: width and height as big-endian uint32
// followed by five single-byte fields.
func ParseHeader(data []byte) (Header, error) {
	if len(data) != HeaderSize {
		return Header{}, fmt.Errorf("%w: IHDR length %d", ErrMissingHeader, len(data))
	}

	return Header{
		Width:       binary.BigEndian.Uint32(data[0:4]),
		Height:      binary.BigEndian.Uint32(data[4:8]),
		BitDepth:    data[8],
		ColorType:   data[9],
		Compression: data[10],
		Filter:      data[11],
		Interlace:   data[12],
	}, nil
}

// Bytes encodes h as IHDR data in network byte order.
func (h Header) Bytes() []byte {
	b := make([]byte, 0, HeaderSize)
	b = binary.BigEndian.AppendUint32(b, h.Width)
	b = binary.BigEndian.AppendUint32(b, h.Height)

	return append(b, h.BitDepth, h.ColorType, h.Compression, h.Filter, h.Interlace)
}

// Channels returns the number of samples per pixel, or 0 for an unknown
// color type.
func (h Header) Channels() int {
	switch h.ColorType {
	case ColorGray, ColorPalette:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGB:
		return 3
	case ColorRGBA:
		return 4
	default:
		return 0
	}
}

// RowBytes returns the length of one unfiltered scanline.
func (h Header) RowBytes() int {
	bits := int(h.Width) * h.Channels() * int(h.BitDepth)

	return (bits + 7) / 8
}

// StreamSize returns the length of the inflated pixel stream of a
// non-interlaced image: one filter byte plus RowBytes per row.
func (h Header) StreamSize() int {
	return int(h.Height) * (h.RowBytes() + 1)
}

// SameLayout reports whether two headers describe rows that can be
// stacked: every field except height must match.
func (h Header) SameLayout(o Header) bool {
	h.Height, o.Height = 0, 0
	return h == o
}
