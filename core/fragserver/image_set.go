package fragserver

import (
	"errors"
	"fmt"
	"os"

	"github.com/pyropy/paster/core/container"
	"github.com/pyropy/paster/lib/compress"
)

var ErrTooManyStrips = errors.New("more strips than image rows")

// ImageSet is one source image pre-cut into encoded strips. Strip i holds
// rows in top-to-bottom order, so i is the strip's sequence number.
type ImageSet struct {
	Header container.Header
	Strips [][]byte
}

// Split cuts img into n strips of near equal height. The first
// height%n strips get one extra row.
func Split(img *container.Image, n int) (*ImageSet, error) {
	h := img.Header
	if h.Interlace != 0 {
		return nil, errors.New("interlaced images cannot be split")
	}
	if h.Channels() == 0 {
		return nil, fmt.Errorf("unsupported color type %d", h.ColorType)
	}
	if n <= 0 || n > int(h.Height) {
		return nil, fmt.Errorf("%w: %d strips, %d rows", ErrTooManyStrips, n, h.Height)
	}

	raw, err := compress.Inflate(img.Pixels.Data)
	if err != nil {
		return nil, err
	}
	if len(raw) != h.StreamSize() {
		return nil, fmt.Errorf("pixel stream is %d bytes, want %d", len(raw), h.StreamSize())
	}

	stride := h.RowBytes() + 1
	base, extra := int(h.Height)/n, int(h.Height)%n

	set := &ImageSet{Header: h, Strips: make([][]byte, 0, n)}

	row := 0
	for i := 0; i < n; i++ {
		rows := base
		if i < extra {
			rows++
		}

		payload, err := compress.Deflate(raw[row*stride : (row+rows)*stride])
		if err != nil {
			return nil, err
		}

		strip := h
		strip.Height = uint32(rows)
		set.Strips = append(set.Strips, container.Encode(strip, container.NewChunk(container.TypeIDAT, payload), img.End))

		row += rows
	}

	return set, nil
}

// LoadFile splits the container stored at path.
func LoadFile(path string, n int) (*ImageSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	img, err := container.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return Split(img, n)
}

// Pattern generates an opaque RGBA test image whose colors depend on the
// row, column and seed.
func Pattern(width, height int, seed uint8) (*container.Image, error) {
	h := container.Header{
		Width:     uint32(width),
		Height:    uint32(height),
		BitDepth:  8,
		ColorType: container.ColorRGBA,
	}

	stride := h.RowBytes() + 1
	raw := make([]byte, h.StreamSize())
	for y := 0; y < height; y++ {
		line := raw[y*stride : (y+1)*stride]
		line[0] = 0
		for x := 0; x < width; x++ {
			px := line[1+x*4 : 1+x*4+4]
			px[0] = uint8(x*255/max(width-1, 1)) ^ seed
			px[1] = uint8(y * 255 / max(height-1, 1))
			px[2] = seed * 40
			px[3] = 0xFF
		}
	}

	payload, err := compress.Deflate(raw)
	if err != nil {
		return nil, err
	}

	return &container.Image{
		Header: h,
		Pixels: container.NewChunk(container.TypeIDAT, payload),
		End:    container.NewChunk(container.TypeIEND, nil),
	}, nil
}
