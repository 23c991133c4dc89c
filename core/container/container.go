package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// SignatureSize is the length of the fixed file signature.
const SignatureSize = 8

// Signature is the fixed PNG file prefix.
var Signature = [SignatureSize]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// Image is a decoded container. Pixels holds the image data exactly as
// transmitted (compressed); decoding never inflates it.
type Image struct {
	Header Header
	Pixels Chunk
	End    Chunk
}

// Decode parses a complete container from buf. The first record must be
// IHDR; IDAT records are merged in file order into one Pixels record; the
// last record must be IEND. Other record types are skipped.
func Decode(buf []byte) (*Image, error) {
	if len(buf) < SignatureSize || !bytes.Equal(buf[:SignatureSize], Signature[:]) {
		return nil, &DecodeError{Offset: 0, Err: ErrBadSignature}
	}

	r := NewChunkReader(buf, SignatureSize)

	first, err := r.Next()
	if err != nil {
		return nil, err
	}
	if first.Type != TypeIHDR {
		return nil, &DecodeError{Offset: SignatureSize, Type: first.TypeName(), Err: ErrMissingHeader}
	}

	header, err := ParseHeader(first.Data)
	if err != nil {
		return nil, &DecodeError{Offset: SignatureSize, Type: first.TypeName(), Err: err}
	}

	img := &Image{Header: header}

	var (
		pixels  []byte
		hasData bool
		hasEnd  bool
	)

	for r.More() && !hasEnd {
		offset := r.Offset()

		c, err := r.Next()
		if err != nil {
			return nil, err
		}

		switch c.Type {
		case TypeIDAT:
			pixels = append(pixels, c.Data...)
			hasData = true
		case TypeIEND:
			img.End = c
			hasEnd = true
		case TypeIHDR:
			return nil, &DecodeError{Offset: offset, Type: c.TypeName(), Err: errors.New("duplicate IHDR")}
		}
	}

	if !hasData {
		return nil, &DecodeError{Offset: r.Offset(), Type: "IDAT", Err: ErrMissingChunk}
	}
	if !hasEnd {
		return nil, &DecodeError{Offset: r.Offset(), Type: "IEND", Err: ErrMissingChunk}
	}

	img.Pixels = NewChunk(TypeIDAT, pixels)

	return img, nil
}

// Encode serializes a container with one IHDR built from header, then the
// pixels and end records. All lengths and checksums are written fresh in
// network byte order.
func Encode(header Header, pixels, end Chunk) []byte {
	ihdr := header.Bytes()

	size := SignatureSize + 3*recordOverhead + len(ihdr) + len(pixels.Data) + len(end.Data)
	out := make([]byte, 0, size)

	out = append(out, Signature[:]...)
	out = AppendChunk(out, TypeIHDR, ihdr)
	out = AppendChunk(out, pixels.Type, pixels.Data)
	out = AppendChunk(out, end.Type, end.Data)

	return out
}

// Encode serializes img.
func (img *Image) Encode() []byte {
	return Encode(img.Header, img.Pixels, img.End)
}

// HasSignature reports whether r starts with the container signature.
// Inputs shorter than the signature are not an error.
func HasSignature(r io.Reader) (bool, error) {
	var sig [SignatureSize]byte

	_, err := io.ReadFull(r, sig[:])
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read signature: %w", err)
	}

	return sig == Signature, nil
}
