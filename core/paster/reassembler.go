package paster

import (
	"errors"
	"fmt"

	"github.com/pyropy/paster/core/container"
	"github.com/pyropy/paster/core/model"
	"github.com/pyropy/paster/lib/compress"
)

var (
	ErrNoFragments    = errors.New("no fragments to assemble")
	ErrLayoutMismatch = errors.New("fragment layout does not match first fragment")
	ErrStreamSize     = errors.New("inflated stream size does not match header")
)

// ReassemblyError is fatal for a run: no output is written.
type ReassemblyError struct {
	Sequence uint32
	Err      error
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("reassemble fragment %d: %v", e.Sequence, e.Err)
}

func (e *ReassemblyError) Unwrap() error {
	return e.Err
}

// AssembledImage is the stitched result of all fragments.
type AssembledImage struct {
	Header  container.Header
	Pixels  []byte // inflated scanlines in sequence order
	Payload []byte // Pixels deflated as one stream
	Encoded []byte // complete container
}

// Build assembles the fragments of a complete table.
func Build(table *FragmentTable) (*AssembledImage, error) {
	fragments, err := table.Snapshot()
	if err != nil {
		return nil, err
	}

	return Assemble(fragments)
}

// Assemble stacks fragments top to bottom in slice order. Every fragment
// must share the first fragment's layout; heights are summed.
func Assemble(fragments []model.Fragment) (*AssembledImage, error) {
	if len(fragments) == 0 {
		return nil, &ReassemblyError{Err: ErrNoFragments}
	}

	first := fragments[0]
	header := first.Header
	header.Height = 0

	var pixels []byte
	for _, f := range fragments {
		if !f.Header.SameLayout(first.Header) {
			return nil, &ReassemblyError{Sequence: f.Sequence, Err: ErrLayoutMismatch}
		}

		raw, err := compress.Inflate(f.Pixels.Data)
		if err != nil {
			return nil, &ReassemblyError{Sequence: f.Sequence, Err: err}
		}

		if f.Header.Interlace == 0 && f.Header.Channels() > 0 && len(raw) != f.Header.StreamSize() {
			return nil, &ReassemblyError{
				Sequence: f.Sequence,
				Err:      fmt.Errorf("%w: got %d bytes, want %d", ErrStreamSize, len(raw), f.Header.StreamSize()),
			}
		}

		pixels = append(pixels, raw...)
		header.Height += f.Header.Height
	}

	payload, err := compress.Deflate(pixels)
	if err != nil {
		return nil, &ReassemblyError{Sequence: first.Sequence, Err: err}
	}

	idat := container.NewChunk(container.TypeIDAT, payload)
	iend := container.NewChunk(first.End.Type, first.End.Data)

	return &AssembledImage{
		Header:  header,
		Pixels:  pixels,
		Payload: payload,
		Encoded: container.Encode(header, idat, iend),
	}, nil
}
