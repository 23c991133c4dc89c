package paster

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/pyropy/paster/core/container"
	"github.com/pyropy/paster/core/fetcher"
	"github.com/pyropy/paster/core/model"
	"github.com/pyropy/paster/lib/compress"
)

const testWidth = 4

// row returns one filtered RGBA scanline: a zero filter byte followed by
// testWidth pixels of value v.
func row(v byte) []byte {
	return append([]byte{0}, bytes.Repeat([]byte{v}, testWidth*4)...)
}

// encodeStrip returns a complete container holding rows stacked top to bottom.
func encodeStrip(t *testing.T, rows ...[]byte) []byte {
	t.Helper()

	h := container.Header{
		Width:     testWidth,
		Height:    uint32(len(rows)),
		BitDepth:  8,
		ColorType: container.ColorRGBA,
	}

	payload, err := compress.Deflate(bytes.Join(rows, nil))
	if err != nil {
		t.Fatalf("Deflate: %v", err)
	}

	return container.Encode(h, container.NewChunk(container.TypeIDAT, payload), container.NewChunk(container.TypeIEND, nil))
}

func fragment(t *testing.T, seq uint32, rows ...[]byte) model.Fragment {
	t.Helper()

	f, err := DecodeFragment(&fetcher.Response{Body: encodeStrip(t, rows...), Sequence: int64(seq)})
	if err != nil {
		t.Fatalf("DecodeFragment: %v", err)
	}

	return f
}

// stripRows is the content of strip seq in test image sets: two rows whose
// pixel values identify the strip.
func stripRows(seq int) [][]byte {
	return [][]byte{row(byte(seq * 2)), row(byte(seq*2 + 1))}
}

// fetchFunc adapts a function to the Fetcher interface.
type fetchFunc func(ctx context.Context, url string) (*fetcher.Response, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (*fetcher.Response, error) {
	return f(ctx, url)
}

// scriptFetcher replays responses in order and then repeats the last one.
type scriptFetcher struct {
	mu        sync.Mutex
	responses []*fetcher.Response
	calls     int
}

func (s *scriptFetcher) Fetch(context.Context, string) (*fetcher.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++

	return s.responses[i], nil
}

func (s *scriptFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}
