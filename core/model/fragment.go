package model

import "github.com/pyropy/paster/core/container"

// Fragment is one decoded strip of the final image. Sequence is the strip's
// vertical position counted from the top.
type Fragment struct {
	Sequence uint32
	Header   container.Header
	Pixels   container.Chunk // compressed image data
	End      container.Chunk
}

// NewFragment wraps a decoded container as the strip at sequence.
func NewFragment(sequence uint32, img *container.Image) Fragment {
	return Fragment{
		Sequence: sequence,
		Header:   img.Header,
		Pixels:   img.Pixels,
		End:      img.End,
	}
}
