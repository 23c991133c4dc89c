package container

import (
	"errors"
	"fmt"
)

var (
	ErrBadSignature     = errors.New("container: bad signature")
	ErrTruncatedRecord  = errors.New("container: truncated record")
	ErrChecksumMismatch = errors.New("container: checksum mismatch")
	ErrMissingHeader    = errors.New("container: first record is not a valid IHDR")
	ErrMissingChunk     = errors.New("container: required record missing")
)

// DecodeError reports where in the input buffer decoding failed.
// Use errors.Is against the sentinel errors above to classify it.
type DecodeError struct {
	Offset int    // byte offset of the failing record
	Type   string // chunk type, empty if it could not be read
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("decode %s at offset %d: %v", e.Type, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
