package container

import (
	"encoding/binary"

	"github.com/pyropy/paster/lib/checksum"
)

const (
	lengthSize = 4
	typeSize   = 4
	crcSize    = 4

	// recordOverhead is the number of bytes a record adds around its data.
	recordOverhead = lengthSize + typeSize + crcSize
)

var (
	TypeIHDR = [4]byte{'I', 'H', 'D', 'R'}
	TypeIDAT = [4]byte{'I', 'D', 'A', 'T'}
	TypeIEND = [4]byte{'I', 'E', 'N', 'D'}
)

// Chunk is one length-prefixed, type-tagged, checksum-trailed record.
type Chunk struct {
	Length uint32
	Type   [4]byte
	Data   []byte
	CRC    uint32
}

// NewChunk builds a record with its length and checksum computed from data.
func NewChunk(chunkType [4]byte, data []byte) Chunk {
	return Chunk{
		Length: uint32(len(data)),
		Type:   chunkType,
		Data:   data,
		CRC:    checksum.CRC(chunkType, data),
	}
}

// Valid reports whether the stored checksum matches type and data.
func (c Chunk) Valid() bool {
	return c.CRC == checksum.CRC(c.Type, c.Data)
}

func (c Chunk) TypeName() string {
	return string(c.Type[:])
}

// Size returns the encoded size of the record in bytes.
func (c Chunk) Size() int {
	return recordOverhead + len(c.Data)
}

// AppendChunk appends the encoded record to dst. The checksum is always
// recomputed from type and data.
func AppendChunk(dst []byte, chunkType [4]byte, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, chunkType[:]...)
	dst = append(dst, data...)
	dst = binary.BigEndian.AppendUint32(dst, checksum.CRC(chunkType, data))

	return dst
}

// ChunkReader walks the records of a buffer positioned after the signature.
type ChunkReader struct {
	buf []byte
	off int
}

func NewChunkReader(buf []byte, offset int) *ChunkReader {
	return &ChunkReader{buf: buf, off: offset}
}

// More reports whether unread bytes remain.
func (r *ChunkReader) More() bool {
	return r.off < len(r.buf)
}

func (r *ChunkReader) Offset() int {
	return r.off
}

// Next reads one record and verifies its checksum. The returned data slice
// is a copy owned by the caller.
func (r *ChunkReader) Next() (Chunk, error) {
	start := r.off

	head, ok := r.take(lengthSize + typeSize)
	if !ok {
		return Chunk{}, &DecodeError{Offset: start, Err: ErrTruncatedRecord}
	}

	var c Chunk
	c.Length = binary.BigEndian.Uint32(head[:lengthSize])
	copy(c.Type[:], head[lengthSize:])

	if uint64(c.Length)+crcSize > uint64(len(r.buf)-r.off) {
		r.off = start
		return Chunk{}, &DecodeError{Offset: start, Type: c.TypeName(), Err: ErrTruncatedRecord}
	}

	data, _ := r.take(int(c.Length))
	trailer, _ := r.take(crcSize)

	c.Data = append([]byte(nil), data...)
	c.CRC = binary.BigEndian.Uint32(trailer)

	if !c.Valid() {
		return Chunk{}, &DecodeError{Offset: start, Type: c.TypeName(), Err: ErrChecksumMismatch}
	}

	return c, nil
}

func (r *ChunkReader) take(n int) ([]byte, bool) {
	if n < 0 || n > len(r.buf)-r.off {
		return nil, false
	}

	b := r.buf[r.off : r.off+n]
	r.off += n

	return b, true
}
