package checksum

import (
	"encoding/hex"
	"hash/crc32"

	"github.com/zeebo/blake3"
)

// CRC returns the CRC-32 (IEEE) of a chunk type followed by its data.
func CRC(chunkType [4]byte, data []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(chunkType[:])
	h.Write(data)

	return h.Sum32()
}

// Digest returns the hex encoded BLAKE3 hash of data. It is used to
// fingerprint written artifacts in logs.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}
