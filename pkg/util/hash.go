// Package util holds small helpers shared between the grp, analyze and
// pngbridge packages.
package util

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// Hash returns a stable content hash for a pixel grid (or any other byte
// blob used as a dedup key). It is not required to be collision-resistant
// against adversarial input; GRP archives are small, hundreds of frames at
// most, so md5's cost is negligible next to the correctness value of a
// well-understood hash.
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// HashDims folds x/y position and width/height into the hash so that metadata-sensitive
// dedup (Uncompressed/War1 variants, see pkg/grp FrameBuilder) can key on
// pixels plus geometry without string-concatenating fields by hand.
func HashDims(data []byte, x, y, w, h int) string {
	hasher := md5.New()
	hasher.Write(data)
	var dims [16]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(x))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(y))
	binary.LittleEndian.PutUint32(dims[8:12], uint32(w))
	binary.LittleEndian.PutUint32(dims[12:16], uint32(h))
	hasher.Write(dims[:])
	return hex.EncodeToString(hasher.Sum(nil))
}

// GroupLabel turns a content hash into a short, human-readable label for
// duplicate-group reports (Analyzer, PngBridge egress dedup logging). The
// label is deterministic: the same hash always yields the same label, so
// repeated runs over the same file produce stable report text.
func GroupLabel(hash string) string {
	sum := md5.Sum([]byte(hash))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		return hash
	}
	return "dup-" + id.String()[:8]
}
