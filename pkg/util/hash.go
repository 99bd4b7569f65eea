package util

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Fingerprint hashes the parts into a hex sha256. Each part is length-prefixed
// so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
