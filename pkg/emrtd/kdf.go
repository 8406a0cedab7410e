package emrtd

import "encoding/binary"

// KDF counter values (ICAO 9303 part 11 §9.7.1).
const (
	KDFCounterEnc    = 1
	KDFCounterMac    = 2
	KDFCounterPaceKpi = 3
)

// DeriveKey implements the ICAO KDF: hash(sharedSecret || big-endian-32(counter)),
// truncated to the cipher's key length. No expansion is performed: the
// digest must be at least as long as the key, which SHA-1's 20 bytes are
// not for AES-192 or AES-256. Three-key 3DES (24-byte
// material) reuses the same two-key derivation as 16-byte 3DES per ICAO
// 9303 (no deployed eMRTD cipher suite actually requests it).
func DeriveKey(sharedSecret []byte, counter uint32, kind CipherKind, hashKind HashKind) []byte {
	h := newHasher(hashKind)
	h.Write(sharedSecret)
	var ctr [4]byte
	binary.BigEndian.PutUint32(ctr[:], counter)
	h.Write(ctr[:])
	digest := h.Sum(nil)

	keyLen := kind.KeyLen()
	switch kind {
	case CipherDESede:
		return adjustDESParity(digest[:keyLen])
	default:
		return digest[:keyLen]
	}
}

// adjustDESParity sets odd parity on each byte, as DES key material
// conventionally carries (ignored by crypto/des but kept for fidelity with
// keys exported for inspection or handed to external HSMs).
func adjustDESParity(key []byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		var ones int
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				ones++
			}
		}
		if ones%2 == 0 {
			b ^= 1
		}
		out[i] = b
	}
	return out
}
