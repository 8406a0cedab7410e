package emrtd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"
)

// ActiveAuthPublicKey is DG15's SubjectPublicKeyInfo, parsed to either an
// RSA or an EC public key (ICAO 9303 allows either for Active
// Authentication).
type ActiveAuthPublicKey struct {
	RSA *rsa.PublicKey
	EC  *ecdsa.PublicKey
}

// AAVerdict reports the outcome of an Active Authentication challenge.
type AAVerdict struct {
	Verified bool
	Nonce    []byte
}

// PerformActiveAuthentication challenges the chip to prove possession of
// the private key corresponding to DG15's public key (ICAO 9303 part 11
// §6.1): an 8-byte random nonce is sent via INTERNAL AUTHENTICATE, and the
// chip's response is verified against pub.
func PerformActiveAuthentication(t Transport, pub ActiveAuthPublicKey, hash HashKind) (AAVerdict, error) {
	nonce := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return AAVerdict{}, &AaError{Reason: err.Error()}
	}

	resp, err := Transmit(t, Command{CLA: 0x00, INS: 0x88, P1: 0x00, P2: 0x00, Data: nonce, Ne: 256})
	if err != nil {
		return AAVerdict{}, &AaError{Reason: err.Error()}
	}

	ok, err := VerifyActiveAuthResponse(pub, nonce, resp.Data, hash)
	if err != nil {
		return AAVerdict{Nonce: nonce}, &AaError{Reason: err.Error()}
	}
	return AAVerdict{Verified: ok, Nonce: nonce}, nil
}

// VerifyActiveAuthResponse checks a chip's INTERNAL AUTHENTICATE response
// against the nonce it was challenged with. For EC keys the response is a
// direct ECDSA signature over the nonce; for RSA keys it is an ISO/IEC
// 9796-2 scheme-1 message-recovery signature carrying M1 (a random pad) and
// trailer, and the full message digest is recomputed over M1||nonce.
func VerifyActiveAuthResponse(pub ActiveAuthPublicKey, nonce, response []byte, hash HashKind) (bool, error) {
	switch {
	case pub.EC != nil:
		return verifyAAEC(pub.EC, nonce, response)
	case pub.RSA != nil:
		return verifyAARSA(pub.RSA, nonce, response, hash)
	default:
		return false, fmt.Errorf("no public key supplied")
	}
}

func verifyAAEC(pub *ecdsa.PublicKey, nonce, response []byte) (bool, error) {
	size := (pub.Curve.Params().BitSize + 7) / 8
	if len(response) != 2*size {
		return false, fmt.Errorf("EC signature length %d does not match field size %d", len(response), size)
	}
	r := new(big.Int).SetBytes(response[:size])
	s := new(big.Int).SetBytes(response[size:])
	digest := digestFor(HashSHA256, nonce)
	return ecdsa.Verify(pub, digest, r, s), nil
}

// verifyAARSA implements ISO/IEC 9796-2 scheme-1 recovery for the digest
// size hash carries: decrypt response with RSA's public exponent, check the
// header/trailer nibbles, split the recovered message into M1 (everything
// but the trailing hash) and the embedded hash, then confirm
// hash(M1||nonce) matches.
func verifyAARSA(pub *rsa.PublicKey, nonce, response []byte, hash HashKind) (bool, error) {
	k := (pub.N.BitLen() + 7) / 8
	if len(response) != k {
		return false, fmt.Errorf("RSA signature length %d does not match modulus size %d", len(response), k)
	}
	c := new(big.Int).SetBytes(response)
	e := big.NewInt(int64(pub.E))
	recovered := new(big.Int).Exp(c, e, pub.N).Bytes()
	recovered = leftPad(recovered, k)

	if recovered[0]&0xC0 != 0x40 {
		return false, fmt.Errorf("ISO 9796-2 header check failed")
	}
	digestLen := hashLen(hash)
	if recovered[k-1]&0x0F != 0x0C && recovered[k-1] != 0xBC {
		return false, fmt.Errorf("ISO 9796-2 trailer check failed")
	}
	if k < digestLen+2 {
		return false, fmt.Errorf("RSA modulus too small for recovery with this hash")
	}
	recoveredHash := recovered[k-1-digestLen : k-1]
	m1 := stripHeaderBit(recovered[:k-1-digestLen])

	computed := digestFor(hash, append(append([]byte{}, m1...), nonce...))
	return constantTimeEqual(computed, recoveredHash), nil
}

// stripHeaderBit removes the leading header nibble ISO 9796-2 scheme 1
// prepends to the recoverable message part.
func stripHeaderBit(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	out := append([]byte(nil), b...)
	out[0] &^= 0xC0
	return out
}

func hashLen(kind HashKind) int {
	switch kind {
	case HashSHA256:
		return 32
	case HashSHA384:
		return 48
	case HashSHA512:
		return 64
	default:
		return 20
	}
}

// ParseActiveAuthKey builds an ActiveAuthPublicKey from an already-parsed
// RSA key when rsaPub is non-nil, and otherwise from rawECPoint decoded as
// an uncompressed point over curve. It does not parse SubjectPublicKeyInfo
// bytes itself.
func ParseActiveAuthKey(curve elliptic.Curve, rsaPub *rsa.PublicKey, rawECPoint []byte) (ActiveAuthPublicKey, error) {
	if rsaPub != nil {
		return ActiveAuthPublicKey{RSA: rsaPub}, nil
	}
	x, y, err := decodeECPoint(curve, rawECPoint)
	if err != nil {
		return ActiveAuthPublicKey{}, &LdsError{File: "DG15", Reason: err.Error()}
	}
	return ActiveAuthPublicKey{EC: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
}
