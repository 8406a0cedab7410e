package emrtd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"math/big"
)

// DecodeDG15 decodes DG15's inner value: a raw X.509 SubjectPublicKeyInfo
// for the chip's Active Authentication key (ICAO 9303 part 10 §4.6.2.15),
// parsed via the standard library's PKIX parser, with a manual fallback
// that accepts only an uncompressed NIST P-256 point. EC keys on other
// curves x509 doesn't recognize (Brainpool included) are rejected.
func DecodeDG15(inner []byte) (ActiveAuthPublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(inner)
	if err == nil {
		switch k := pub.(type) {
		case *rsa.PublicKey:
			return ActiveAuthPublicKey{RSA: k}, nil
		case *ecdsa.PublicKey:
			return ActiveAuthPublicKey{EC: k}, nil
		}
	}

	x, y, curve, perr := parseRawECSubjectPublicKey(inner)
	if perr != nil {
		return ActiveAuthPublicKey{}, &LdsError{File: "DG15", Reason: "unrecognized SubjectPublicKeyInfo: " + err.Error()}
	}
	return ActiveAuthPublicKey{EC: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
}

// parseRawECSubjectPublicKey is the fallback for SubjectPublicKeyInfo
// bytes crypto/x509 rejects. It locates the BIT STRING public key value
// directly and decodes it as an uncompressed point on P-256, the only
// curve it tries; the domain parameters carried in the key are not read,
// so a point on any other curve fails the on-curve check.
func parseRawECSubjectPublicKey(der []byte) (x, y *big.Int, curve elliptic.Curve, err error) {
	nodes, perr := ReadAllTLV(der)
	if perr != nil || len(nodes) != 1 {
		return nil, nil, nil, perr
	}
	inner, perr := ReadAllTLV(nodes[0].Value)
	if perr != nil || len(inner) < 2 {
		return nil, nil, nil, perr
	}
	bitString := inner[len(inner)-1].Value
	if len(bitString) < 2 {
		return nil, nil, nil, &LdsError{File: "DG15", Reason: "empty BIT STRING"}
	}
	point := bitString[1:] // skip the unused-bits count octet
	curve = elliptic.P256()
	x, y, perr = decodeECPoint(curve, point)
	if perr != nil {
		return nil, nil, nil, perr
	}
	return x, y, curve, nil
}
