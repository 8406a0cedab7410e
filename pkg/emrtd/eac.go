package emrtd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"math/big"
)

// ChipAuthInfo is the (OID-derived key kind, parameter-id, key id) triple
// read from a DG14 SecurityInfo describing the chip's static Chip
// Authentication key.
type ChipAuthInfo struct {
	ParameterID int
	KeyID       int // -1 when the file carries no explicit key id
	Cipher      CipherKind
	Hash        HashKind
}

// ChipStaticKey is the chip's static CA public key, parsed out of DG14's
// SubjectPublicKeyInfo. Exactly one of (X,Y) or Y2 is populated depending on
// whether the domain parameters are elliptic or finite-field.
type ChipStaticKey struct {
	EC   bool
	X, Y *big.Int // EC public point
	Y2   *big.Int // DH public value (finite field), reusing the Y field name would confuse readers
}

// PerformChipAuthentication runs Chip Authentication (ICAO 9303 part 11
// §5.2/6.2): the terminal generates an ephemeral key pair in the chip's
// announced domain parameters and sends its public key in a single MSE
// command (INS 0x22, P1/P2 0x41/0xA4) carrying the algorithm identifier
// (0x80), the optional key id (0x84) and the ephemeral public key (0x91);
// no GENERAL AUTHENTICATE follows. Both sides then derive new session keys
// from the ECDH/DH shared secret. The
// wrapper is replaced wholesale; SSC resets to zero.
func PerformChipAuthentication(t Transport, info ChipAuthInfo, staticKey ChipStaticKey) (*Wrapper, []byte, error) {
	params, err := LookupDomainParams(info.ParameterID)
	if err != nil {
		return nil, nil, &EacError{Phase: "ca-init", Reason: err.Error()}
	}

	w := NewWriter()
	w.WritePrimitive(0x80, encodeCAOID(info))
	if info.KeyID >= 0 {
		w.WritePrimitive(0x84, []byte{byte(info.KeyID)})
	}
	mseData, _ := w.Bytes()

	var shared []byte
	var ephPub []byte

	if params.IsEC() {
		if !staticKey.EC {
			return nil, nil, &EacError{Phase: "ca-agree", Reason: "chip static key is not an EC point"}
		}
		sk, err := GenerateECScalar(params.Curve)
		if err != nil {
			return nil, nil, &EacError{Phase: "ca-agree", Reason: err.Error()}
		}
		pkx, pky := ECScalarMultBase(params.Curve, sk)
		ephPub = ecPointBytes(params.Curve, pkx, pky)
		shared, err = ECDHShared(params.Curve, staticKey.X, staticKey.Y, sk)
		if err != nil {
			return nil, nil, &EacError{Phase: "ca-agree", Reason: err.Error()}
		}
	} else {
		if staticKey.EC {
			return nil, nil, &EacError{Phase: "ca-agree", Reason: "chip static key is not a DH value"}
		}
		sk, err := rand.Int(rand.Reader, params.P)
		if err != nil {
			return nil, nil, &EacError{Phase: "ca-agree", Reason: err.Error()}
		}
		pk := new(big.Int).Exp(params.G, sk, params.P)
		ephPub = pk.Bytes()
		shared, err = DHShared(params, staticKey.Y2, sk)
		if err != nil {
			return nil, nil, &EacError{Phase: "ca-agree", Reason: err.Error()}
		}
	}

	w2 := NewWriter()
	w2.WritePrimitive(0x91, ephPub)
	combined := append(mseData, mustBytes(w2)...)
	if _, err := Transmit(t, Command{CLA: 0x00, INS: 0x22, P1: 0x41, P2: 0xA4, Data: combined}); err != nil {
		return nil, nil, &EacError{Phase: "mse-set-at", Reason: err.Error()}
	}

	kEnc := DeriveKey(shared, KDFCounterEnc, info.Cipher, info.Hash)
	kMac := DeriveKey(shared, KDFCounterMac, info.Cipher, info.Hash)
	wrapper := NewWrapper(kEnc, kMac, info.Cipher, make([]byte, info.Cipher.SSCLen()))

	slog.Debug("chip authentication established")
	return wrapper, shared, nil
}

func mustBytes(w *Writer) []byte {
	b, _ := w.Bytes()
	return b
}

func encodeCAOID(info ChipAuthInfo) []byte {
	return []byte{byte(info.Cipher), byte(info.Hash)}
}

// CvCertificateValidator verifies a chain of ICAO 9303 card-verifiable
// certificates for Terminal Authentication, rooted at a country verifying
// CA the reader already trusts. Implementations are expected to wrap a
// persistent CVCA trust store; this package only defines the seam.
type CvCertificateValidator interface {
	// Validate checks chain (terminal -> DV -> CVCA order) and returns the
	// terminal certificate's public key plus the access rights it grants.
	Validate(chain [][]byte) (terminalPub interface{}, rights TerminalRights, err error)
}

// TerminalRights is the decoded certificate holder authorization byte: which
// data groups and EAC features the authenticated terminal may access.
type TerminalRights struct {
	Role       TerminalRole
	ReadAccess uint32 // bitmask over sensitive data groups (DG3/DG4, etc)
}

// TerminalRole enumerates the CVCA/DV/terminal role encoded in the
// certificate holder authorization template.
type TerminalRole int

const (
	RoleCVCA TerminalRole = iota
	RoleDV
	RoleTerminal
)

// TerminalSigner produces the terminal's challenge signature for Terminal
// Authentication, using whatever private key backs the terminal
// certificate (smart card, HSM, in-memory key for testing).
type TerminalSigner interface {
	Sign(challenge []byte) (signature []byte, err error)
}

// PerformTerminalAuthentication runs Terminal Authentication (ICAO 9303
// part 11 §5.3/6.3) following a successful Chip Authentication: the
// terminal presents its certificate chain, the chip issues a challenge via
// GET CHALLENGE, and the terminal signs (challenge || caAuxData), with
// caAuxData exactly as the caller passes it, to prove possession of the
// certified private key.
func PerformTerminalAuthentication(t Transport, certs [][]byte, validator CvCertificateValidator, signer TerminalSigner, caAuxData []byte) (TerminalRights, error) {
	_, rights, err := validator.Validate(certs)
	if err != nil {
		return TerminalRights{}, &EacError{Phase: "ta-validate", Reason: err.Error()}
	}

	for _, cert := range certs {
		w := NewWriter()
		w.WritePrimitive(0x7F21, cert)
		data, _ := w.Bytes()
		if _, err := Transmit(t, Command{CLA: 0x00, INS: 0x22, P1: 0x81, P2: 0xB6, Data: data}); err != nil {
			return TerminalRights{}, &EacError{Phase: "mse-set-dst", Reason: fmt.Sprintf("certificate load: %v", err)}
		}
	}

	resp, err := Transmit(t, Command{CLA: 0x00, INS: 0x84, Ne: 8})
	if err != nil {
		return TerminalRights{}, &EacError{Phase: "get-challenge", Reason: err.Error()}
	}
	challenge := resp.Data

	signInput := append(append([]byte{}, challenge...), caAuxData...)
	sig, err := signer.Sign(signInput)
	if err != nil {
		return TerminalRights{}, &EacError{Phase: "sign", Reason: err.Error()}
	}

	if _, err := Transmit(t, Command{CLA: 0x00, INS: 0x82, Data: sig}); err != nil {
		return TerminalRights{}, &EacError{Phase: "external-authenticate", Reason: err.Error()}
	}
	return rights, nil
}

// ParseCAStaticKey builds a chip static public key from its raw public
// value: an uncompressed EC point over curve when raw decodes as one,
// otherwise a big-endian finite-field DH value. It does not parse a DER
// SubjectPublicKeyInfo, and it never returns an error.
func ParseCAStaticKey(curve elliptic.Curve, raw []byte) (ChipStaticKey, error) {
	x, y, err := decodeECPoint(curve, raw)
	if err == nil {
		return ChipStaticKey{EC: true, X: x, Y: y}, nil
	}
	return ChipStaticKey{EC: false, Y2: new(big.Int).SetBytes(raw)}, nil
}

// verifyChainSignature is a helper CvCertificateValidator implementations
// can use to check a single CV-certificate link's signature once its
// issuer's public key and the to-be-signed region are known.
func verifyChainSignature(pub interface{}, tbs, sig []byte, hash HashKind) (bool, error) {
	digest := digestFor(hash, tbs)
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		r, s, err := splitRS(sig, (k.Curve.Params().BitSize+7)/8)
		if err != nil {
			return false, err
		}
		return VerifyECDSA(k, digest, r, s), nil
	case *rsa.PublicKey:
		return false, fmt.Errorf("RSA-keyed CV certificate validation is not implemented; %d-bit modulus rejected", k.N.BitLen())
	default:
		return false, fmt.Errorf("unsupported certificate public key type")
	}
}

func splitRS(sig []byte, size int) (r, s *big.Int, err error) {
	if len(sig) != 2*size {
		return nil, nil, fmt.Errorf("signature length %d does not match field size %d", len(sig), size)
	}
	return new(big.Int).SetBytes(sig[:size]), new(big.Int).SetBytes(sig[size:]), nil
}

func digestFor(kind HashKind, data []byte) []byte {
	h := newHasher(kind)
	h.Write(data)
	return h.Sum(nil)
}
