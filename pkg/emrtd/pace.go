package emrtd

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"encoding/asn1"
	"fmt"
	"log/slog"
	"math/big"
)

// PaceMapping identifies the ephemeral-group mapping variant (ICAO 9303
// part 11 §4.3.3).
type PaceMapping int

const (
	MappingGeneric PaceMapping = iota
	MappingIntegrated
	MappingChipAuthenticated
)

// PaceAgreement identifies the agreement family.
type PaceAgreement int

const (
	AgreementDH PaceAgreement = iota
	AgreementECDH
)

// PaceOID bundles the fields ICAO packs into a PACE SecurityInfo OID:
// mapping, agreement family, cipher, and derived MAC/hash.
type PaceOID struct {
	Mapping   PaceMapping
	Agreement PaceAgreement
	Cipher    CipherKind
	Hash      HashKind
}

// PaceSecurityInfo is the (OID, protocol version, parameter-id) triple read
// from CardAccess.
type PaceSecurityInfo struct {
	OID         PaceOID
	Version     int
	ParameterID int
}

// CredentialKind enumerates the access-credential sum type (§3).
type CredentialKind int

const (
	CredentialMRZ CredentialKind = iota
	CredentialCAN
	CredentialPIN
	CredentialPUK
)

// PaceCredential is a CAN, PIN, or PUK password (or an MRZ reference) used
// to derive K_pi.
type PaceCredential struct {
	Kind  CredentialKind
	Value string
}

// PaceResult carries the Wrapper PACE establishes plus the session keys
// and phase-4 authentication tokens for diagnostics and test vectors.
type PaceResult struct {
	Wrapper   *Wrapper
	KEnc      []byte
	KMac      []byte
	PCDToken  []byte
	PICCToken []byte
}

// paceKpi derives K_pi for a credential: for MRZ credentials the 20-byte
// BACSeed is used directly as the KDF input; for CAN/PIN/PUK, SHA-1 of the
// digit string is used instead (ICAO 9303 part 11 §9.7.3).
func paceKpi(cred PaceCredential, mrzSeed []byte, kind CipherKind, hash HashKind) []byte {
	var seed []byte
	if cred.Kind == CredentialMRZ {
		seed = mrzSeed
	} else {
		sum := sha1.Sum([]byte(cred.Value))
		seed = sum[:]
	}
	return DeriveKey(seed, KDFCounterPaceKpi, kind, hash)
}

// PerformPACE runs the five-phase PACE handshake (ICAO 9303 part 11 §4.3)
// over t and returns the Wrapper it establishes. mrzSeed is only consulted
// when cred.Kind is CredentialMRZ.
func PerformPACE(t Transport, info PaceSecurityInfo, cred PaceCredential, mrzSeed []byte) (*PaceResult, error) {
	params, err := LookupDomainParams(info.ParameterID)
	if err != nil {
		return nil, &PaceError{Phase: "init", Reason: err.Error()}
	}
	kpi := paceKpi(cred, mrzSeed, info.OID.Cipher, info.OID.Hash)

	if _, err := Transmit(t, Command{CLA: 0x00, INS: 0x22, P1: 0xC1, P2: 0xA4, Data: buildMSESetAT(info)}); err != nil {
		return nil, &PaceError{Phase: "mse-set-at", Reason: err.Error()}
	}

	// Phase 1: nonce.
	encNonce, err := generalAuthenticate(t, nil, 0x80)
	if err != nil {
		return nil, &PaceError{Phase: "nonce", Reason: err.Error()}
	}
	nonce, err := ECBDecryptBlock(info.OID.Cipher, kpi, encNonce)
	if err != nil {
		return nil, &PaceError{Phase: "nonce", Reason: err.Error()}
	}

	// Phase 2 + 3: mapping then key agreement, in the ephemeral group the
	// mapping phase derives. Chip-authenticated mapping needs a phase-5
	// static-key confirmation this reader does not implement, so it is
	// rejected explicitly rather than silently run as generic mapping.
	if info.OID.Mapping == MappingChipAuthenticated {
		return nil, &PaceError{Phase: "map", Reason: "chip-authenticated mapping static-key confirmation not supported"}
	}

	var shared []byte
	var pcdPub, piccPub []byte
	switch {
	case info.OID.Mapping == MappingIntegrated && params.IsEC():
		shared, pcdPub, piccPub, err = paceECFlowIM(t, params, nonce)
	case info.OID.Mapping == MappingIntegrated:
		shared, pcdPub, piccPub, err = paceDHFlowIM(t, params, nonce)
	case params.IsEC():
		shared, pcdPub, piccPub, err = paceECFlow(t, params, nonce)
	default:
		shared, pcdPub, piccPub, err = paceDHFlow(t, params, nonce)
	}
	if err != nil {
		return nil, err
	}

	kEnc := DeriveKey(shared, KDFCounterEnc, info.OID.Cipher, info.OID.Hash)
	kMac := DeriveKey(shared, KDFCounterMac, info.OID.Cipher, info.OID.Hash)

	// Phase 4: mutual authentication tokens.
	pcdToken, piccToken, err := paceTokenPhase(t, info.OID, kMac, pcdPub, piccPub)
	if err != nil {
		return nil, err
	}

	wrapper := NewWrapper(kEnc, kMac, info.OID.Cipher, make([]byte, info.OID.Cipher.SSCLen()))
	slog.Debug("PACE established", "mapping", info.OID.Mapping, "agreement", info.OID.Agreement)
	return &PaceResult{Wrapper: wrapper, KEnc: kEnc, KMac: kMac, PCDToken: pcdToken, PICCToken: piccToken}, nil
}

// buildMSESetAT encodes the MSE:Set AT command data: tag 0x80 (OID) and
// tag 0x83 (parameter-id). The password itself is never transmitted — K_pi
// is derived locally on both ends from the shared credential.
func buildMSESetAT(info PaceSecurityInfo) []byte {
	w := NewWriter()
	w.WritePrimitive(0x80, encodePaceOID(info.OID))
	w.WritePrimitive(0x83, []byte{byte(info.ParameterID)})
	b, _ := w.Bytes()
	return b
}

// encodePaceOID renders a PaceOID into a stable, round-trippable byte
// encoding; it only needs to match this package's own MSE:Set AT parsing,
// not a registered external ASN.1 arc byte for byte.
func encodePaceOID(oid PaceOID) []byte {
	return []byte{byte(oid.Mapping), byte(oid.Agreement), byte(oid.Cipher), byte(oid.Hash)}
}

// generalAuthenticate drives one GENERAL AUTHENTICATE round trip, wrapping
// data (if non-nil) in a dynamic-auth-data template (tag 0x7C) tagged with
// innerTag, and unwrapping the response the same way. When data is nil an
// empty 0x7C template is sent (used for the initial nonce request).
func generalAuthenticate(t Transport, data []byte, innerTag uint32) ([]byte, error) {
	var reqData []byte
	if data != nil {
		w := NewWriter()
		w.OpenConstructed(0x7C)
		w.WritePrimitive(innerTag, data)
		if err := w.CloseConstructed(); err != nil {
			return nil, err
		}
		reqData, _ = w.Bytes()
	} else {
		reqData = []byte{0x7C, 0x00}
	}

	resp, err := Transmit(t, Command{CLA: 0x00, INS: 0x86, Data: reqData, Ne: 256})
	if err != nil {
		return nil, err
	}
	nodes, err := ReadAllTLV(resp.Data)
	if err != nil || len(nodes) != 1 || nodes[0].Tag != 0x7C {
		return nil, fmt.Errorf("malformed dynamic authentication data template")
	}
	inner, err := ReadAllTLV(nodes[0].Value)
	if err != nil || len(inner) == 0 {
		return nil, fmt.Errorf("empty dynamic authentication data")
	}
	return inner[0].Value, nil
}

// paceECFlow runs phases 2-3 over an ECDH domain: map the nonce into an
// ephemeral generator G~ = s*G + H, then agree on the final shared secret
// using G~ as the base point for both sides' phase-3 ephemeral keys.
func paceECFlow(t Transport, params DomainParams, nonce []byte) (shared, pcdPub, piccPub []byte, err error) {
	curve := params.Curve

	mapSK, err := GenerateECScalar(curve)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	mapPKx, mapPKy := ECScalarMultBase(curve, mapSK)
	mapReq := ecPointBytes(curve, mapPKx, mapPKy)
	mapPeerRaw, err := generalAuthenticate(t, mapReq, 0x81)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	mapPeerX, mapPeerY, err := decodeECPoint(curve, mapPeerRaw)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	hx, hy := ECScalarMult(curve, mapPeerX, mapPeerY, mapSK)

	s := new(big.Int).SetBytes(nonce)
	sgx, sgy := ECScalarMultBase(curve, s)
	gx, gy := curve.Add(sgx, sgy, hx, hy)
	if !curve.IsOnCurve(gx, gy) {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: "mapped generator not on curve"}
	}

	return paceECAgree(t, curve, gx, gy)
}

// paceECFlowIM runs PACE integrated mapping over an ECDH domain (ICAO 9303
// part 11 §4.3.3.2): fetch the chip's additional nonce t, derive x =
// PRF(s,t), encode x onto the curve with Icart's method to get the mapped
// generator G~, then agree the same way generic mapping does once it has
// its own G~.
func paceECFlowIM(t Transport, params DomainParams, nonce []byte) (shared, pcdPub, piccPub []byte, err error) {
	curve := params.Curve

	rawT, err := generalAuthenticate(t, nil, 0x81)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}

	fieldSize := (curve.Params().BitSize + 7) / 8
	x, err := pacePRF(nonce, rawT, fieldSize)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	gx, gy, err := icartEncode(curve, new(big.Int).SetBytes(x))
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}

	return paceECAgree(t, curve, gx, gy)
}

// paceECAgree runs PACE phase 3 (ephemeral key agreement over the mapped
// generator G~ = (gx, gy)), shared by every mapping variant once it has
// produced its own mapped group.
func paceECAgree(t Transport, curve elliptic.Curve, gx, gy *big.Int) (shared, pcdPub, piccPub []byte, err error) {
	sk, err := GenerateECScalar(curve)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: err.Error()}
	}
	pkx, pky := ECScalarMult(curve, gx, gy, sk)
	pcdPub = ecPointBytes(curve, pkx, pky)
	peerRaw, err := generalAuthenticate(t, pcdPub, 0x83)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: err.Error()}
	}
	peerX, peerY, err := decodeECPoint(curve, peerRaw)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: err.Error()}
	}
	if peerX.Cmp(pkx) == 0 && peerY.Cmp(pky) == 0 {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: "chip echoed our own ephemeral key"}
	}

	// The shared secret is computed over G~, but ECDHShared multiplies the
	// peer point by sk directly, which is exactly sk*(peerX,peerY) — correct
	// regardless of which base point generated peerX,peerY, since ECDH only
	// depends on the two private scalars and the common point.
	shared, err = ECDHShared(curve, peerX, peerY, sk)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: err.Error()}
	}
	return shared, pcdPub, peerRaw, nil
}

// paceDHFlow is the finite-field analog of paceECFlow: map the nonce into
// an ephemeral generator g~ = g^s * h mod p, then agree using g~ as base.
func paceDHFlow(t Transport, params DomainParams, nonce []byte) (shared, pcdPub, piccPub []byte, err error) {
	mapSK, err := rand.Int(rand.Reader, params.P)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	mapPK := new(big.Int).Exp(params.G, mapSK, params.P)
	peerRaw, err := generalAuthenticate(t, mapPK.Bytes(), 0x80)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	peerPub := new(big.Int).SetBytes(peerRaw)
	h, err := DHShared(params, peerPub, mapSK)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}

	s := new(big.Int).SetBytes(nonce)
	gs := new(big.Int).Exp(params.G, s, params.P)
	mappedG := new(big.Int).Mul(gs, new(big.Int).SetBytes(h))
	mappedG.Mod(mappedG, params.P)

	return paceDHAgree(t, params, mappedG)
}

// paceDHFlowIM runs PACE integrated mapping over a finite-field DH domain:
// fetch the chip's additional nonce t, derive x = PRF(s,t), and take
// g~ = g^x mod p as the mapped generator before agreeing the same way
// generic mapping does.
func paceDHFlowIM(t Transport, params DomainParams, nonce []byte) (shared, pcdPub, piccPub []byte, err error) {
	rawT, err := generalAuthenticate(t, nil, 0x80)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}

	size := (params.P.BitLen() + 7) / 8
	x, err := pacePRF(nonce, rawT, size)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "map", Reason: err.Error()}
	}
	mappedG := new(big.Int).Exp(params.G, new(big.Int).SetBytes(x), params.P)
	return paceDHAgree(t, params, mappedG)
}

// paceDHAgree runs PACE phase 3 over the mapped generator mappedG, shared
// by every mapping variant once it has produced its own mapped group.
func paceDHAgree(t Transport, params DomainParams, mappedG *big.Int) (shared, pcdPub, piccPub []byte, err error) {
	sk, err := rand.Int(rand.Reader, params.P)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: err.Error()}
	}
	pk := new(big.Int).Exp(mappedG, sk, params.P)
	pcdPub = pk.Bytes()
	peerRaw, err := generalAuthenticate(t, pcdPub, 0x84)
	if err != nil {
		return nil, nil, nil, &PaceError{Phase: "agree", Reason: err.Error()}
	}
	peerPub := new(big.Int).SetBytes(peerRaw)
	sharedVal := new(big.Int).Exp(peerPub, sk, params.P)
	size := (params.P.BitLen() + 7) / 8
	shared = leftPad(sharedVal.Bytes(), size)
	return shared, pcdPub, peerRaw, nil
}

// pacePRF expands the PACE nonce s into enough pseudorandom bytes to cover
// the target field/group width, for integrated mapping (ICAO 9303 part 11
// §4.3.3.2): repeated AES-128-ECB evaluations in counter mode, keyed by the
// first 16 bytes of s, with the counter seeded at the chip's additional
// nonce t and incremented by one per block, concatenated until outLen
// bytes are available.
func pacePRF(s, t []byte, outLen int) ([]byte, error) {
	key := s
	if len(key) > 16 {
		key = key[:16]
	}
	if len(key) < 16 {
		return nil, fmt.Errorf("integrated mapping PRF needs a 16-byte nonce, got %d bytes", len(key))
	}

	counter := new(big.Int).SetBytes(t)
	var out []byte
	for len(out) < outLen {
		block, err := ECBEncryptBlock(CipherAES128, key, leftPad(counter.Bytes(), 16))
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		counter.Add(counter, big.NewInt(1))
	}
	return out[:outLen], nil
}

// curveA returns the Weierstrass "a" coefficient for curve. Every curve
// this package registers other than Brainpool uses the standard a = -3;
// brainpoolCurve carries its own non-standard a (see domainparams.go).
func curveA(curve elliptic.Curve) *big.Int {
	if bp, ok := curve.(*brainpoolCurve); ok {
		return bp.a
	}
	return big.NewInt(-3)
}

// icartEncode implements Icart's 2009 deterministic encoding of a field
// element onto curve (ICAO 9303 part 11 §4.3.3.2, PACE integrated mapping
// for ECDH domains). Only valid over primes p = 2 (mod 3), which gives the
// cube root below its closed form c^((2p-1)/3); callers get a clean error
// rather than a silently wrong point when a curve doesn't satisfy that.
func icartEncode(curve elliptic.Curve, u *big.Int) (x, y *big.Int, err error) {
	p := curve.Params().P
	if new(big.Int).Mod(p, big.NewInt(3)).Int64() != 2 {
		return nil, nil, fmt.Errorf("icart encoding requires p = 2 mod 3")
	}
	a := curveA(curve)
	b := curve.Params().B

	u = new(big.Int).Mod(u, p)
	if u.Sign() == 0 {
		u = big.NewInt(1)
	}

	three := big.NewInt(3)
	six := big.NewInt(6)

	u2 := new(big.Int).Exp(u, big.NewInt(2), p)
	u4 := new(big.Int).Exp(u, big.NewInt(4), p)

	// v = (3a - u^4) / (6u)
	num := new(big.Int).Mul(three, a)
	num.Sub(num, u4)
	num.Mod(num, p)
	den := new(big.Int).Mul(six, u)
	den.Mod(den, p)
	v := fieldDiv(num, den, p)

	// x = cbrt(v^2 - b - u^6/27) + u^2/3
	v2 := new(big.Int).Mul(v, v)
	v2.Mod(v2, p)
	u6 := new(big.Int).Exp(u, six, p)
	u6over27 := fieldDiv(u6, big.NewInt(27), p)

	inner := new(big.Int).Sub(v2, b)
	inner.Sub(inner, u6over27)
	inner.Mod(inner, p)

	cubeRootExp := new(big.Int).Lsh(p, 1)
	cubeRootExp.Sub(cubeRootExp, big.NewInt(1))
	cubeRootExp.Div(cubeRootExp, three)
	cr := new(big.Int).Exp(inner, cubeRootExp, p)

	u2over3 := fieldDiv(u2, three, p)
	x = new(big.Int).Add(cr, u2over3)
	x.Mod(x, p)

	y = new(big.Int).Mul(u, x)
	y.Add(y, v)
	y.Mod(y, p)

	if !curve.IsOnCurve(x, y) {
		return nil, nil, fmt.Errorf("icart encoding produced a point off the curve")
	}
	return x, y, nil
}

// paceTokenPhase exchanges and verifies the phase-4 authentication tokens:
// each side MACs TLV(0x7F49, OID ‖ raw-public-key) — the peer's phase-3
// ephemeral public key, alongside the DER encoding of the PACE OID it was
// produced under — using K_mac (ICAO 9303 part 11 §4.3.4).
func paceTokenPhase(t Transport, oid PaceOID, kMac, pcdPub, piccPub []byte) (pcdToken, piccToken []byte, err error) {
	oidDER, err := paceOIDDER(oid)
	if err != nil {
		return nil, nil, &PaceError{Phase: "token", Reason: err.Error()}
	}

	piccAuthData := tlvBytes(0x7F49, append(append([]byte{}, oidDER...), piccPub...))
	pcdToken, err = macToken(oid.Cipher, kMac, piccAuthData)
	if err != nil {
		return nil, nil, &PaceError{Phase: "token", Reason: err.Error()}
	}

	resp, err := generalAuthenticate(t, pcdToken, 0x85)
	if err != nil {
		return nil, nil, &PaceError{Phase: "token", Reason: err.Error()}
	}
	piccToken = resp

	pcdAuthData := tlvBytes(0x7F49, append(append([]byte{}, oidDER...), pcdPub...))
	expected, err := macToken(oid.Cipher, kMac, pcdAuthData)
	if err != nil {
		return nil, nil, &PaceError{Phase: "token", Reason: err.Error()}
	}
	if !constantTimeEqual(expected, piccToken) {
		return nil, nil, &PaceError{Phase: "token", Reason: "chip authentication token mismatch"}
	}
	return pcdToken, piccToken, nil
}

// paceOIDDER renders oid as the DER encoding of its registered id-PACE-*
// object identifier (ICAO 9303 part 11 §9.2.1) — the value the phase-4
// token MACs over, distinct from encodePaceOID's internal 4-byte form used
// only for this package's own MSE:Set AT framing.
func paceOIDDER(oid PaceOID) ([]byte, error) {
	mappingArc, err := paceMappingArc(oid.Mapping, oid.Agreement)
	if err != nil {
		return nil, err
	}
	cipherArc, err := paceCipherArc(oid.Cipher)
	if err != nil {
		return nil, err
	}
	arc := asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 4, mappingArc, cipherArc}
	return asn1.Marshal(arc)
}

// paceMappingArc resolves the registered arc identifying a mapping and
// agreement family combination (id-PACE-<agreement>-<mapping>-*).
func paceMappingArc(mapping PaceMapping, agreement PaceAgreement) (int, error) {
	switch mapping {
	case MappingGeneric:
		if agreement == AgreementDH {
			return 1, nil
		}
		return 2, nil
	case MappingIntegrated:
		if agreement == AgreementDH {
			return 3, nil
		}
		return 4, nil
	case MappingChipAuthenticated:
		if agreement == AgreementECDH {
			return 6, nil
		}
	}
	return 0, fmt.Errorf("no registered PACE OID arc for mapping=%v agreement=%v", mapping, agreement)
}

// paceCipherArc resolves the registered arc identifying a cipher suite
// (id-PACE-*-<cipher>).
func paceCipherArc(cipher CipherKind) (int, error) {
	switch cipher {
	case CipherDESede:
		return 1, nil
	case CipherAES128:
		return 2, nil
	case CipherAES192:
		return 3, nil
	case CipherAES256:
		return 4, nil
	}
	return 0, fmt.Errorf("no registered PACE OID arc for cipher %v", cipher)
}

func macToken(kind CipherKind, kMac, data []byte) ([]byte, error) {
	if kind == CipherDESede {
		return RetailMAC(kMac, PadISO9797M2(data, 8))
	}
	full, err := AESCMAC(kMac, data)
	if err != nil {
		return nil, err
	}
	return full[:8], nil
}

func tlvBytes(tag uint32, value []byte) []byte {
	w := NewWriter()
	w.WritePrimitive(tag, value)
	b, _ := w.Bytes()
	return b
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// ecPointBytes encodes an EC point in the uncompressed form (0x04 || X || Y)
// ICAO 9303 requires for PACE dynamic authentication data.
func ecPointBytes(curve elliptic.Curve, x, y *big.Int) []byte {
	size := (curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*size)
	out[0] = 0x04
	xb, yb := x.Bytes(), y.Bytes()
	copy(out[1+size-len(xb):1+size], xb)
	copy(out[1+2*size-len(yb):1+2*size], yb)
	return out
}

func decodeECPoint(curve elliptic.Curve, raw []byte) (x, y *big.Int, err error) {
	if len(raw) < 1 || raw[0] != 0x04 {
		return nil, nil, fmt.Errorf("expected uncompressed EC point")
	}
	size := (curve.Params().BitSize + 7) / 8
	if len(raw) != 1+2*size {
		return nil, nil, fmt.Errorf("EC point has unexpected length %d", len(raw))
	}
	x = new(big.Int).SetBytes(raw[1 : 1+size])
	y = new(big.Int).SetBytes(raw[1+size : 1+2*size])
	if !curve.IsOnCurve(x, y) {
		return nil, nil, fmt.Errorf("EC point not on curve")
	}
	return x, y, nil
}
