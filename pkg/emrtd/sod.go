package emrtd

import (
	"crypto/x509"
	"encoding/asn1"
)

// SOD is the decoded Document Security Object: a CMS SignedData structure
// whose signed content is an LDSSecurityObject (a hash-algorithm id plus
// one hash per present data group). This package parses far enough to
// expose the per-DG hash values and the signer's certificate chain for
// passive authentication; it does not itself build or validate a
// certificate trust path, which belongs to whatever CSCA trust store the
// caller wires in (analogous to the Terminal Authentication seam in eac.go).
type SOD struct {
	DigestAlgorithm asn1.ObjectIdentifier
	DataGroupHashes map[DataGroup][]byte
	Certificates    []*x509.Certificate
	SignerInfos     []cmsSignerInfo
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type cmsContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,tag:0"`
}

type cmsSignedData struct {
	Version          int
	DigestAlgorithms asn1.RawValue
	EncapContentInfo cmsEncapContentInfo
	Certificates     asn1.RawValue   `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue   `asn1:"optional,tag:1"`
	SignerInfos      []cmsSignerInfo `asn1:"set"`
}

type cmsEncapContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

type cmsSignerInfo struct {
	Version                   int
	IssuerAndSerialNumber     asn1.RawValue
	DigestAlgorithm           asn1.RawValue
	SignedAttrs               asn1.RawValue `asn1:"optional,tag:0"`
	DigestEncryptionAlgorithm asn1.RawValue
	EncryptedDigest           []byte
	UnsignedAttrs             asn1.RawValue `asn1:"optional,tag:1"`
}

type ldsSecurityObject struct {
	Version         int
	DigestAlgorithm asn1.RawValue
	DataGroupHashes []dataGroupHash
}

type dataGroupHash struct {
	DataGroupNumber int
	Digest          []byte
}

// DecodeSOD decodes SOD's inner value: the application wrapper (0x77) that
// ReadSOD strips beforehand leaves a raw CMS ContentInfo, which
// this function parses down to the LDSSecurityObject's per-DG hashes plus
// any embedded certificates.
func DecodeSOD(inner []byte) (SOD, error) {
	var ci cmsContentInfo
	if _, err := asn1.Unmarshal(inner, &ci); err != nil {
		return SOD{}, &LdsError{File: "SOD", Reason: "malformed ContentInfo: " + err.Error()}
	}

	var sd cmsSignedData
	if _, err := asn1.Unmarshal(ci.Content.Bytes, &sd); err != nil {
		return SOD{}, &LdsError{File: "SOD", Reason: "malformed SignedData: " + err.Error()}
	}

	var lso ldsSecurityObject
	if _, err := asn1.Unmarshal(sd.EncapContentInfo.Content.Bytes, &lso); err != nil {
		return SOD{}, &LdsError{File: "SOD", Reason: "malformed LDSSecurityObject: " + err.Error()}
	}

	hashes := make(map[DataGroup][]byte, len(lso.DataGroupHashes))
	for _, h := range lso.DataGroupHashes {
		hashes[DataGroup(h.DataGroupNumber)] = h.Digest
	}

	var certs []*x509.Certificate
	if len(sd.Certificates.Bytes) > 0 {
		parsed, err := x509.ParseCertificates(sd.Certificates.Bytes)
		if err == nil {
			certs = parsed
		}
		// A parse failure here is tolerated: some issuers embed certificates
		// in forms x509 doesn't recognize, and passive authentication can
		// still proceed against a hash comparison using an out-of-band CSCA
		// certificate the caller already holds.
	}

	var algID algorithmIdentifier
	var digestAlg asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(lso.DigestAlgorithm.FullBytes, &algID); err == nil {
		digestAlg = algID.Algorithm
	}

	return SOD{
		DigestAlgorithm: digestAlg,
		DataGroupHashes: hashes,
		Certificates:    certs,
		SignerInfos:     sd.SignerInfos,
	}, nil
}

// VerifyDataGroupHash checks a freshly computed data-group digest against
// the value SOD recorded for dg (ICAO 9303 part 11 §7, passive
// authentication step 2).
func (s SOD) VerifyDataGroupHash(dg DataGroup, digest []byte) bool {
	want, ok := s.DataGroupHashes[dg]
	if !ok {
		return false
	}
	return constantTimeEqual(want, digest)
}

// ReadSOD reads and decodes EF.SOD (tag 0x77) from the card.
func ReadSOD(t Transport) (SOD, error) {
	raw, err := ReadFile(t, FileSOD)
	if err != nil {
		return SOD{}, err
	}
	nodes, err := ReadAllTLV(raw)
	if err != nil || len(nodes) != 1 || nodes[0].Tag != 0x77 {
		return SOD{}, &LdsError{File: "SOD", Reason: "expected outer tag 0x77"}
	}
	return DecodeSOD(nodes[0].Value)
}
