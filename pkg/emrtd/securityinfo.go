package emrtd

import (
	"encoding/asn1"
)

// SecurityInfo is one entry of the SecurityInfos SET carried by DG14,
// CardAccess, and CardSecurity (ICAO 9303 part 11 §9.2): an algorithm OID
// plus whatever DER-encoded parameters that algorithm defines. Unknown
// OIDs are kept as raw bytes rather than rejected, since ICAO 9303 requires
// readers to tolerate protocol/vendor extensions they don't recognize.
type SecurityInfo struct {
	OID          asn1.ObjectIdentifier
	RequiredData asn1.RawValue
	OptionalData asn1.RawValue `asn1:"optional"`
}

// DecodeSecurityInfos parses a DER SET OF SecurityInfo, as found verbatim
// in CardAccess/CardSecurity and nested inside DG14's application wrapper.
func DecodeSecurityInfos(der []byte) ([]SecurityInfo, error) {
	var infos []SecurityInfo
	rest, err := asn1.UnmarshalWithParams(der, &infos, "set")
	if err != nil {
		return nil, &LdsError{Reason: "malformed SecurityInfos SET: " + err.Error()}
	}
	if len(rest) != 0 {
		return nil, &LdsError{Reason: "trailing bytes after SecurityInfos SET"}
	}
	return infos, nil
}

// Well-known id-PACE-* / id-CA-* / id-TA OID arcs (ICAO 9303 part 11 §9.2,
// under bsi-de 0.4.0.127.0.7.2.2). Only the arcs this reader dispatches on
// are named; anything else falls through to "unrecognized" handling.
var (
	oidPACEDH3DESCBCCBC   = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 4, 1, 1}
	oidPACEDHAES128       = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 4, 1, 2}
	oidPACEECDH3DESCBCCBC = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 4, 2, 1}
	oidPACEECDHAES128     = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 4, 2, 2}
	oidCADH3DESCBCCBC     = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 3, 1, 1}
	oidCAECDH3DESCBCCBC   = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 3, 2, 1}
	oidTAECDSA            = asn1.ObjectIdentifier{0, 4, 0, 127, 0, 7, 2, 2, 2}
)

// ClassifySecurityInfo reports what kind of access-control announcement a
// SecurityInfo entry represents, for the session orchestrator's access
// ladder (§4.10).
type SecurityInfoClass int

const (
	SecurityInfoUnknown SecurityInfoClass = iota
	SecurityInfoPACE
	SecurityInfoChipAuth
	SecurityInfoTerminalAuth
)

func ClassifySecurityInfo(info SecurityInfo) SecurityInfoClass {
	switch {
	case oidHasPrefix(info.OID, oidPACEDH3DESCBCCBC[:9]):
		return SecurityInfoPACE
	case oidHasPrefix(info.OID, oidCADH3DESCBCCBC[:9]):
		return SecurityInfoChipAuth
	case oidHasPrefix(info.OID, oidTAECDSA[:9]):
		return SecurityInfoTerminalAuth
	default:
		return SecurityInfoUnknown
	}
}

func oidHasPrefix(oid, prefix asn1.ObjectIdentifier) bool {
	if len(oid) < len(prefix) {
		return false
	}
	for i, v := range prefix {
		if oid[i] != v {
			return false
		}
	}
	return true
}
