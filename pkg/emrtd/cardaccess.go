package emrtd

// ReadCardAccess reads and decodes EF.CardAccess: a bare DER SET OF
// SecurityInfo, selectable at the master-file level before the eMRTD
// application itself is selected, announcing which PACE mechanisms the
// chip supports (ICAO 9303 part 11 §9.2.1). Unlike COM/SOD/data groups it
// carries no outer BER-TLV application wrapper.
func ReadCardAccess(t Transport) (SecurityInfos, error) {
	raw, err := ReadFile(t, FileCardAccess)
	if err != nil {
		return SecurityInfos{}, err
	}
	entries, err := DecodeSecurityInfos(raw)
	if err != nil {
		return SecurityInfos{}, &LdsError{File: "CardAccess", Reason: err.Error()}
	}
	return SecurityInfos{Entries: entries}, nil
}

// ReadCardSecurity reads and decodes EF.CardSecurity: the signed
// counterpart of CardAccess, wrapped in the same CMS SignedData structure
// as SOD, used to authenticate the PACE parameter announcement itself
// (ICAO 9303 part 11 §9.2.2, chip-authenticated PACE mapping).
func ReadCardSecurity(t Transport) (SOD, error) {
	raw, err := ReadFile(t, FileCardSecurity)
	if err != nil {
		return SOD{}, err
	}
	return DecodeSOD(raw)
}

// PaceInfos filters CardAccess entries down to PACE protocol
// announcements, resolving each into a PaceSecurityInfo the session
// orchestrator can pass directly to PerformPACE. Entries whose parameters
// this package cannot decode are skipped rather than failing the whole
// read.
func (s SecurityInfos) PaceInfos() []PaceSecurityInfo {
	var out []PaceSecurityInfo
	for _, e := range s.Entries {
		if ClassifySecurityInfo(e) != SecurityInfoPACE {
			continue
		}
		info, ok := decodePaceSecurityInfo(e)
		if ok {
			out = append(out, info)
		}
	}
	return out
}

func decodePaceSecurityInfo(e SecurityInfo) (PaceSecurityInfo, bool) {
	oid, ok := paceOIDFromArc(e.OID)
	if !ok {
		return PaceSecurityInfo{}, false
	}
	version := int(beUint(e.RequiredData.Bytes))
	paramID := int(beUint(e.OptionalData.Bytes))
	return PaceSecurityInfo{OID: oid, Version: version, ParameterID: paramID}, true
}

// paceOIDFromArc maps the last two arcs of a registered id-PACE-* OID
// (mapping-and-agreement, cipher-and-hash) to this package's PaceOID:
// 1/2 = DH/ECDH generic mapping, 3/4 = DH/ECDH integrated mapping,
// 6 = ECDH chip-authenticated mapping. Other registered arcs fall through
// to "unsupported".
func paceOIDFromArc(oid []int) (PaceOID, bool) {
	if len(oid) < 11 {
		return PaceOID{}, false
	}
	switch oid[9] {
	case 1:
		switch oid[10] {
		case 1, 2, 3, 4:
			return PaceOID{Mapping: MappingGeneric, Agreement: AgreementDH, Cipher: cipherFromArc(oid[10]), Hash: HashSHA1}, true
		}
	case 2:
		switch oid[10] {
		case 1, 2, 3, 4:
			return PaceOID{Mapping: MappingGeneric, Agreement: AgreementECDH, Cipher: cipherFromArc(oid[10]), Hash: HashSHA1}, true
		}
	case 3:
		switch oid[10] {
		case 2, 3, 4:
			return PaceOID{Mapping: MappingIntegrated, Agreement: AgreementDH, Cipher: cipherFromArc(oid[10]), Hash: HashSHA1}, true
		}
	case 4:
		switch oid[10] {
		case 2, 3, 4:
			return PaceOID{Mapping: MappingIntegrated, Agreement: AgreementECDH, Cipher: cipherFromArc(oid[10]), Hash: HashSHA1}, true
		}
	case 6:
		switch oid[10] {
		case 2, 3, 4:
			return PaceOID{Mapping: MappingChipAuthenticated, Agreement: AgreementECDH, Cipher: cipherFromArc(oid[10]), Hash: HashSHA1}, true
		}
	}
	return PaceOID{}, false
}

func cipherFromArc(arc int) CipherKind {
	switch arc {
	case 1:
		return CipherDESede
	case 2:
		return CipherAES128
	case 3:
		return CipherAES192
	case 4:
		return CipherAES256
	default:
		return CipherAES128
	}
}
