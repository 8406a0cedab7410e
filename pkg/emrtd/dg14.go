package emrtd

// SecurityInfos wraps the decoded DG14 content: the set of protocol
// announcements describing which PACE parameter sets, Chip Authentication
// keys, and Terminal Authentication policies this chip supports (ICAO 9303
// part 11 §9.2.3).
type SecurityInfos struct {
	Entries []SecurityInfo
}

// DecodeDG14 decodes DG14's inner value, which is the DER SET OF
// SecurityInfo directly (no further TLV nesting beyond the application
// wrapper unwrapDG already stripped).
func DecodeDG14(inner []byte) (SecurityInfos, error) {
	entries, err := DecodeSecurityInfos(inner)
	if err != nil {
		return SecurityInfos{}, err
	}
	return SecurityInfos{Entries: entries}, nil
}

// ChipAuthInfos filters entries down to Chip Authentication announcements.
func (s SecurityInfos) ChipAuthInfos() []SecurityInfo {
	var out []SecurityInfo
	for _, e := range s.Entries {
		if ClassifySecurityInfo(e) == SecurityInfoChipAuth {
			out = append(out, e)
		}
	}
	return out
}
