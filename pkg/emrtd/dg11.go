package emrtd

import "fmt"

// PersonalDetails is DG11's optional personal detail fields (ICAO 9303
// part 10 §4.7.1). Every field is optional in the standard; TagPresence
// records which tags the chip actually carried so callers can distinguish
// "absent" from "empty".
type PersonalDetails struct {
	FullNameInNationalCharacters string
	OtherNames                   []string
	PersonalNumber               string
	FullDateOfBirth              string
	PlaceOfBirth                 []string
	Permanent                    []string
	Telephone                    string
	Profession                   string
	Title                        string
	PersonalSummary              string
	ProofOfCitizenshipImage      []byte
	OtherValidTDNumbers          []string
	CustodyInformation           string

	TagPresence []uint32
}

var dg11FieldTags = map[uint32]string{
	0x5F0E: "FullNameInNationalCharacters",
	0x5F0F: "OtherNames",
	0x5F10: "PersonalNumber",
	0x5F2B: "FullDateOfBirth",
	0x5F11: "PlaceOfBirth",
	0x5F42: "Permanent",
	0x5F12: "Telephone",
	0x5F13: "Profession",
	0x5F14: "Title",
	0x5F15: "PersonalSummary",
	0x5F16: "ProofOfCitizenshipImage",
	0x5F17: "OtherValidTDNumbers",
	0x5F18: "CustodyInformation",
}

// DecodeDG11 decodes DG11's inner value: a primitive tag list (0x5C,
// listing which fields follow) optionally present, then the fields
// themselves in any order, each tag looked up in dg11FieldTags (ICAO 9303
// part 10 §4.7.1 Table 12).
func DecodeDG11(inner []byte) (PersonalDetails, error) {
	nodes, err := ReadAllTLV(inner)
	if err != nil {
		return PersonalDetails{}, &LdsError{File: "DG11", Reason: err.Error()}
	}

	var pd PersonalDetails
	for _, node := range nodes {
		if node.Tag == 0x5C {
			continue // tag presence list: informational only, re-derived below
		}
		if _, known := dg11FieldTags[node.Tag]; !known {
			continue // forward-compatible: skip unrecognized optional fields
		}
		pd.TagPresence = append(pd.TagPresence, node.Tag)
		if err := assignDG11Field(&pd, node.Tag, node.Value); err != nil {
			return PersonalDetails{}, err
		}
	}
	return pd, nil
}

func assignDG11Field(pd *PersonalDetails, tag uint32, value []byte) error {
	switch tag {
	case 0x5F0E:
		pd.FullNameInNationalCharacters = string(value)
	case 0x5F0F:
		pd.OtherNames = decodeOtherNames(value)
	case 0x5F10:
		pd.PersonalNumber = string(value)
	case 0x5F2B:
		pd.FullDateOfBirth = string(value)
	case 0x5F11:
		pd.PlaceOfBirth = splitFiller(value)
	case 0x5F42:
		pd.Permanent = splitFiller(value)
	case 0x5F12:
		pd.Telephone = string(value)
	case 0x5F13:
		pd.Profession = string(value)
	case 0x5F14:
		pd.Title = string(value)
	case 0x5F15:
		pd.PersonalSummary = string(value)
	case 0x5F16:
		pd.ProofOfCitizenshipImage = value
	case 0x5F17:
		pd.OtherValidTDNumbers = splitFiller(value)
	case 0x5F18:
		pd.CustodyInformation = string(value)
	default:
		return &LdsError{File: "DG11", Field: fmt.Sprintf("0x%04X", tag), Reason: "unhandled field tag"}
	}
	return nil
}

// splitFiller splits a "<"-delimited multi-value field (ICAO 9303 part 10
// §4.7.1 note on PlaceOfBirth/Permanent/OtherValidTDNumbers).
func splitFiller(value []byte) []string {
	var out []string
	start := 0
	s := string(value)
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '<' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// decodeOtherNames decodes the 0x5F0F field's nested 0xA0-tagged repeating
// OTHER_NAME blocks, each itself carrying a single 0x5F0E-tagged name.
func decodeOtherNames(value []byte) []string {
	nodes, err := ReadAllTLV(value)
	if err != nil {
		return nil
	}
	var names []string
	for _, node := range nodes {
		if node.Tag != 0xA0 {
			continue
		}
		inner, err := ReadAllTLV(node.Value)
		if err != nil {
			continue
		}
		for _, n := range inner {
			if n.Tag == 0x5F0E {
				names = append(names, string(n.Value))
			}
		}
	}
	return names
}
