package emrtd

import (
	"fmt"
	"strings"
)

// MRZ is the parsed machine-readable zone carried by DG1, normalized
// across the three document formats ICAO 9303 part 5 defines.
type MRZ struct {
	Format         string // "TD1", "TD2", or "TD3"
	DocumentType   string
	IssuingState   string
	DocumentNumber string
	Nationality    string
	DateOfBirth    string
	Sex            string
	DateOfExpiry   string
	Surname        string
	GivenNames     string
	OptionalData   string
	OptionalData2  string // TD1 only (line 2's optional field)
}

// DecodeDG1 decodes DG1's inner value: a single primitive TLV (tag 0x5F1F)
// carrying the raw MRZ character data, 90 bytes for TD1, 72 for TD2, 88 for
// TD3 (ICAO 9303 part 10 §4.6.2.2).
func DecodeDG1(inner []byte) (MRZ, error) {
	nodes, err := ReadAllTLV(inner)
	if err != nil {
		return MRZ{}, &LdsError{File: "DG1", Reason: err.Error()}
	}
	if len(nodes) != 1 || nodes[0].Tag != 0x5F1F {
		return MRZ{}, &LdsError{File: "DG1", Reason: "expected a single MRZ data object (tag 0x5F1F)"}
	}
	mrz := string(nodes[0].Value)
	switch len(mrz) {
	case 90:
		return parseTD1(mrz)
	case 72:
		return parseTD2(mrz)
	case 88:
		return parseTD3(mrz)
	default:
		return MRZ{}, &LdsError{File: "DG1", Field: "MRZ", Reason: fmt.Sprintf("unrecognized MRZ length %d", len(mrz))}
	}
}

func trimFiller(s string) string {
	return strings.TrimRight(s, "<")
}

func parseTD3(mrz string) (MRZ, error) {
	line1, line2 := mrz[:44], mrz[44:]
	m := MRZ{
		Format:         "TD3",
		DocumentType:   trimFiller(line1[0:2]),
		IssuingState:   line1[2:5],
		DocumentNumber: trimFiller(line2[0:9]),
		Nationality:    line2[10:13],
		DateOfBirth:    line2[13:19],
		Sex:            string(line2[20]),
		DateOfExpiry:   line2[21:27],
		OptionalData:   trimFiller(line2[28:42]),
	}
	surname, given := splitNameField(line1[5:44])
	m.Surname, m.GivenNames = surname, given
	return m, nil
}

func parseTD2(mrz string) (MRZ, error) {
	line1, line2 := mrz[:36], mrz[36:]
	m := MRZ{
		Format:         "TD2",
		DocumentType:   trimFiller(line1[0:2]),
		IssuingState:   line1[2:5],
		DocumentNumber: trimFiller(line2[0:9]),
		Nationality:    line2[10:13],
		DateOfBirth:    line2[13:19],
		Sex:            string(line2[20]),
		DateOfExpiry:   line2[21:27],
		OptionalData:   trimFiller(line2[28:36]),
	}
	surname, given := splitNameField(line1[5:36])
	m.Surname, m.GivenNames = surname, given
	return m, nil
}

func parseTD1(mrz string) (MRZ, error) {
	line1, line2, line3 := mrz[:30], mrz[30:60], mrz[60:90]
	m := MRZ{
		Format:         "TD1",
		DocumentType:   trimFiller(line1[0:2]),
		IssuingState:   line1[2:5],
		DocumentNumber: trimFiller(line1[5:14]),
		OptionalData:   trimFiller(line1[15:30]),
		DateOfBirth:    line2[0:6],
		Sex:            string(line2[7]),
		DateOfExpiry:   line2[8:14],
		Nationality:    line2[15:18],
		OptionalData2:  trimFiller(line2[18:29]),
	}
	surname, given := splitNameField(line3)
	m.Surname, m.GivenNames = surname, given
	return m, nil
}

// splitNameField splits an MRZ name field on the first "<<" separator into
// surname and given-names, collapsing internal single '<' fillers to
// spaces in the given-names part (ICAO 9303 part 5 §4.2.2).
func splitNameField(field string) (surname, given string) {
	parts := strings.SplitN(field, "<<", 2)
	surname = strings.ReplaceAll(trimFiller(parts[0]), "<", " ")
	if len(parts) == 2 {
		given = strings.ReplaceAll(trimFiller(parts[1]), "<", " ")
	}
	return surname, given
}
