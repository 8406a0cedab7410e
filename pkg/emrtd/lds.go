package emrtd

import "fmt"

// DataGroup identifies one LDS1 data group by its conventional number
// (ICAO 9303 part 10 Table 3), independent of the file identifier used to
// select it over the card interface.
type DataGroup int

const (
	DG1 DataGroup = iota + 1
	DG2
	DG3
	DG4
	DG5
	DG6
	DG7
	DG8
	DG9
	DG10
	DG11
	DG12
	DG13
	DG14
	DG15
	DG16
)

var dataGroupFileIDs = map[DataGroup]uint16{
	DG1:  FileDG1,
	DG2:  FileDG2,
	DG3:  FileDG3,
	DG4:  FileDG4,
	DG5:  FileDG5,
	DG6:  FileDG6,
	DG7:  FileDG7,
	DG8:  FileDG8,
	DG9:  FileDG9,
	DG10: FileDG10,
	DG11: FileDG11,
	DG12: FileDG12,
	DG13: FileDG13,
	DG14: FileDG14,
	DG15: FileDG15,
	DG16: FileDG16,
}

// FileID returns the elementary file identifier for dg.
func (dg DataGroup) FileID() uint16 { return dataGroupFileIDs[dg] }

// dgTag is the application tag each data group's outer TLV is wrapped in
// (ICAO 9303 part 10 §4.6.2), used to sanity-check a parsed file before
// decoding its body.
var dgTag = map[DataGroup]uint32{
	DG1: 0x61, DG2: 0x75, DG3: 0x63, DG4: 0x76, DG5: 0x65, DG6: 0x66,
	DG7: 0x67, DG8: 0x68, DG9: 0x69, DG10: 0x6A, DG11: 0x6B, DG12: 0x6C,
	DG13: 0x6D, DG14: 0x6E, DG15: 0x6F, DG16: 0x70,
}

// unwrapDG peeks the outer application tag of a raw data group file and
// returns its inner value bytes, failing if the tag does not match what
// ICAO 9303 defines for dg.
func unwrapDG(dg DataGroup, raw []byte) ([]byte, error) {
	nodes, err := ReadAllTLV(raw)
	if err != nil {
		return nil, &LdsError{File: dgName(dg), Reason: err.Error()}
	}
	if len(nodes) != 1 {
		return nil, &LdsError{File: dgName(dg), Reason: fmt.Sprintf("expected exactly one outer TLV, got %d", len(nodes))}
	}
	want := dgTag[dg]
	if nodes[0].Tag != want {
		return nil, &LdsError{File: dgName(dg), Reason: fmt.Sprintf("expected outer tag 0x%02X, got 0x%02X", want, nodes[0].Tag)}
	}
	return nodes[0].Value, nil
}

func dgName(dg DataGroup) string {
	return fmt.Sprintf("DG%d", int(dg))
}

// ReadDataGroup reads and decodes one LDS1 data group from the card,
// dispatching to the group's specific decoder. Groups without a dedicated
// decoder (DG5-DG10, DG13, DG16) are returned as their raw inner bytes.
func ReadDataGroup(t Transport, dg DataGroup) (interface{}, error) {
	raw, err := ReadFile(t, dg.FileID())
	if err != nil {
		return nil, err
	}
	inner, err := unwrapDG(dg, raw)
	if err != nil {
		return nil, err
	}
	switch dg {
	case DG1:
		return DecodeDG1(inner)
	case DG2:
		return DecodeBiometricDataGroup(inner)
	case DG3:
		return DecodeBiometricDataGroup(inner)
	case DG4:
		return DecodeBiometricDataGroup(inner)
	case DG11:
		return DecodeDG11(inner)
	case DG12:
		return DecodeDG12(inner)
	case DG14:
		return DecodeDG14(inner)
	case DG15:
		return DecodeDG15(inner)
	default:
		return inner, nil
	}
}
