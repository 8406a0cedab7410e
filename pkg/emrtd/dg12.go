package emrtd

import "fmt"

// DocumentDetails is DG12's optional document detail fields (ICAO 9303
// part 10 §4.7.2), analogous in structure to DG11's personal details.
type DocumentDetails struct {
	IssuingAuthority     string
	DateOfIssue          string
	OtherPersons         []string
	EndorsementsObserved string
	TaxExitRequirements  string
	ImageOfFront         []byte
	ImageOfRear          []byte
	DateAndTimeOfPersonalization string
	PersonalizationSystemSerial  string

	TagPresence []uint32
}

var dg12FieldTags = map[uint32]string{
	0x5F19: "IssuingAuthority",
	0x5F26: "DateOfIssue",
	0x5F1A: "OtherPersons",
	0x5F1B: "EndorsementsObserved",
	0x5F1C: "TaxExitRequirements",
	0x5F1D: "ImageOfFront",
	0x5F1E: "ImageOfRear",
	0x5F55: "DateAndTimeOfPersonalization",
	0x5F56: "PersonalizationSystemSerial",
}

// DecodeDG12 decodes DG12 the same way DecodeDG11 decodes DG11: an
// optional tag-list template followed by whichever fields the chip
// populated, in any order.
func DecodeDG12(inner []byte) (DocumentDetails, error) {
	nodes, err := ReadAllTLV(inner)
	if err != nil {
		return DocumentDetails{}, &LdsError{File: "DG12", Reason: err.Error()}
	}

	var dd DocumentDetails
	for _, node := range nodes {
		if node.Tag == 0x5C {
			continue
		}
		if _, known := dg12FieldTags[node.Tag]; !known {
			continue
		}
		dd.TagPresence = append(dd.TagPresence, node.Tag)
		if err := assignDG12Field(&dd, node.Tag, node.Value); err != nil {
			return DocumentDetails{}, err
		}
	}
	return dd, nil
}

func assignDG12Field(dd *DocumentDetails, tag uint32, value []byte) error {
	switch tag {
	case 0x5F19:
		dd.IssuingAuthority = string(value)
	case 0x5F26:
		dd.DateOfIssue = string(value)
	case 0x5F1A:
		dd.OtherPersons = splitFiller(value)
	case 0x5F1B:
		dd.EndorsementsObserved = string(value)
	case 0x5F1C:
		dd.TaxExitRequirements = string(value)
	case 0x5F1D:
		dd.ImageOfFront = value
	case 0x5F1E:
		dd.ImageOfRear = value
	case 0x5F55:
		dd.DateAndTimeOfPersonalization = string(value)
	case 0x5F56:
		dd.PersonalizationSystemSerial = string(value)
	default:
		return &LdsError{File: "DG12", Field: fmt.Sprintf("0x%04X", tag), Reason: "unhandled field tag"}
	}
	return nil
}
