package emrtd

// COM is the decoded Common Data Element file: the LDS version, Unicode
// version, and the list of data groups the chip actually carries (ICAO
// 9303 part 10 §4.6.1). A reader uses the tag list to know which DGs to
// even attempt reading instead of probing blindly.
type COM struct {
	LDSVersion     string
	UnicodeVersion string
	DataGroupTags  []byte
}

// DecodeCOM decodes COM's inner value: tag 0x5F01 (LDS version, 4 chars),
// tag 0x5F36 (Unicode version, 6 chars), tag 0x5C (tag list).
func DecodeCOM(inner []byte) (COM, error) {
	nodes, err := ReadAllTLV(inner)
	if err != nil {
		return COM{}, &LdsError{File: "COM", Reason: err.Error()}
	}
	var com COM
	for _, node := range nodes {
		switch node.Tag {
		case 0x5F01:
			com.LDSVersion = string(node.Value)
		case 0x5F36:
			com.UnicodeVersion = string(node.Value)
		case 0x5C:
			com.DataGroupTags = node.Value
		}
	}
	if com.DataGroupTags == nil {
		return COM{}, &LdsError{File: "COM", Reason: "missing data group tag list (0x5C)"}
	}
	return com, nil
}

// PresentDataGroups translates COM's raw tag list (the application tags
// from dgTag) into the DataGroup numbers the chip announced.
func (c COM) PresentDataGroups() []DataGroup {
	tagToDG := make(map[byte]DataGroup, len(dgTag))
	for dg, tag := range dgTag {
		tagToDG[byte(tag)] = dg
	}
	var out []DataGroup
	for _, tag := range c.DataGroupTags {
		if dg, ok := tagToDG[tag]; ok {
			out = append(out, dg)
		}
	}
	return out
}

// ReadCOM reads and decodes EF.COM (tag 0x60) from the card.
func ReadCOM(t Transport) (COM, error) {
	raw, err := ReadFile(t, FileCOM)
	if err != nil {
		return COM{}, err
	}
	nodes, err := ReadAllTLV(raw)
	if err != nil || len(nodes) != 1 || nodes[0].Tag != 0x60 {
		return COM{}, &LdsError{File: "COM", Reason: "expected outer tag 0x60"}
	}
	return DecodeCOM(nodes[0].Value)
}
