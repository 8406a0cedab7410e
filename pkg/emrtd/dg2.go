package emrtd

// BiometricDataGroup is the decoded CBEFF biometric information template
// shared by DG2 (face), DG3 (fingerprint), and DG4 (iris) (ICAO 9303 part
// 10 §6, CBEFF per ISO/IEC 19785-1).
type BiometricDataGroup struct {
	Instances []BiometricInstance
}

// BiometricInstance is one biometric information template (BIT): a header
// describing the capture and the raw encoded biometric data block (a
// JPEG/JPEG2000 face image for DG2, ISO/IEC 19794 finger/iris records for
// DG3/DG4). This package does not decode the image/record payload itself.
type BiometricInstance struct {
	FormatOwner int
	FormatType  int
	Data        []byte
}

// DecodeBiometricDataGroup decodes the common CBEFF structure: tag 0x7F61
// (biometric info group template) containing tag 0x02 (instance count) and
// one or more tag 0x7F60 (biometric info template) entries, each with a
// header template (0xA1) and the raw biometric data block (0x5F2E, or
// 0x7F2E when the block itself is BER-TLV wrapped).
func DecodeBiometricDataGroup(inner []byte) (BiometricDataGroup, error) {
	nodes, err := ReadAllTLV(inner)
	if err != nil {
		return BiometricDataGroup{}, &LdsError{Reason: err.Error()}
	}
	if len(nodes) != 1 || nodes[0].Tag != 0x7F61 {
		return BiometricDataGroup{}, &LdsError{Reason: "expected biometric information group template (0x7F61)"}
	}
	group, err := ReadAllTLV(nodes[0].Value)
	if err != nil {
		return BiometricDataGroup{}, &LdsError{Reason: err.Error()}
	}

	var out BiometricDataGroup
	for _, node := range group {
		if node.Tag != 0x7F60 {
			continue // tag 0x02 (count) and any vendor extension skipped
		}
		inst, err := decodeBiometricInstance(node.Value)
		if err != nil {
			return BiometricDataGroup{}, err
		}
		out.Instances = append(out.Instances, inst)
	}
	return out, nil
}

func decodeBiometricInstance(raw []byte) (BiometricInstance, error) {
	nodes, err := ReadAllTLV(raw)
	if err != nil {
		return BiometricInstance{}, &LdsError{Reason: err.Error()}
	}
	var inst BiometricInstance
	for _, node := range nodes {
		switch node.Tag {
		case 0xA1:
			owner, typ, err := decodeBiometricHeader(node.Value)
			if err != nil {
				return BiometricInstance{}, err
			}
			inst.FormatOwner, inst.FormatType = owner, typ
		case 0x5F2E, 0x7F2E:
			inst.Data = node.Value
		}
	}
	if inst.Data == nil {
		return BiometricInstance{}, &LdsError{Reason: "biometric information template missing data block"}
	}
	return inst, nil
}

// decodeBiometricHeader reads the format-owner (0x87) and format-type
// (0x88) fields out of a biometric header template; other fields (quality,
// capture date, validity period) are present in real captures but are not
// needed for this reader's scope.
func decodeBiometricHeader(raw []byte) (owner, typ int, err error) {
	nodes, err := ReadAllTLV(raw)
	if err != nil {
		return 0, 0, &LdsError{Reason: err.Error()}
	}
	for _, node := range nodes {
		switch node.Tag {
		case 0x87:
			owner = beUint(node.Value)
		case 0x88:
			typ = beUint(node.Value)
		}
	}
	return owner, typ, nil
}

func beUint(b []byte) int {
	v := 0
	for _, x := range b {
		v = v<<8 | int(x)
	}
	return v
}
