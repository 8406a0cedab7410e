package emrtd

import (
	"bytes"
	"fmt"
)

// Transport abstracts APDU exchange with the chip for real PC/SC readers
// and test doubles alike.
type Transport interface {
	Transmit(apdu []byte) ([]byte, error)
}

// Command is a plaintext (unwrapped) command APDU.
type Command struct {
	CLA, INS, P1, P2 byte
	Data             []byte
	Ne               int // expected response length; -1 = absent (no Le byte)
}

// Response is a parsed response APDU with the status word split out.
type Response struct {
	Data     []byte
	SW1, SW2 byte
}

// SW returns the 16-bit status word.
func (r Response) SW() uint16 {
	return uint16(r.SW1)<<8 | uint16(r.SW2)
}

// OK reports whether the status word is 0x9000.
func (r Response) OK() bool {
	return r.SW() == 0x9000
}

// Marshal encodes a Command into raw APDU bytes, choosing short or extended
// length encoding based on the size of Data and Ne.
func (c Command) Marshal() []byte {
	extended := len(c.Data) > 255 || c.Ne > 256
	out := []byte{c.CLA, c.INS, c.P1, c.P2}

	if len(c.Data) > 0 {
		if extended {
			out = append(out, 0x00, byte(len(c.Data)>>8), byte(len(c.Data)))
		} else {
			out = append(out, byte(len(c.Data)))
		}
		out = append(out, c.Data...)
	}

	if c.Ne > 0 {
		if extended {
			if len(c.Data) == 0 {
				out = append(out, 0x00)
			}
			if c.Ne >= 65536 {
				out = append(out, 0x00, 0x00)
			} else {
				out = append(out, byte(c.Ne>>8), byte(c.Ne))
			}
		} else {
			if c.Ne >= 256 {
				out = append(out, 0x00)
			} else {
				out = append(out, byte(c.Ne))
			}
		}
	}
	return out
}

// Transmit sends a Command over the transport and parses the Response,
// surfacing a non-9000 status word as CardError.
func Transmit(t Transport, cmd Command) (Response, error) {
	raw, err := t.Transmit(cmd.Marshal())
	if err != nil {
		return Response{}, &TransportError{Cause: err}
	}
	if len(raw) < 2 {
		return Response{}, &TransportError{Cause: fmt.Errorf("short response: %d bytes", len(raw))}
	}
	resp := Response{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}
	if !resp.OK() {
		return resp, &CardError{SW: resp.SW()}
	}
	return resp, nil
}

// Applet AID for the eMRTD LDS1 application (ICAO 9303 part 10 §4.1).
var appletAID = []byte{0xA0, 0x00, 0x00, 0x02, 0x47, 0x10, 0x01}

// File identifiers for the LDS1 application.
const (
	FileCOM          = 0x011E
	FileSOD          = 0x011D
	FileDG1          = 0x0101
	FileDG2          = 0x0102
	FileDG3          = 0x0103
	FileDG4          = 0x0104
	FileDG5          = 0x0105
	FileDG6          = 0x0106
	FileDG7          = 0x0107
	FileDG8          = 0x0108
	FileDG9          = 0x0109
	FileDG10         = 0x010A
	FileDG11         = 0x010B
	FileDG12         = 0x010C
	FileDG13         = 0x010D
	FileDG14         = 0x010E
	FileDG15         = 0x010F
	FileDG16         = 0x0110
	FileCardAccess   = 0x011C
	FileCardSecurity = 0x011D
)

// SelectApplet selects the eMRTD LDS1 application by AID.
func SelectApplet(t Transport) error {
	_, err := Transmit(t, Command{CLA: 0x00, INS: 0xA4, P1: 0x04, P2: 0x0C, Data: appletAID})
	return err
}

// SelectEF selects an elementary file by its 2-byte identifier.
func SelectEF(t Transport, fid uint16) error {
	_, err := Transmit(t, Command{
		CLA: 0x00, INS: 0xA4, P1: 0x02, P2: 0x0C,
		Data: []byte{byte(fid >> 8), byte(fid)},
	})
	return err
}

// ReadBinary reads up to 256 bytes from the currently selected file using
// short-form READ BINARY (INS 0xB0), retrying with the corrected Le on a
// 6C xx status word.
func ReadBinary(t Transport, offset uint16, le int) ([]byte, error) {
	if le <= 0 {
		le = 256
	}
	cmd := Command{CLA: 0x00, INS: 0xB0, P1: byte(offset >> 8), P2: byte(offset), Ne: le}
	resp, err := Transmit(t, cmd)
	if err != nil {
		var cerr *CardError
		if asCardError(err, &cerr) && (cerr.SW&0xFF00) == 0x6C00 {
			cmd.Ne = int(cerr.SW & 0xFF)
			resp, err = Transmit(t, cmd)
		}
		if err != nil {
			return nil, err
		}
	}
	return resp.Data, nil
}

func asCardError(err error, target **CardError) bool {
	ce, ok := err.(*CardError)
	if ok {
		*target = ce
	}
	return ok
}

// ReadFile reads a complete elementary file (SELECT + successive READ
// BINARY calls) through the given transport, which may itself be an
// *SMTransport wrapping a secure-messaging Wrapper. It peeks the outer
// TLV header to learn the file length before streaming the rest.
func ReadFile(t Transport, fid uint16) ([]byte, error) {
	if err := SelectEF(t, fid); err != nil {
		return nil, err
	}
	head, err := ReadBinary(t, 0, 8)
	if err != nil {
		return nil, err
	}
	r := NewTrackingReader(bytes.NewReader(head))
	_, length, err := ReadTagAndLength(r)
	if err != nil {
		return nil, &LdsError{Reason: fmt.Sprintf("file 0x%04X: %v", fid, err)}
	}
	headerLen := int(r.Offset())
	total := headerLen + length

	out := make([]byte, 0, total)
	out = append(out, head[:min(total, len(head))]...)
	offset := len(out)
	for offset < total {
		chunk := total - offset
		if chunk > 0xF0 {
			chunk = 0xF0
		}
		part, err := ReadBinary(t, uint16(offset), chunk)
		if err != nil {
			return nil, err
		}
		if len(part) == 0 {
			break
		}
		out = append(out, part...)
		offset += len(part)
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
