package emrtd

import (
	"bytes"
	"testing"
)

func TestWrapAdvancesSSCByOne(t *testing.T) {
	w := NewWrapper(make([]byte, 16), make([]byte, 16), CipherAES128, make([]byte, 16))
	before := w.SSC()
	if _, err := w.Wrap(Command{CLA: 0x00, INS: 0xB0, Ne: 4}); err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	after := w.SSC()
	if bytes.Equal(before, after) {
		t.Fatal("SSC did not advance")
	}
	incrementTestSSC(before)
	if !bytes.Equal(after, before) {
		t.Errorf("SSC = % X, want % X (start+1)", after, before)
	}
}

// TestWrapUnwrapRoundTripAdvancesSSCByTwo drives a full Wrap then Unwrap
// cycle. The simulated chip response is built at the SSC value Unwrap will
// independently arrive at (start+2, since both Wrap and Unwrap each
// advance the counter once), using the same Wrapper's key material.
func TestWrapUnwrapRoundTripAdvancesSSCByTwo(t *testing.T) {
	kEnc := bytesOf(16, 0x11)
	kMac := bytesOf(16, 0x22)
	w := NewWrapper(kEnc, kMac, CipherAES128, make([]byte, 16))
	start := w.SSC()

	wrapped, err := w.Wrap(Command{CLA: 0x00, INS: 0xA4, P1: 0x02, P2: 0x0C, Data: []byte{0x01, 0x1E}})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if wrapped.CLA&0x0C == 0 {
		t.Errorf("wrapped CLA = 0x%02X, secure messaging bit not set", wrapped.CLA)
	}

	respPlain := []byte{0x6F, 0x00}
	sw1, sw2 := byte(0x90), byte(0x00)
	wrappedResp := buildSimulatedResponse(t, w, respPlain, sw1, sw2)

	unwrapped, err := w.Unwrap(wrappedResp)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(unwrapped.Data, respPlain) {
		t.Errorf("Unwrap data = % X, want % X", unwrapped.Data, respPlain)
	}
	if unwrapped.SW1 != sw1 || unwrapped.SW2 != sw2 {
		t.Errorf("Unwrap SW = %02X%02X, want %02X%02X", unwrapped.SW1, unwrapped.SW2, sw1, sw2)
	}

	after := w.SSC()
	want := append([]byte(nil), start...)
	incrementTestSSC(want)
	incrementTestSSC(want)
	if !bytes.Equal(after, want) {
		t.Errorf("SSC after one wrap+one unwrap = % X, want start+2 = % X", after, want)
	}
}

// buildSimulatedResponse builds the DO-87/DO-99/DO-8E bytes a chip would
// send back, computed at the SSC value w.Unwrap will independently reach
// (one past w's current, already-incremented-by-Wrap value). It advances
// w's SSC to compute that value, then restores it so Unwrap's own advance
// lands on the same counter the response was built with.
func buildSimulatedResponse(t *testing.T, w *Wrapper, plain []byte, sw1, sw2 byte) Response {
	t.Helper()
	saved := w.SSC()
	w.incrementSSC()

	iv, err := w.iv(true)
	if err != nil {
		t.Fatalf("iv: %v", err)
	}
	padded := PadISO9797M2(plain, w.kind.BlockSize())
	enc, err := CBCEncrypt(w.kind, w.kEnc, iv, padded)
	if err != nil {
		t.Fatalf("CBCEncrypt: %v", err)
	}
	do87 := append([]byte{0x87}, EncodeLength(len(enc)+1)...)
	do87 = append(do87, 0x01)
	do87 = append(do87, enc...)
	do99 := []byte{0x99, 0x02, sw1, sw2}

	body := append(append([]byte{}, do87...), do99...)
	mac, err := w.mac(body)
	if err != nil {
		t.Fatalf("mac: %v", err)
	}
	do8e := append([]byte{0x8E, 0x08}, mac...)

	copy(w.ssc, saved)
	data := append(append(append([]byte{}, do87...), do99...), do8e...)
	return Response{Data: data}
}

// TestMacPrependsUnpaddedSSC pins the secure-messaging MAC input construction
// (ICAO 9303 part 11 §9.8.3): the SSC is prepended unpadded, and only the
// combined SSC||data is padded (for 3DES; AES-CMAC is never pre-padded). A
// regression that pads the SSC on its own before concatenating — as this
// wrapper once did — inserts a spurious extra block and changes the MAC.
func TestMacPrependsUnpaddedSSC(t *testing.T) {
	data := []byte{0x0C, 0xA4, 0x02, 0x0C, 0x80, 0x00, 0x00, 0x00}

	t.Run("3DES", func(t *testing.T) {
		kMac := bytesOf(16, 0x22)
		w := NewWrapper(bytesOf(16, 0x11), kMac, CipherDESede, bytesOf(8, 0x01))
		got, err := w.mac(data)
		if err != nil {
			t.Fatalf("mac: %v", err)
		}
		input := append(append([]byte{}, w.ssc...), data...)
		want, err := RetailMAC(kMac, PadISO9797M2(input, 8))
		if err != nil {
			t.Fatalf("RetailMAC: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("mac() = % X, want % X", got, want)
		}

		// The old bug padded the SSC by itself first; since an 8-byte 3DES SSC
		// is already block-aligned, that appends a whole spurious 80 00...
		// block. Confirm the actual MAC does NOT match that construction.
		buggyInput := append(append([]byte{}, PadISO9797M2(w.ssc, 8)...), data...)
		buggy, err := RetailMAC(kMac, PadISO9797M2(buggyInput, 8))
		if err != nil {
			t.Fatalf("RetailMAC: %v", err)
		}
		if bytes.Equal(got, buggy) {
			t.Error("mac() matches the double-padded SSC construction, want the single unpadded-SSC construction")
		}
	})

	t.Run("AES", func(t *testing.T) {
		kMac := bytesOf(16, 0x22)
		w := NewWrapper(bytesOf(16, 0x11), kMac, CipherAES128, bytesOf(16, 0x01))
		got, err := w.mac(data)
		if err != nil {
			t.Fatalf("mac: %v", err)
		}
		input := append(append([]byte{}, w.ssc...), data...)
		full, err := AESCMAC(kMac, input)
		if err != nil {
			t.Fatalf("AESCMAC: %v", err)
		}
		if !bytes.Equal(got, full[:8]) {
			t.Errorf("mac() = % X, want % X", got, full[:8])
		}
	})
}

// TestWrapPadsHeaderExactlyOnce pins Wrap's MAC input construction for a
// command with no data field (DO-87 absent), so the header padding is the
// only padding at play. A regression that appends a manual 0x80 before
// calling PadISO9797M2 — as this wrapper once did — doubles the marker and
// changes the MAC the chip would reject.
func TestWrapPadsHeaderExactlyOnce(t *testing.T) {
	kEnc := bytesOf(16, 0x11)
	kMac := bytesOf(16, 0x22)
	w := NewWrapper(kEnc, kMac, CipherAES128, make([]byte, 16))

	wrapped, err := w.Wrap(Command{CLA: 0x00, INS: 0xB0, P1: 0x00, P2: 0x00, Ne: 4})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	header := []byte{wrapped.CLA, wrapped.INS, wrapped.P1, wrapped.P2}
	w2 := NewWrapper(kEnc, kMac, CipherAES128, make([]byte, 16))
	w2.incrementSSC()
	do97 := []byte{0x97, 0x01, 0x04}
	macInput := append(PadISO9797M2(header, 16), do97...)
	want, err := w2.mac(macInput)
	if err != nil {
		t.Fatalf("mac: %v", err)
	}

	nodes, err := ReadAllTLV(wrapped.Data)
	if err != nil {
		t.Fatalf("ReadAllTLV: %v", err)
	}
	var do8e []byte
	for _, n := range nodes {
		if n.Tag == 0x8E {
			do8e = n.Value
		}
	}
	if do8e == nil {
		t.Fatal("no DO-8E in wrapped command")
	}
	if !bytes.Equal(do8e, want) {
		t.Errorf("DO-8E = % X, want % X", do8e, want)
	}
}

func bytesOf(n int, v byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func incrementTestSSC(ssc []byte) {
	for i := len(ssc) - 1; i >= 0; i-- {
		ssc[i]++
		if ssc[i] != 0 {
			return
		}
	}
}
