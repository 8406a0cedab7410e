package emrtd

import (
	"bytes"
	"testing"
)

func TestReadTagAndLength(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantTag    uint32
		wantLength int
	}{
		{"two-byte tag 0x5F1F, short length", []byte{0x5F, 0x1F, 0x05, 0, 0, 0, 0, 0}, 0x5F1F, 0x05},
		{"single-byte tag, long form 0x81", []byte{0x61, 0x81, 0x90}, 0x61, 0x90},
		{"single-byte tag, long form 0x82", []byte{0x77, 0x82, 0x01, 0x00}, 0x77, 0x100},
		{"two-byte tag (0x1F continuation)", []byte{0x7F, 0x21, 0x10}, 0x7F21, 0x10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewTrackingReader(bytes.NewReader(tc.data))
			tag, length, err := ReadTagAndLength(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tag != tc.wantTag {
				t.Errorf("tag = 0x%X, want 0x%X", tag, tc.wantTag)
			}
			if length != tc.wantLength {
				t.Errorf("length = %d, want %d", length, tc.wantLength)
			}
		})
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.OpenConstructed(0x7C)
	w.WritePrimitive(0x80, []byte{0x01, 0x02, 0x03})
	w.WritePrimitive(0x81, []byte{0xAA})
	if err := w.CloseConstructed(); err != nil {
		t.Fatalf("CloseConstructed: %v", err)
	}
	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	nodes, err := ReadAllTLV(out)
	if err != nil {
		t.Fatalf("ReadAllTLV: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Tag != 0x7C {
		t.Fatalf("expected one outer 0x7C node, got %+v", nodes)
	}
	inner, err := ReadAllTLV(nodes[0].Value)
	if err != nil {
		t.Fatalf("ReadAllTLV(inner): %v", err)
	}
	if len(inner) != 2 {
		t.Fatalf("expected 2 inner nodes, got %d", len(inner))
	}
	if inner[0].Tag != 0x80 || !bytes.Equal(inner[0].Value, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("inner[0] = %+v", inner[0])
	}
	if inner[1].Tag != 0x81 || !bytes.Equal(inner[1].Value, []byte{0xAA}) {
		t.Errorf("inner[1] = %+v", inner[1])
	}
}

func TestEncodeLengthMinimalForm(t *testing.T) {
	tests := []struct {
		length int
		want   []byte
	}{
		{0x00, []byte{0x00}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x80}},
		{0xFF, []byte{0x81, 0xFF}},
		{0x100, []byte{0x82, 0x01, 0x00}},
	}
	for _, tc := range tests {
		got := EncodeLength(tc.length)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("EncodeLength(0x%X) = % X, want % X", tc.length, got, tc.want)
		}
	}
}

func TestCloseConstructedWithoutOpenFails(t *testing.T) {
	w := NewWriter()
	if err := w.CloseConstructed(); err == nil {
		t.Fatal("expected error closing an unopened scope")
	}
}
