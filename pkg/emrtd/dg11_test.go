package emrtd

import (
	"reflect"
	"testing"
)

func TestDecodeDG11(t *testing.T) {
	w := NewWriter()
	w.WritePrimitive(0x5C, []byte{0x5F, 0x0E, 0x5F, 0x2B, 0x5F, 0x11})
	w.WritePrimitive(0x5F0E, []byte("ERIKSSON<<ANNA<MARIA"))
	w.WritePrimitive(0x5F2B, []byte("19740812"))
	w.WritePrimitive(0x5F11, []byte("ZURICH<SWITZERLAND"))
	inner, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	pd, err := DecodeDG11(inner)
	if err != nil {
		t.Fatalf("DecodeDG11: %v", err)
	}
	if pd.FullNameInNationalCharacters != "ERIKSSON<<ANNA<MARIA" {
		t.Errorf("FullNameInNationalCharacters = %q", pd.FullNameInNationalCharacters)
	}
	if pd.FullDateOfBirth != "19740812" {
		t.Errorf("FullDateOfBirth = %q", pd.FullDateOfBirth)
	}
	wantPlace := []string{"ZURICH", "SWITZERLAND"}
	if !reflect.DeepEqual(pd.PlaceOfBirth, wantPlace) {
		t.Errorf("PlaceOfBirth = %v, want %v", pd.PlaceOfBirth, wantPlace)
	}

	wantTags := []uint32{0x5F0E, 0x5F2B, 0x5F11}
	if !reflect.DeepEqual(pd.TagPresence, wantTags) {
		t.Errorf("TagPresence = %v, want %v", pd.TagPresence, wantTags)
	}
}

func TestDecodeDG11OtherNames(t *testing.T) {
	nested := NewWriter()
	nested.OpenConstructed(0xA0)
	nested.WritePrimitive(0x5F0E, []byte("SMITH<<JOHN"))
	if err := nested.CloseConstructed(); err != nil {
		t.Fatalf("CloseConstructed: %v", err)
	}
	nested.OpenConstructed(0xA0)
	nested.WritePrimitive(0x5F0E, []byte("SMYTHE<<JON"))
	if err := nested.CloseConstructed(); err != nil {
		t.Fatalf("CloseConstructed: %v", err)
	}
	nestedBytes, err := nested.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	w := NewWriter()
	w.WritePrimitive(0x5F0F, nestedBytes)
	inner, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	pd, err := DecodeDG11(inner)
	if err != nil {
		t.Fatalf("DecodeDG11: %v", err)
	}
	want := []string{"SMITH<<JOHN", "SMYTHE<<JON"}
	if !reflect.DeepEqual(pd.OtherNames, want) {
		t.Errorf("OtherNames = %v, want %v", pd.OtherNames, want)
	}
}

func TestDecodeDG11SkipsUnknownTags(t *testing.T) {
	w := NewWriter()
	w.WritePrimitive(0x5F99, []byte("unrecognized"))
	w.WritePrimitive(0x5F13, []byte("ENGINEER"))
	inner, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	pd, err := DecodeDG11(inner)
	if err != nil {
		t.Fatalf("DecodeDG11: %v", err)
	}
	if pd.Profession != "ENGINEER" {
		t.Errorf("Profession = %q, want ENGINEER", pd.Profession)
	}
	if len(pd.TagPresence) != 1 || pd.TagPresence[0] != 0x5F13 {
		t.Errorf("TagPresence = %v, want [0x5F13]", pd.TagPresence)
	}
}
