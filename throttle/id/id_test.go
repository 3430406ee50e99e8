package id

import "testing"

func TestNewRequestID_Prefix(t *testing.T) {
	i := NewRequestID()
	if i.IsNil() {
		t.Fatal("new ID should not be nil")
	}
	if i.Prefix() != PrefixRequest {
		t.Fatalf("expected prefix %q, got %q", PrefixRequest, i.Prefix())
	}
}

func TestParse_Roundtrip(t *testing.T) {
	orig := NewEngineID()

	parsed, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.String() != orig.String() {
		t.Fatalf("roundtrip mismatch: %q != %q", parsed.String(), orig.String())
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestParseWithPrefix_Mismatch(t *testing.T) {
	reqID := NewRequestID()
	if _, err := ParseEngineID(reqID.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestID_TextMarshaling(t *testing.T) {
	orig := NewRequestID()

	data, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded ID
	if err := decoded.UnmarshalText(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.String() != orig.String() {
		t.Fatalf("roundtrip mismatch: %q != %q", decoded.String(), orig.String())
	}
}

func TestNil_String(t *testing.T) {
	if Nil.String() != "" {
		t.Fatalf("nil ID should stringify empty, got %q", Nil.String())
	}
	if !Nil.IsNil() {
		t.Fatal("Nil should report IsNil")
	}
}
