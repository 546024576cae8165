package serac

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewKey_Unique(t *testing.T) {
	seen := make(map[GUID]bool)
	for i := 0; i < 100; i++ {
		k := NewKey()
		if k.IsZero() {
			t.Fatal("NewKey returned the zero GUID")
		}
		if seen[k] {
			t.Fatalf("NewKey repeated %s", k)
		}
		seen[k] = true
	}
}

func TestGUID_StringRoundTrip(t *testing.T) {
	k := NewKey()
	parsed, err := ParseGUID(k.String())
	if err != nil {
		t.Fatalf("parse %q: %v", k.String(), err)
	}
	if parsed != k {
		t.Errorf("round trip changed key: %s -> %s", k, parsed)
	}
}

func TestParseGUID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    GUID
		wantErr bool
	}{
		{
			name: "canonical",
			in:   "c38d57d1-05a7-4c33-904f-7fbceee60e82",
			want: GUID{0xc38d57d1, 0x05a7, 0x4c33, [8]byte{0x90, 0x4f, 0x7f, 0xbc, 0xee, 0xe6, 0x0e, 0x82}},
		},
		{
			name: "braced registry form",
			in:   "{c38d57d1-05a7-4c33-904f-7fbceee60e82}",
			want: GUID{0xc38d57d1, 0x05a7, 0x4c33, [8]byte{0x90, 0x4f, 0x7f, 0xbc, 0xee, 0xe6, 0x0e, 0x82}},
		},
		{
			name: "uppercase",
			in:   "C38D57D1-05A7-4C33-904F-7FBCEEE60E82",
			want: GUID{0xc38d57d1, 0x05a7, 0x4c33, [8]byte{0x90, 0x4f, 0x7f, 0xbc, 0xee, 0xe6, 0x0e, 0x82}},
		},
		{name: "garbage", in: "not-a-guid", wantErr: true},
		{name: "truncated", in: "c38d57d1-05a7", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGUID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGUID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseGUID(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeyFromUUID_Deterministic(t *testing.T) {
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte("fixture"))
	a := KeyFromUUID(u)
	b := KeyFromUUID(u)
	if a != b {
		t.Errorf("same UUID produced different GUIDs: %s vs %s", a, b)
	}
	if a.String() != u.String() {
		t.Errorf("GUID text %s does not match UUID text %s", a, u)
	}
}

func TestGUID_IsZero(t *testing.T) {
	if !(GUID{}).IsZero() {
		t.Error("zero value should report IsZero")
	}
	if NewKey().IsZero() {
		t.Error("fresh key should not report IsZero")
	}
}

func TestGUID_TextMarshaling(t *testing.T) {
	k := NewKey()
	text, err := k.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back GUID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != k {
		t.Errorf("text round trip changed key: %s -> %s", k, back)
	}
	if err := back.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for bogus text")
	}
}
