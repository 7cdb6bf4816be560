package types

import (
	"bytes"
	"testing"
)

func TestHexToHash(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{"full", "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000", nil, false},
		{"short left-pads", "0x01", append(make([]byte, 31), 0x01), false},
		{"odd length", "0x1", append(make([]byte, 31), 0x01), false},
		{"no prefix", "ff", append(make([]byte, 31), 0xff), false},
		{"too long", "0x" + "00" + "ab00000000000000000000000000000000000000000000000000000000000000", nil, true},
		{"not hex", "0xzz", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := HexToHash(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("HexToHash: %v", err)
			}
			if tt.want != nil && !bytes.Equal(h.Bytes(), tt.want) {
				t.Errorf("hash = %x, want %x", h.Bytes(), tt.want)
			}
		})
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	h := BytesToHash([]byte{0xde, 0xad, 0xbe, 0xef})
	got, err := HexToHash(h.Hex())
	if err != nil {
		t.Fatalf("HexToHash: %v", err)
	}
	if got != h {
		t.Errorf("round trip = %s, want %s", got, h)
	}
}

func TestBytesToHashTruncatesLeft(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	h := BytesToHash(long)
	if !bytes.Equal(h.Bytes(), long[8:]) {
		t.Errorf("hash = %x, want rightmost 32 bytes", h.Bytes())
	}
}

func TestHexToAddress(t *testing.T) {
	a, err := HexToAddress("0x0000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("HexToAddress: %v", err)
	}
	if a.IsZero() {
		t.Error("address should not be zero")
	}
	if a != BytesToAddress([]byte{1}) {
		t.Errorf("address = %s", a)
	}

	if _, err := HexToAddress("0x" + "00" + "0000000000000000000000000000000000000001"); err == nil {
		t.Error("expected error for 21-byte address")
	}
}

func TestParseAirdropID(t *testing.T) {
	id, err := ParseAirdropID("42")
	if err != nil || id != 42 {
		t.Errorf("ParseAirdropID = %d, %v", id, err)
	}
	if _, err := ParseAirdropID("-1"); err == nil {
		t.Error("expected error for negative id")
	}
	if _, err := ParseAirdropID("abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}
