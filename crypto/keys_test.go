package crypto

import (
	"strings"
	"testing"
)

func TestAddressRoundTripBech32AndHex(t *testing.T) {
	var raw [20]byte
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	encoded := FormatAddress(raw)
	if !strings.HasPrefix(encoded, "rent1") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	parsed, err := ParseAddress(encoded)
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if parsed != raw {
		t.Fatalf("bech32 mismatch")
	}
	parsedHex, err := ParseAddress("0x" + HexAddress(raw))
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if parsedHex != raw {
		t.Fatalf("hex mismatch")
	}
}

func TestParseAddressRejectsForeignPrefix(t *testing.T) {
	var raw [20]byte
	raw[0] = 9
	foreign := MustNewAddress(AddressPrefix("other"), raw[:]).String()
	if _, err := ParseAddress(foreign); err == nil {
		t.Fatalf("expected prefix error")
	}
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatalf("expected hex length error")
	}
	if _, err := ParseAddress(""); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	if ModuleAddress("rental/escrow") != ModuleAddress("rental/escrow") {
		t.Fatalf("module address not deterministic")
	}
	if ModuleAddress("rental/escrow") == ModuleAddress("bank") {
		t.Fatalf("module addresses collide")
	}
}
