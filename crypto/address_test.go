package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 20)
	addr := NewAddress(DefaultPrefix, raw)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != DefaultPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("bytes mismatch: %x", decoded.Bytes())
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	a := ModuleAddress(DefaultPrefix, "marketplace")
	b := ModuleAddress(DefaultPrefix, "marketplace")
	if a.String() != b.String() {
		t.Fatalf("module address not deterministic: %s vs %s", a, b)
	}
	if ModuleAddress(DefaultPrefix, "bank").String() == a.String() {
		t.Fatalf("distinct modules share an address")
	}
}

func TestValidateAddress(t *testing.T) {
	good := ModuleAddress(DefaultPrefix, "seller").String()
	if err := ValidateAddress(DefaultPrefix, good); err != nil {
		t.Fatalf("valid address rejected: %v", err)
	}
	other := ModuleAddress("cosmos", "seller").String()
	if err := ValidateAddress(DefaultPrefix, other); err == nil {
		t.Fatalf("expected prefix mismatch to fail")
	}
	if err := ValidateAddress(DefaultPrefix, "stars1notbech32"); err == nil {
		t.Fatalf("expected malformed address to fail")
	}
	if err := ValidateAddress("", "b1"); err != nil {
		t.Fatalf("plain identifier rejected without prefix: %v", err)
	}
	for _, bad := range []string{"", "has space"} {
		if err := ValidateAddress("", bad); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}
