package secrets

import (
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	sealed, err := s.Encrypt("alice@example.com")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasPrefix(sealed, "enc:") || strings.Contains(sealed, "example.com") {
		t.Fatalf("value not sealed: %q", sealed)
	}

	plain, err := s.Decrypt(sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "alice@example.com" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestSealer_EncryptIsIdempotentOnSealedValues(t *testing.T) {
	s, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := s.Encrypt("value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	again, err := s.Encrypt(sealed)
	if err != nil {
		t.Fatalf("re-encrypt: %v", err)
	}
	if again != sealed {
		t.Fatalf("sealed value must not be double-sealed")
	}
}

func TestSealer_NoKeyPassthrough(t *testing.T) {
	s, err := NewSealer("")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	if s.Enabled() {
		t.Fatalf("empty key must disable sealing")
	}
	out, err := s.Encrypt("plain")
	if err != nil || out != "plain" {
		t.Fatalf("expected passthrough, got %q err=%v", out, err)
	}
	if _, err := s.Decrypt("enc:abcd"); err == nil {
		t.Fatalf("decrypting sealed data without a key must fail")
	}
}

func TestSealer_RejectsBadKeys(t *testing.T) {
	if _, err := NewSealer("zz"); err == nil {
		t.Fatalf("non-hex key must be rejected")
	}
	if _, err := NewSealer("0011"); err == nil {
		t.Fatalf("short key must be rejected")
	}
}

func TestSealer_RejectsTamperedCiphertext(t *testing.T) {
	s, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	sealed, err := s.Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	tampered := sealed[:len(sealed)-2] + "AA"
	if tampered == sealed {
		tampered = sealed[:len(sealed)-2] + "BB"
	}
	if _, err := s.Decrypt(tampered); err == nil {
		t.Fatalf("tampered ciphertext must fail authentication")
	}
}
