package cryptox

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	// snapshot with the argon2id parameters above
	expectedHex := "9290403300158e19f27e48e7087f7383b03065bf5b25ef23ebc40229616cd8b3"
	if hex.EncodeToString(key1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(key1))
	}
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveKey(password, []byte("salt-1"))
	key2 := DeriveKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Password1")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Fatalf("unexpected encoding: %s", hash)
	}
	if strings.Contains(hash, "Password1") {
		t.Fatalf("hash must not contain the password")
	}

	ok, err := VerifyPassword("Password1", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got %v, %v", ok, err)
	}

	ok, err = VerifyPassword("Password2", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got %v, %v", ok, err)
	}

	other, err := HashPassword("Password1")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if other == hash {
		t.Fatalf("expected random salt to change the hash")
	}
}

func TestVerifyPassword_InvalidHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$bad$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$a2V5",
	} {
		if _, err := VerifyPassword("x", encoded); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("%q: expected ErrInvalidHash, got %v", encoded, err)
		}
	}
}

func TestRandomHelpers(t *testing.T) {
	a, err := RandomBytes(32)
	if err != nil || len(a) != 32 {
		t.Fatalf("RandomBytes: %v %d", err, len(a))
	}
	b, _ := RandomBytes(32)
	if bytes.Equal(a, b) {
		t.Fatalf("expected different random values")
	}

	for i := 0; i < 200; i++ {
		n, err := RandomIntn(100)
		if err != nil {
			t.Fatalf("RandomIntn error: %v", err)
		}
		if n < 0 || n >= 100 {
			t.Fatalf("out of range: %d", n)
		}
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("some.jwt.value")
	if len(fp) != 12 {
		t.Fatalf("unexpected length %d", len(fp))
	}
	if fp != Fingerprint("some.jwt.value") {
		t.Fatalf("fingerprint must be stable")
	}
	if fp == Fingerprint("other.jwt.value") {
		t.Fatalf("fingerprints must differ")
	}
}
