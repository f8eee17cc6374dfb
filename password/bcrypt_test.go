package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := b.Hash("hunter22")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !b.Handles(hash) {
		t.Fatalf("bcrypt does not recognize its own hash %q", hash)
	}
	if ok, err := b.Verify("hunter22", hash); err != nil || !ok {
		t.Fatalf("expected match: ok=%v err=%v", ok, err)
	}
	if ok, err := b.Verify("hunter23", hash); err != nil || ok {
		t.Fatalf("expected mismatch without error: ok=%v err=%v", ok, err)
	}
}

func TestBcryptRejectsOver72Bytes(t *testing.T) {
	b, _ := NewBcrypt(bcrypt.MinCost)
	if _, err := b.Hash(strings.Repeat("x", BcryptMaxBytes+1)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	if _, err := b.Hash(strings.Repeat("x", BcryptMaxBytes)); err != nil {
		t.Fatalf("expected 72 bytes to be accepted: %v", err)
	}
}

func TestBcryptInvalidCost(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected invalid cost to fail")
	}
}

func TestMigratingVerifiesLegacyHashes(t *testing.T) {
	legacy, _ := NewBcrypt(bcrypt.MinCost)
	primary := newArgon2(t, fastArgon2Config())
	m := Migrating{Primary: primary, Legacy: []Algorithm{legacy}}

	old, _ := legacy.Hash("legacy-pass1")
	if ok, err := m.Verify("legacy-pass1", old); err != nil || !ok {
		t.Fatalf("expected legacy hash to verify: ok=%v err=%v", ok, err)
	}
	if !m.NeedsRehash(old) {
		t.Fatal("expected legacy hash to need rehash")
	}

	fresh, err := m.Hash("legacy-pass1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !primary.Handles(fresh) {
		t.Fatal("new hashes must use the primary algorithm")
	}
	if m.NeedsRehash(fresh) {
		t.Fatal("primary hash should not need rehash")
	}

	if _, err := m.Verify("x", "plaintext"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for unknown encoding, got %v", err)
	}
}
