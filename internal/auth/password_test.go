package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func init() {
	// テストではハッシュ計算を最小コストにする
	passwordCost = bcrypt.MinCost
}

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the plain password")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash = %q, want bcrypt format", hash)
	}

	if err := CheckPassword("s3cret-pass", hash); err != nil {
		t.Errorf("CheckPassword() error = %v, want nil", err)
	}
}

func TestHashPassword_EmptyPassword_ReturnsError(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestCheckPassword_Mismatch_ReturnsErrPasswordMismatch(t *testing.T) {
	hash, err := HashPassword("correct")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	err = CheckPassword("wrong", hash)
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("CheckPassword() error = %v, want ErrPasswordMismatch", err)
	}
}

func TestCheckPassword_MalformedHash_ReturnsOtherError(t *testing.T) {
	err := CheckPassword("anything", "not-a-bcrypt-hash")
	if err == nil {
		t.Fatal("expected error for malformed hash")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("malformed hash should not be reported as a mismatch")
	}
}
