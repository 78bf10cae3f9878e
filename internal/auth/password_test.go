package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func init() {
	Cost = bcrypt.MinCost
}

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash equals plaintext")
	}
	if err := CheckPassword(hash, "s3cret!"); err != nil {
		t.Fatalf("check correct password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("check wrong password err = %v", err)
	}
}

func TestCheckMalformedHash(t *testing.T) {
	if err := CheckPassword("short", "anything"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("err = %v, want ErrMismatch", err)
	}
}
