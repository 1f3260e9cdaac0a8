package security_test

import (
	"testing"

	"github.com/rensmac/sparq-chat/internal/security"
)

func TestHashAndCheckPassword(t *testing.T) {
	password := "Sup3rSecret"

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	if hash == password {
		t.Error("hash must not equal the plaintext")
	}

	if !security.CheckPassword(hash, password) {
		t.Error("correct password rejected")
	}

	if security.CheckPassword(hash, "WrongPassword1") {
		t.Error("wrong password accepted")
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	first, err := security.HashPassword("Sup3rSecret")
	if err != nil {
		t.Fatal(err)
	}
	second, err := security.HashPassword("Sup3rSecret")
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("two hashes of the same password should differ")
	}
}

func TestGenerateOTP(t *testing.T) {
	code, err := security.GenerateOTP()
	if err != nil {
		t.Fatalf("failed to generate otp: %v", err)
	}

	if len(code) != 6 {
		t.Errorf("otp length = %d, want 6", len(code))
	}

	for _, c := range code {
		if c < '0' || c > '9' {
			t.Errorf("otp contains non-digit %q", c)
		}
	}
}

func TestGenerateOTP_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := security.GenerateOTP()
		if err != nil {
			t.Fatal(err)
		}
		seen[code] = true
	}

	// 20 draws from a million-code space colliding down to one value
	// means the generator is broken.
	if len(seen) == 1 {
		t.Error("otp generator returned the same code every time")
	}
}
