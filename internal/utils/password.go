package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPIN returns the bcrypt hash of the staff PIN using the given cost.
func HashPIN(pin string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(pin)), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPIN safely compares a bcrypt hash and a plain PIN.  An empty hash
// never matches.
func VerifyPIN(hash, pin string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(pin))) == nil
}
