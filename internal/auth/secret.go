package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a shared secret (e.g. the inbound webhook secret) with the given cost.
func HashSecret(secret string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifySecret reports whether plain matches the stored bcrypt hash.
// An empty hash never matches.
func VerifySecret(hashed, plain string) bool {
	if strings.TrimSpace(hashed) == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
