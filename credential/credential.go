// Package credential hashes and verifies account passwords with bcrypt.
package credential

import (
	"golang.org/x/crypto/bcrypt"
)

// Hash returns the bcrypt hash of plain. cost <= 0 selects bcrypt.DefaultCost.
// The returned string embeds its own salt.
func Hash(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether plain matches the bcrypt hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
