package credentials

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	HashVersionBcrypt = "bcrypt"

	// MinPasswordLength is enforced at hashing time so no caller can
	// slip a weak password past the handlers.
	MinPasswordLength = 8
)

// HashPassword hashes a plaintext password with bcrypt and reports the
// scheme version stored alongside the hash, so a future scheme change
// can migrate rows lazily on next login.
func HashPassword(password string) (hash string, version string, err error) {
	if len(password) < MinPasswordLength {
		return "", "", errors.New("password too short")
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	return string(bytes), HashVersionBcrypt, nil
}

// VerifyPassword compares a plaintext password with the stored hash.
func VerifyPassword(hash string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
