package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"regexp"

	"golang.org/x/crypto/pbkdf2"

	"daybook/internal/model"
)

const (
	saltSize = 16
	keySize  = sha256.Size

	// DefaultIterations is the PBKDF2 work factor for new password hashes.
	DefaultIterations = 260000
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,20}$`)
	letterPattern   = regexp.MustCompile(`[A-Za-z]`)
	digitPattern    = regexp.MustCompile(`\d`)
)

// ValidUsername reports whether s is 4-20 letters, digits or underscores.
func ValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// ValidPassword reports whether s has at least 8 characters including a
// letter and a digit.
func ValidPassword(s string) bool {
	return len([]rune(s)) >= 8 && letterPattern.MatchString(s) && digitPattern.MatchString(s)
}

// HashPassword derives a PBKDF2-SHA256 hash with a fresh random salt.
func HashPassword(password string, iterations int) (salt, hash []byte, err error) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	salt = make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, err
	}
	return salt, pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New), nil
}

// VerifyPassword checks password against the user's stored hash in constant
// time.
func VerifyPassword(u model.User, password string) bool {
	if len(u.PasswordSalt) == 0 || len(u.PasswordHash) == 0 || u.Iterations <= 0 {
		return false
	}
	digest := pbkdf2.Key([]byte(password), u.PasswordSalt, u.Iterations, len(u.PasswordHash), sha256.New)
	return hmac.Equal(digest, u.PasswordHash)
}

// NewAPIKey returns a random key of the form cs_<32 url-safe characters>.
func NewAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "cs_" + base64.RawURLEncoding.EncodeToString(b), nil
}
