package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/omarkhalifa/laundryops-backend/pkg/config"
)

// GenerateNumericCode returns a random numeric code of the given length,
// zero-padded so short draws still render every digit.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 || length > 12 {
		return "", fmt.Errorf("invalid code length %d", length)
	}

	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// HashCode hashes a portal access code with the same Argon2id scheme used
// for passwords. Codes are short-lived but still never stored in clear.
func HashCode(code string, cfg config.PasswordConfig) (string, error) {
	return HashPassword(code, cfg)
}

// VerifyCode reports whether the code matches the encoded hash.
func VerifyCode(code, encoded string) (bool, error) {
	return VerifyPassword(code, encoded)
}
