package password

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dtroode/auth-server/internal/model"
)

// MinLength is the shortest accepted password.
const MinLength = 8

// CheckStrength rejects passwords that are short, single-case, or made of
// letters and digits only.
func CheckStrength(plaintext string) error {
	if len([]rune(plaintext)) < MinLength {
		return fmt.Errorf("%w: must be at least %d characters", model.ErrWeakPassword, MinLength)
	}
	if plaintext == strings.ToLower(plaintext) || plaintext == strings.ToUpper(plaintext) {
		return fmt.Errorf("%w: must mix upper and lower case", model.ErrWeakPassword)
	}
	for _, r := range plaintext {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return nil
		}
	}
	return fmt.Errorf("%w: must contain a special character", model.ErrWeakPassword)
}
