package server

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/errors"
)

// BcryptVerifier checks passwords against bcrypt hashes.
type BcryptVerifier struct{}

// NewBcryptVerifier builds the default verifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Verify compares password with hash.
func (*BcryptVerifier) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errors.Wrap(errors.ErrCodeUnauthenticated, "credential mismatch", err)
	}
	return nil
}
