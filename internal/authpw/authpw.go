// Package authpw wraps password hashing and the password policy.
package authpw

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const MinLength = 8

// ErrWrongPassword is returned by Verify on mismatch so callers can map it
// to a generic credentials error without leaking which field failed.
var ErrWrongPassword = errors.New("password does not match")

// CheckPolicy validates a plaintext password against the policy.
func CheckPolicy(password string) error {
	if len(password) < MinLength {
		return fmt.Errorf("password must be at least %d characters", MinLength)
	}
	return nil
}

// Hash returns the bcrypt hash of a plaintext password.
func Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify compares a plaintext password against a stored hash.
func Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPassword
		}
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}
