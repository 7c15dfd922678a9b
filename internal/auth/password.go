// Package auth: password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is deliberately slow. A leaked users table then costs an attacker
// hundreds of milliseconds per guess per account instead of nanoseconds.
//
// bcrypt automatically:
//   - generates a random salt per hash, so two shoppers with the same
//     password store different hashes
//   - embeds salt and cost in its output, so the users table needs only a
//     password_hash column
//   - lets the work factor ("cost") grow with hardware
//
// Plain SHA-256 or MD5 is never acceptable for passwords: GPUs try billions
// of those per second.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 iterations)
//	 version
package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor.
//
// COST TUNING RULE OF THUMB:
// One hash should take roughly 200-300ms on production hardware. Lower and
// offline cracking gets cheap; higher and a burst of sign-ins pins the CPU.
// Each +1 doubles the work.
const defaultCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected rather
// than silently truncated.
const MaxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected: tests
// use bcrypt.MinCost and run a few hundred times faster while exercising the
// same code. It also owns the lazily built dummy hash used by VerifyDummy.
type PasswordService struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// newPasswordServiceWithCost is used by the tests in this package.
func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom cost.
// Pass bcrypt.MinCost (4) from tests in other packages.
//
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the plaintext password with bcrypt.
//
// The output is self-contained:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// Store it as-is; Verify decodes salt and cost from it.
//
// Returns an error if the plaintext is longer than MaxPasswordBytes. The
// registration validator rejects those first, so this is a backstop for
// other callers such as admin seeding.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored bcrypt hash.
//
// It returns nil on a match, ErrPasswordMismatch for a wrong password and a
// wrapped error for a malformed hash.
//
// TIMING SAFETY:
// bcrypt compares in constant time, so response time does not tell an
// attacker how much of a guess was right.
//
// Usage:
//
//	if err := ps.Verify(user.PasswordHash, input); err != nil {
//	    // wrong password (or a broken hash)
//	}
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// VerifyDummy burns the same bcrypt work as Verify against a throwaway hash.
//
// USER ENUMERATION:
// Without it, sign-in for an unknown email would answer in microseconds and
// a known email in ~250ms; timing alone would list who has an account.
// AuthService.Authenticate calls this for unknown emails and for accounts
// without a password (GitHub-only), so every failure costs the same.
//
// The dummy hash is built once, on first use, at the service's cost.
// It always returns ErrPasswordMismatch.
func (p *PasswordService) VerifyDummy(plaintext string) error {
	p.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("green-gaming-dummy-password"), p.cost)
		if err == nil {
			p.dummyHash = h
		}
	})
	if p.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(plaintext))
	}
	return ErrPasswordMismatch
}
