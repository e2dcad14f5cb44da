// Package models defines staff accounts for the front-desk endpoints.
package models

import (
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	dErrors "esperanza/pkg/domain-errors"
)

// Staff is a front-desk or nursing account. Staff authenticate with a
// username and PIN at the shared desk terminal; there are no per-staff
// kiosk devices.
type Staff struct {
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"`
	PINHash   string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

var pinPattern = regexp.MustCompile(`^\d{4,8}$`)

// SetPIN hashes and stores the staff PIN. Staff PINs allow 4 to 8 digits.
func (s *Staff) SetPIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return dErrors.New(dErrors.CodeInvalidInput, "pin must be 4 to 8 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash pin")
	}
	s.PINHash = string(hash)
	return nil
}

// VerifyPIN checks a candidate PIN against the stored hash.
func (s *Staff) VerifyPIN(pin string) bool {
	if s.PINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.PINHash), []byte(pin)) == nil
}

// Clone returns a copy safe to hand out of a store.
func (s *Staff) Clone() *Staff {
	out := *s
	if s.LastLogin != nil {
		t := *s.LastLogin
		out.LastLogin = &t
	}
	return &out
}
