// Package models defines the patient registry records.
package models

import (
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"esperanza/internal/triage"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
)

// Patient is an active registry record. Archived patients carry the same
// shape plus ArchivedAt; they live in a separate table and are invisible
// to admission until restored.
type Patient struct {
	ID           domain.PatientID `json:"id"`
	FirstName    string           `json:"first_name"`
	LastName     string           `json:"last_name"`
	Birthdate    time.Time        `json:"birthdate"`
	Phone        string           `json:"phone,omitempty"`
	Address      string           `json:"address,omitempty"`
	PINHash      string           `json:"-"`
	RegisteredAt time.Time        `json:"registered_at"`
	LastVisit    *time.Time       `json:"last_visit,omitempty"`
	ArchivedAt   *time.Time       `json:"archived_at,omitempty"`
}

func (p *Patient) FullName() string { return p.FirstName + " " + p.LastName }

// Age returns whole years completed as of the given instant.
func (p *Patient) Age(on time.Time) int {
	years := on.Year() - p.Birthdate.Year()
	anniversary := p.Birthdate.AddDate(years, 0, 0)
	if anniversary.After(on) {
		years--
	}
	return years
}

// Senior reports whether the patient qualifies for the senior triage rule.
func (p *Patient) Senior(on time.Time) bool { return p.Age(on) >= triage.SeniorAge }

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// SetPIN hashes and stores a 4-digit kiosk PIN.
func (p *Patient) SetPIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return dErrors.New(dErrors.CodeInvalidInput, "pin must be exactly 4 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash pin")
	}
	p.PINHash = string(hash)
	return nil
}

// VerifyPIN checks a candidate PIN against the stored hash.
func (p *Patient) VerifyPIN(pin string) bool {
	if p.PINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PINHash), []byte(pin)) == nil
}

// Clone returns a deep copy for stores that hand out internal state.
func (p *Patient) Clone() *Patient {
	out := *p
	if p.LastVisit != nil {
		t := *p.LastVisit
		out.LastVisit = &t
	}
	if p.ArchivedAt != nil {
		t := *p.ArchivedAt
		out.ArchivedAt = &t
	}
	return &out
}
