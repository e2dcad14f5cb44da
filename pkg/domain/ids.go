// Package domain holds the small identifier and value types shared across
// the kiosk's packages. Keeping them here avoids import cycles between the
// patient, vitals, and queue packages.
package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// PatientID is the clinic-issued patient identifier, e.g. "P-20250114-003".
// IDs are generated by the patient store at registration time.
type PatientID string

func (id PatientID) String() string { return string(id) }

var patientIDPattern = regexp.MustCompile(`^P-\d{8}-\d{3,}$`)

// Valid reports whether the ID matches the clinic's issued format.
func (id PatientID) Valid() bool { return patientIDPattern.MatchString(string(id)) }

// NewPatientID builds an ID from the registration day and that day's
// registration ordinal (1-based).
func NewPatientID(day Day, ordinal int) PatientID {
	t, _ := time.Parse(DayFormat, string(day))
	return PatientID(fmt.Sprintf("P-%s-%03d", t.Format("20060102"), ordinal))
}

// EntryID identifies a single queue admission event.
type EntryID uuid.UUID

func NewEntryID() EntryID { return EntryID(uuid.New()) }

func (id EntryID) String() string { return uuid.UUID(id).String() }

// MarshalText renders the canonical UUID form; with UnmarshalText it keeps
// JSON payloads readable instead of serializing the raw byte array.
func (id EntryID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EntryID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseEntryID parses the string form of an entry ID.
func ParseEntryID(s string) (EntryID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntryID{}, fmt.Errorf("parse entry id: %w", err)
	}
	return EntryID(u), nil
}

// ReadingID identifies a vitals reading row.
type ReadingID uuid.UUID

func NewReadingID() ReadingID { return ReadingID(uuid.New()) }

func (id ReadingID) String() string { return uuid.UUID(id).String() }

func (id ReadingID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReadingID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("parse reading id: %w", err)
	}
	*id = ReadingID(u)
	return nil
}
