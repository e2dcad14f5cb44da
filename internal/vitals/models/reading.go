package models

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"esperanza/internal/triage"
	"esperanza/pkg/domain"
	dErrors "esperanza/pkg/domain-errors"
)

// RequiredFields lists the fields a reading needs before it is complete,
// in the order missing fields are reported.
var RequiredFields = []string{
	"heart_rate",
	"temperature",
	"oxygen_saturation",
	"blood_pressure",
	"height",
	"weight",
}

// Reading is one calendar-day vitals aggregate for a patient.
//
// Invariants:
//   - At most one open (incomplete) reading per (patient, day) at any time.
//   - Fields merge last-write-wins; a null in a partial never clears a
//     previously supplied value.
//   - BMI is derived, recomputed whenever both height and weight are set.
//   - Once CompletedAt is set the reading is immutable; the next partial
//     for the same patient and day opens a new reading.
type Reading struct {
	ID          domain.ReadingID `json:"id"`
	PatientID   domain.PatientID `json:"patient_id"`
	Day         domain.Day       `json:"day"`
	DeviceID    string           `json:"device_id,omitempty"`
	HeartRate   *int             `json:"heart_rate"`        // bpm
	Temperature *float64         `json:"temperature"`       // °C
	SpO2        *float64         `json:"oxygen_saturation"` // %
	Systolic    *int             `json:"systolic"`          // mmHg
	Diastolic   *int             `json:"diastolic"`         // mmHg
	HeightCM    *float64         `json:"height"`
	WeightKG    *float64         `json:"weight"`
	BMI         *float64         `json:"bmi"`
	RecordedAt  time.Time        `json:"recorded_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at"`
}

// Partial is one sensor update. Nil fields were not measured in this
// update and leave the reading untouched.
type Partial struct {
	DeviceID    string   `json:"device_id,omitempty"`
	HeartRate   *int     `json:"heart_rate"`
	Temperature *float64 `json:"temperature"`
	SpO2        *float64 `json:"oxygen_saturation"`
	Systolic    *int     `json:"systolic"`
	Diastolic   *int     `json:"diastolic"`
	HeightCM    *float64 `json:"height"`
	WeightKG    *float64 `json:"weight"`
}

// Empty reports whether the partial carries no measurements at all.
func (p Partial) Empty() bool {
	return p.HeartRate == nil && p.Temperature == nil && p.SpO2 == nil &&
		p.Systolic == nil && p.Diastolic == nil && p.HeightCM == nil && p.WeightKG == nil
}

// NewReading opens a fresh accumulation cycle for a patient and day.
func NewReading(patientID domain.PatientID, day domain.Day, now time.Time) *Reading {
	return &Reading{
		ID:         domain.NewReadingID(),
		PatientID:  patientID,
		Day:        day,
		RecordedAt: now,
		UpdatedAt:  now,
	}
}

// Open reports whether the reading still accepts partial updates.
func (r *Reading) Open() bool { return r.CompletedAt == nil }

// Apply merges a partial update into an open reading, last-write-wins per
// field, and recomputes BMI. Applying to a frozen reading is a programming
// error and is rejected.
func (r *Reading) Apply(p Partial, now time.Time) error {
	if !r.Open() {
		return dErrors.New(dErrors.CodeInvariantViolation, "reading is already complete")
	}
	if p.DeviceID != "" {
		r.DeviceID = p.DeviceID
	}
	if p.HeartRate != nil {
		r.HeartRate = intPtr(*p.HeartRate)
	}
	if p.Temperature != nil {
		r.Temperature = floatPtr(*p.Temperature)
	}
	if p.SpO2 != nil {
		r.SpO2 = floatPtr(*p.SpO2)
	}
	if p.Systolic != nil {
		r.Systolic = intPtr(*p.Systolic)
	}
	if p.Diastolic != nil {
		r.Diastolic = intPtr(*p.Diastolic)
	}
	if p.HeightCM != nil {
		r.HeightCM = floatPtr(*p.HeightCM)
	}
	if p.WeightKG != nil {
		r.WeightKG = floatPtr(*p.WeightKG)
	}
	r.recomputeBMI()
	r.UpdatedAt = now
	return nil
}

// recomputeBMI derives BMI whenever both height and weight are present.
// Height arrives in centimeters and is normalized to meters here; the
// result is rounded to one decimal.
func (r *Reading) recomputeBMI() {
	if r.HeightCM == nil || r.WeightKG == nil || *r.HeightCM <= 0 {
		return
	}
	heightM := *r.HeightCM / 100
	bmi := *r.WeightKG / (heightM * heightM)
	r.BMI = floatPtr(math.Round(bmi*10) / 10)
}

// Complete reports whether every required field is present.
func (r *Reading) Complete() bool {
	return len(r.MissingFields()) == 0
}

// MissingFields returns the required fields still absent, in reporting
// order. Empty iff the reading is complete.
func (r *Reading) MissingFields() []string {
	var missing []string
	for _, f := range RequiredFields {
		switch f {
		case "heart_rate":
			if r.HeartRate == nil {
				missing = append(missing, f)
			}
		case "temperature":
			if r.Temperature == nil {
				missing = append(missing, f)
			}
		case "oxygen_saturation":
			if r.SpO2 == nil {
				missing = append(missing, f)
			}
		case "blood_pressure":
			if r.Systolic == nil || r.Diastolic == nil {
				missing = append(missing, f)
			}
		case "height":
			if r.HeightCM == nil {
				missing = append(missing, f)
			}
		case "weight":
			if r.WeightKG == nil {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// Freeze marks the reading complete. From this point it is immutable and
// the next partial for the same patient and day opens a new reading.
func (r *Reading) Freeze(now time.Time) {
	t := now
	r.CompletedAt = &t
	r.UpdatedAt = now
}

// TriageVitals converts a completed reading into the classifier's input
// snapshot. Calling it on an incomplete reading is a programming error;
// the admission controller gates on completion before classifying.
func (r *Reading) TriageVitals() (triage.Vitals, error) {
	if !r.Complete() {
		return triage.Vitals{}, dErrors.New(dErrors.CodeInvariantViolation, "reading is not complete")
	}
	return triage.Vitals{
		HeartRate:        *r.HeartRate,
		Temperature:      *r.Temperature,
		OxygenSaturation: *r.SpO2,
		Systolic:         *r.Systolic,
		Diastolic:        *r.Diastolic,
	}, nil
}

// Clone returns a deep copy so stores can hand out readings without
// aliasing their internal state.
func (r *Reading) Clone() *Reading {
	out := *r
	out.HeartRate = clonePtr(r.HeartRate)
	out.Temperature = clonePtr(r.Temperature)
	out.SpO2 = clonePtr(r.SpO2)
	out.Systolic = clonePtr(r.Systolic)
	out.Diastolic = clonePtr(r.Diastolic)
	out.HeightCM = clonePtr(r.HeightCM)
	out.WeightKG = clonePtr(r.WeightKG)
	out.BMI = clonePtr(r.BMI)
	out.CompletedAt = clonePtr(r.CompletedAt)
	return &out
}

var bpPattern = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*$`)

// ParseBloodPressure parses the sensor's "120/80" wire format into
// systolic and diastolic values.
func ParseBloodPressure(s string) (systolic, diastolic int, err error) {
	m := bpPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, dErrors.New(dErrors.CodeInvalidInput, "blood pressure must look like 120/80")
	}
	systolic, _ = strconv.Atoi(m[1])
	diastolic, _ = strconv.Atoi(m[2])
	return systolic, diastolic, nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
