// Package triage derives a clinical priority tier from a completed vitals
// reading. Classification is a pure function: all thresholds live in this
// file, every rule is evaluated, and the most severe matching tier wins.
package triage

// Clinical thresholds. All boundaries are inclusive unless a comment says
// otherwise. These are the clinic's adopted policy cutoffs; changing any of
// them is a policy decision, not a tuning knob.
const (
	// CRITICAL cutoffs.
	FeverCriticalC  = 39.0 // temperature >=
	HypothermiaC    = 35.0 // temperature <=
	SpO2CriticalPct = 90.0 // oxygen saturation < (exclusive)
	SystolicCrisis  = 180  // systolic >=
	DiastolicCrisis = 120  // diastolic >=

	// HIGH cutoffs.
	TachycardiaBPM = 100  // heart rate > (exclusive)
	BradycardiaBPM = 60   // heart rate < (exclusive)
	SpO2LowPct     = 95.0 // oxygen saturation in [SpO2CriticalPct, SpO2LowPct)
	SystolicHigh   = 140  // systolic >=
	DiastolicHigh  = 90   // diastolic >=

	// SeniorAge is the age at which borderline vitals escalate to HIGH.
	SeniorAge = 65

	// Borderline cutoffs for the senior escalation rule: values close to,
	// but not past, the HIGH thresholds.
	BorderlineFeverC    = 37.5 // temperature >=
	BorderlineHRBPM     = 90   // heart rate > (exclusive)
	BorderlineSystolic  = 130  // systolic >=
	BorderlineDiastolic = 85   // diastolic >=
	BorderlineSpO2Pct   = 96.0 // oxygen saturation <=
)

// Vitals is the snapshot of a completed reading that classification needs.
// Callers build it via models.Reading.TriageVitals after completion; for an
// incomplete reading the snapshot is undefined.
type Vitals struct {
	HeartRate        int
	Temperature      float64
	OxygenSaturation float64
	Systolic         int
	Diastolic        int
}

// Demographics is the patient snapshot needed for classification.
type Demographics struct {
	Age int
}

// Senior reports whether the patient qualifies for the senior escalation
// rule.
func (d Demographics) Senior() bool { return d.Age >= SeniorAge }

// rule pairs a human-readable reason with the tier it implies. The same
// table drives both Classify and Reasons so the receipt text can never
// disagree with the tier decision.
type rule struct {
	reason string
	tier   Tier
	fires  func(v Vitals, d Demographics) bool
}

var rules = []rule{
	{"High fever", TierCritical, func(v Vitals, _ Demographics) bool {
		return v.Temperature >= FeverCriticalC
	}},
	{"Hypothermia", TierCritical, func(v Vitals, _ Demographics) bool {
		return v.Temperature <= HypothermiaC
	}},
	{"Severely low oxygen saturation", TierCritical, func(v Vitals, _ Demographics) bool {
		return v.OxygenSaturation < SpO2CriticalPct
	}},
	{"Hypertensive crisis", TierCritical, func(v Vitals, _ Demographics) bool {
		return v.Systolic >= SystolicCrisis || v.Diastolic >= DiastolicCrisis
	}},
	{"Tachycardia", TierHigh, func(v Vitals, _ Demographics) bool {
		return v.HeartRate > TachycardiaBPM
	}},
	{"Bradycardia", TierHigh, func(v Vitals, _ Demographics) bool {
		return v.HeartRate < BradycardiaBPM
	}},
	{"Low oxygen saturation", TierHigh, func(v Vitals, _ Demographics) bool {
		return v.OxygenSaturation >= SpO2CriticalPct && v.OxygenSaturation < SpO2LowPct
	}},
	{"Hypertension", TierHigh, func(v Vitals, _ Demographics) bool {
		return v.Systolic >= SystolicHigh || v.Diastolic >= DiastolicHigh
	}},
	{"Senior with borderline vitals", TierHigh, func(v Vitals, d Demographics) bool {
		return d.Senior() && borderline(v)
	}},
}

// borderline reports whether any vital sits close to a HIGH threshold
// without crossing it.
func borderline(v Vitals) bool {
	switch {
	case v.Temperature >= BorderlineFeverC && v.Temperature < FeverCriticalC:
		return true
	case v.HeartRate > BorderlineHRBPM && v.HeartRate <= TachycardiaBPM:
		return true
	case v.Systolic >= BorderlineSystolic && v.Systolic < SystolicHigh:
		return true
	case v.Diastolic >= BorderlineDiastolic && v.Diastolic < DiastolicHigh:
		return true
	case v.OxygenSaturation >= SpO2LowPct && v.OxygenSaturation <= BorderlineSpO2Pct:
		return true
	}
	return false
}

// Classify returns the priority tier for a completed reading. Every rule is
// evaluated and the maximum severity wins; there is no short-circuit, so a
// reading that is both tachycardic and hypoxic classifies the same
// regardless of rule order.
func Classify(v Vitals, d Demographics) Tier {
	tier := TierNormal
	for _, r := range rules {
		if r.fires(v, d) {
			tier = moreSevere(tier, r.tier)
		}
	}
	return tier
}

// Reasons returns the human-readable list of rules that fired, for receipt
// and audit display. This is a reporting side-channel only; it shares the
// rule table with Classify but never influences the tier decision.
func Reasons(v Vitals, d Demographics) []string {
	var reasons []string
	for _, r := range rules {
		if r.fires(v, d) {
			reasons = append(reasons, r.reason)
		}
	}
	if len(reasons) == 0 {
		return []string{"Normal vitals"}
	}
	return reasons
}
