package domain

import "time"

// DayFormat is the canonical calendar-day layout used in store keys and
// queue scoping.
const DayFormat = "2006-01-02"

// Day is a calendar day in the clinic's local timezone. Queue numbers,
// open vitals readings, and admission idempotency are all scoped to it.
type Day string

// DayOf truncates a timestamp to its calendar day. The caller is expected
// to pass a time already in the clinic's timezone (see config.Location).
func DayOf(t time.Time) Day { return Day(t.Format(DayFormat)) }

func (d Day) String() string { return string(d) }

// Valid reports whether the day parses under the canonical layout.
func (d Day) Valid() bool {
	_, err := time.Parse(DayFormat, string(d))
	return err == nil
}
