package schedule

import (
	"fmt"
	"time"
)

// daysPerWeek is used for the Sunday wrap-forward correction.
const daysPerWeek = 7

// Canonical is a window's day/time boundary pair expressed in the
// operating timezone.
type Canonical struct {
	StartDay  int    // 0=Sunday..6=Saturday
	StartTime string // HH:MM
	EndDay    int
	EndTime   string
}

// Normalizer converts caller-local schedule boundaries into the operating
// timezone. Both zones are fixed at construction; when a caller's timezone
// cannot be resolved the configured fallback zone is used and the
// operation never fails.
//
// Normalization is deterministic given (now, day, time, caller timezone):
// callers pass "now" explicitly so tests can freeze it.
type Normalizer struct {
	operating *time.Location
	fallback  *time.Location
}

// NewNormalizer builds a Normalizer for the given operating and fallback
// timezone names (IANA, e.g. "Europe/Skopje").
func NewNormalizer(operatingTZ, fallbackTZ string) (*Normalizer, error) {
	op, err := time.LoadLocation(operatingTZ)
	if err != nil {
		return nil, fmt.Errorf("loading operating timezone %q: %w", operatingTZ, err)
	}
	fb, err := time.LoadLocation(fallbackTZ)
	if err != nil {
		return nil, fmt.Errorf("loading fallback timezone %q: %w", fallbackTZ, err)
	}
	return &Normalizer{operating: op, fallback: fb}, nil
}

// CallerLocation resolves a caller timezone name, falling back to the
// configured default when the name is empty or unknown. Timezone lookup is
// display/audit context only, so it degrades instead of failing.
func (n *Normalizer) CallerLocation(tz string) *time.Location {
	if tz == "" {
		return n.fallback
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return n.fallback
	}
	return loc
}

// Normalize converts one caller-local (day, hour, minute) boundary into
// the operating timezone.
//
// The algorithm mirrors the device scheduler contract:
//  1. Compose the time-of-day on today's date in the caller zone.
//  2. Shift whole days until the timestamp lands on the requested
//     day-of-week. A requested Sunday that would land in the past is
//     instead pushed a full week forward — windows never start on a
//     Sunday behind "now".
//  3. Convert to the operating zone and read day and clock time there.
//     The canonical day can differ from the requested one when the zone
//     crossing moves the timestamp over midnight.
func (n *Normalizer) Normalize(now time.Time, day, hour, minute int, callerTZ string) (int, string, error) {
	if day < 0 || day > 6 {
		return 0, "", fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, "", fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}

	loc := n.CallerLocation(callerTZ)
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	current := int(t.Weekday())
	switch {
	case day > current:
		t = t.AddDate(0, 0, day-current)
	case day < current:
		t = t.AddDate(0, 0, -(current - day))
		if day == int(time.Sunday) {
			t = t.AddDate(0, 0, daysPerWeek)
		}
	}

	op := t.In(n.operating)
	return int(op.Weekday()), op.Format("15:04"), nil
}

// NormalizeWindow runs Normalize independently for a window's start and
// end boundaries.
func (n *Normalizer) NormalizeWindow(now time.Time, startDay, startHour, startMinute, endDay, endHour, endMinute int, callerTZ string) (Canonical, error) {
	var c Canonical
	var err error

	c.StartDay, c.StartTime, err = n.Normalize(now, startDay, startHour, startMinute, callerTZ)
	if err != nil {
		return Canonical{}, fmt.Errorf("normalizing window start: %w", err)
	}
	c.EndDay, c.EndTime, err = n.Normalize(now, endDay, endHour, endMinute, callerTZ)
	if err != nil {
		return Canonical{}, fmt.Errorf("normalizing window end: %w", err)
	}
	return c, nil
}
