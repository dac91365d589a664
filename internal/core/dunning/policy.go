// Package dunning holds the reminder escalation policy
// Levels must be issued in order: reminder, first notice, final notice
package dunning

import (
	"fmt"
	"time"
)

// Level is a reminder escalation level
type Level int

// Escalation levels
const (
	LevelReminder    Level = 0
	LevelFirstNotice Level = 1
	LevelFinalNotice Level = 2
)

// MaxLevel is the last automated level, anything beyond is a manual process
const MaxLevel = LevelFinalNotice

// Thresholds in whole calendar months
const (
	MonthsForReminder    = 3
	MonthsForFirstNotice = 3
	MonthsForFinalNotice = 4
)

// Valid reports whether l is a known level
func (l Level) Valid() bool { return l >= LevelReminder && l <= MaxLevel }

// Name returns the letter title for l
func (l Level) Name() string {
	switch l {
	case LevelReminder:
		return "Zahlungserinnerung"
	case LevelFirstNotice:
		return "1. Mahnung"
	case LevelFinalNotice:
		return "2. Mahnung"
	default:
		return "Unbekannt"
	}
}

// Slug returns a file name friendly label for l
func (l Level) Slug() string {
	switch l {
	case LevelReminder:
		return "Zahlungserinnerung"
	case LevelFirstNotice:
		return "1_Mahnung"
	case LevelFinalNotice:
		return "2_Mahnung"
	default:
		return fmt.Sprintf("level_%d", int(l))
	}
}

// Ptr returns a pointer to l
func (l Level) Ptr() *Level { return &l }

// MonthsOpen is the whole calendar month difference between issued and now, never negative
// day of month is ignored so thresholds trigger at month boundaries
func MonthsOpen(issued, now time.Time) int {
	if issued.IsZero() {
		return 0
	}
	iy, im, _ := issued.Date()
	ny, nm, _ := now.In(issued.Location()).Date()
	m := (ny-iy)*12 + int(nm-im)
	return max(m, 0)
}

// RecommendedLevel returns the next permitted level or nil when no reminder is due
// last is nil when no reminder was ever issued
func RecommendedLevel(monthsOpen int, last *Level) *Level {
	if monthsOpen < MonthsForReminder {
		return nil
	}
	if last == nil {
		return LevelReminder.Ptr()
	}
	switch *last {
	case LevelReminder:
		if monthsOpen >= MonthsForFirstNotice {
			return LevelFirstNotice.Ptr()
		}
	case LevelFirstNotice:
		if monthsOpen >= MonthsForFinalNotice {
			return LevelFinalNotice.Ptr()
		}
	}
	return nil
}

// StepError explains why a requested level is not allowed
type StepError struct {
	Last      *Level
	Requested Level
}

func (e *StepError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("level %d requested but no reminder was issued yet, start with level 0", e.Requested)
	}
	return fmt.Sprintf("level %d requested after level %d, levels may not be skipped or lowered", e.Requested, *e.Last)
}

// ValidateStep checks that requested follows last without gaps
// repeating the current level is allowed, a letter may be reissued
func ValidateStep(last *Level, requested Level) error {
	if !requested.Valid() {
		return fmt.Errorf("unknown reminder level %d", requested)
	}
	if last == nil {
		if requested != LevelReminder {
			return &StepError{Requested: requested}
		}
		return nil
	}
	if requested < *last || requested > *last+1 {
		return &StepError{Last: last, Requested: requested}
	}
	return nil
}

// StatusText describes the reminder state of an open invoice for people
func StatusText(monthsOpen int, last *Level) string {
	if last == nil {
		switch {
		case monthsOpen >= MonthsForFinalNotice:
			return "Zahlungserinnerung überfällig"
		case monthsOpen >= MonthsForReminder:
			return "Zahlungserinnerung empfohlen"
		default:
			return "Keine Mahnung erforderlich"
		}
	}
	return last.Name() + " gesendet"
}
