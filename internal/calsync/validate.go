package calsync

import (
	"fmt"
	"time"
)

// Hard bounds for a bookable session.
const (
	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 4 * time.Hour
)

// Gate is the business-rule filter both sync directions run timings
// through: user input on the way out, imported events on the way in. The
// same instance serves both paths so the rules cannot drift apart.
type Gate struct {
	MinDuration time.Duration
	MaxDuration time.Duration

	dayStart    int // minutes from midnight, local
	dayEnd      int
	dayStartStr string
	dayEndStr   string
	loc         *time.Location
}

// NewGate builds a gate with the recommended working window given as
// "HH:MM" strings, evaluated in loc. Malformed bounds fall back to
// 08:00-19:00.
func NewGate(dayStart, dayEnd string, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	g := &Gate{
		MinDuration: MinSessionDuration,
		MaxDuration: MaxSessionDuration,
		loc:         loc,
	}
	g.dayStart, g.dayStartStr = parseClock(dayStart, 8*60, "08:00")
	g.dayEnd, g.dayEndStr = parseClock(dayEnd, 19*60, "19:00")
	return g
}

func parseClock(value string, fallback int, fallbackStr string) (int, string) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return fallback, fallbackStr
	}
	return t.Hour()*60 + t.Minute(), value
}

// Validate applies the hard rules and collects advisory warnings. A false
// ok comes with the blocking reason; warnings never block.
func (g *Gate) Validate(start, end time.Time) (ok bool, reason string, warnings []string) {
	if !end.After(start) {
		return false, "end time must be after start time", nil
	}

	duration := end.Sub(start)
	if duration < g.MinDuration {
		return false, fmt.Sprintf("session lasts %s, minimum is %s", formatDuration(duration), formatDuration(g.MinDuration)), nil
	}
	if duration > g.MaxDuration {
		return false, fmt.Sprintf("session lasts %s, maximum is %s", formatDuration(duration), formatDuration(g.MaxDuration)), nil
	}

	localStart := start.In(g.loc)
	localEnd := end.In(g.loc)

	if minutesOfDay(localStart) < g.dayStart {
		warnings = append(warnings, fmt.Sprintf("starts at %s, before the recommended %s", localStart.Format("15:04"), g.dayStartStr))
	}
	if minutesOfDay(localEnd) > g.dayEnd {
		warnings = append(warnings, fmt.Sprintf("ends at %s, after the recommended %s", localEnd.Format("15:04"), g.dayEndStr))
	}
	if wd := localStart.Weekday(); wd == time.Saturday || wd == time.Sunday {
		warnings = append(warnings, "scheduled on a weekend")
	}
	if localStart.Year() != localEnd.Year() || localStart.YearDay() != localEnd.YearDay() {
		warnings = append(warnings, "session crosses midnight")
	}

	return true, "", warnings
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
