package calsync

import (
	"fmt"
	"time"
)

// ClockSkewTolerance absorbs drift between our database clock and the
// calendar backend's before timestamps are trusted to pick a winner.
const ClockSkewTolerance = 10 * time.Second

type Decision int

const (
	DecisionSkip Decision = iota
	DecisionAppWins
	DecisionCalendarWins
)

func (d Decision) String() string {
	switch d {
	case DecisionAppWins:
		return "app_wins"
	case DecisionCalendarWins:
		return "calendar_wins"
	default:
		return "skip"
	}
}

// Side is one side's canonical state as the resolver sees it: content hash,
// last modification time and, for the local side, the dirty flag.
type Side struct {
	Hash      string
	UpdatedAt time.Time
	Dirty     bool
}

// Decide picks a winner from the two sides alone. Deliberate local edits
// always beat timestamps; within the skew tolerance nothing moves; when no
// usable timestamps exist the calendar, as the shared surface, wins.
func Decide(local, remote Side) (Decision, string) {
	if local.Hash != "" && local.Hash == remote.Hash {
		return DecisionSkip, "contents already match"
	}
	if local.Dirty {
		return DecisionAppWins, "local edits pending"
	}
	if local.UpdatedAt.IsZero() || remote.UpdatedAt.IsZero() {
		return DecisionCalendarWins, "no usable timestamps"
	}

	delta := local.UpdatedAt.Sub(remote.UpdatedAt)
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs <= ClockSkewTolerance {
		return DecisionSkip, fmt.Sprintf("within clock skew tolerance (%s)", abs.Round(time.Second))
	}
	if delta > 0 {
		return DecisionAppWins, fmt.Sprintf("local copy newer by %s", delta.Round(time.Second))
	}
	return DecisionCalendarWins, fmt.Sprintf("calendar copy newer by %s", (-delta).Round(time.Second))
}
