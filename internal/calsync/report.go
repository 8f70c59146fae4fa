package calsync

import (
	"fmt"
	"time"
)

// Rejection records one remote event the engine refused, with enough
// context for a human to find and fix the source.
type Rejection struct {
	Title      string `json:"title"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ImportWarning records an accepted event that tripped advisory rules.
type ImportWarning struct {
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Warnings []string `json:"warnings"`
}

// Report sums up one sync run.
type Report struct {
	Created       int             `json:"created"`
	Updated       int             `json:"updated"`
	Deleted       int             `json:"deleted"`
	Pushed        int             `json:"pushed"`
	Skipped       int             `json:"skipped"`
	PastCompleted int             `json:"past_completed"`
	Rejected      []Rejection     `json:"rejected_events"`
	Warnings      []ImportWarning `json:"warning_events"`
	StartedAt     time.Time       `json:"started_at"`
	Duration      time.Duration   `json:"duration"`
}

func (r *Report) AddRejection(title string, start time.Time, reason, suggestion string) {
	date, clock := formatWhen(start)
	r.Rejected = append(r.Rejected, Rejection{
		Title:      orUntitled(title),
		Date:       date,
		Time:       clock,
		Reason:     reason,
		Suggestion: suggestion,
	})
}

func (r *Report) AddWarning(title string, start time.Time, warnings []string) {
	date, clock := formatWhen(start)
	r.Warnings = append(r.Warnings, ImportWarning{
		Title:    orUntitled(title),
		Date:     date,
		Time:     clock,
		Warnings: warnings,
	})
}

// HasChanges reports whether the run moved anything on either side.
func (r *Report) HasChanges() bool {
	return r.Created+r.Updated+r.Deleted+r.Pushed+r.PastCompleted > 0
}

// Summary renders the one-line form used in logs.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"created=%d updated=%d deleted=%d pushed=%d skipped=%d past_completed=%d rejected=%d warnings=%d in %s",
		r.Created, r.Updated, r.Deleted, r.Pushed, r.Skipped, r.PastCompleted,
		len(r.Rejected), len(r.Warnings), r.Duration.Round(time.Millisecond),
	)
}

func formatWhen(t time.Time) (string, string) {
	if t.IsZero() {
		return "", ""
	}
	return t.Format("02/01/2006"), t.Format("15:04")
}

func orUntitled(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
