package calsync

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/models"
)

// Metadata participant ids above this bound are junk, not roster
// references, and fall through to the title strategies.
const maxMetadataID = 10000

// Roster is the immutable participant snapshot one sync run resolves
// against. Build it once per run from the active roster and pass it down;
// it is never mutated.
type Roster struct {
	coachesByName map[string][]int64
	playersByName map[string][]int64
	coachNames    map[int64]string
	playerNames   map[int64]string
}

func NewRoster(coaches []models.Coach, players []models.Player) *Roster {
	r := &Roster{
		coachesByName: make(map[string][]int64, len(coaches)),
		playersByName: make(map[string][]int64, len(players)),
		coachNames:    make(map[int64]string, len(coaches)),
		playerNames:   make(map[int64]string, len(players)),
	}
	for _, c := range coaches {
		key := NormalizeName(c.Name)
		r.coachesByName[key] = append(r.coachesByName[key], c.ID)
		r.coachNames[c.ID] = c.Name
	}
	for _, p := range players {
		key := NormalizeName(p.Name)
		r.playersByName[key] = append(r.playersByName[key], p.ID)
		r.playerNames[p.ID] = p.Name
	}
	return r
}

// CoachName returns the display name of an active coach.
func (r *Roster) CoachName(id int64) (string, bool) {
	name, ok := r.coachNames[id]
	return name, ok
}

func (r *Roster) PlayerName(id int64) (string, bool) {
	name, ok := r.playerNames[id]
	return name, ok
}

// uniqueCoach resolves a normalized name only when exactly one active coach
// carries it. Zero or several candidates both fail.
func (r *Roster) uniqueCoach(normalized string) (int64, bool) {
	ids := r.coachesByName[normalized]
	if len(ids) == 1 {
		return ids[0], true
	}
	return 0, false
}

func (r *Roster) uniquePlayer(normalized string) (int64, bool) {
	ids := r.playersByName[normalized]
	if len(ids) == 1 {
		return ids[0], true
	}
	return 0, false
}

// NormalizeName casefolds, strips diacritics and collapses whitespace so
// "José  PÉREZ" and "jose perez" compare equal.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

var (
	titlePrefix = regexp.MustCompile(`(?i)^\s*(?:sesi[oó]n|session)\s*:\s*`)
	crossSplit  = regexp.MustCompile(`^(.+?)\s*×\s*(.+)$`)
	plainXSplit = regexp.MustCompile(`(?i)^(.+?)\s+x\s+(.+)$`)
	coachTag    = regexp.MustCompile(`(?i)(?:#c|\bcoach[#\s]*)(\d+)`)
	playerTag   = regexp.MustCompile(`(?i)(?:#p|\bplayer[#\s]*)(\d+)`)
)

// resolveFunc is one identity strategy: a pure function over the event and
// the roster snapshot.
type resolveFunc func(ev calendar.Event, roster *Roster) (int64, int64, bool)

// Resolve maps an event to (coachID, playerID) by running the ordered
// strategies until one succeeds. All failing yields (0, 0, false); the
// caller turns that into a structured rejection.
func Resolve(ev calendar.Event, roster *Roster) (int64, int64, bool) {
	strategies := []resolveFunc{
		resolveMetadata,
		resolveExactNames,
		resolveHybridTitle,
		resolveTagScan,
	}
	for _, strategy := range strategies {
		if coachID, playerID, ok := strategy(ev, roster); ok {
			return coachID, playerID, true
		}
	}
	return 0, 0, false
}

// resolveMetadata trusts the ids our own pushes stamp into the event's
// private properties, within the sanity bound.
func resolveMetadata(ev calendar.Event, _ *Roster) (int64, int64, bool) {
	if ev.CoachID > 0 && ev.CoachID <= maxMetadataID &&
		ev.PlayerID > 0 && ev.PlayerID <= maxMetadataID {
		return ev.CoachID, ev.PlayerID, true
	}
	return 0, 0, false
}

// resolveExactNames handles hand-written titles like "Juan Pérez × María
// López": both sides must match exactly one active roster entry.
func resolveExactNames(ev calendar.Event, roster *Roster) (int64, int64, bool) {
	left, right, ok := splitPair(ev.Summary)
	if !ok {
		return 0, 0, false
	}
	coachID, ok := roster.uniqueCoach(NormalizeName(left))
	if !ok {
		return 0, 0, false
	}
	playerID, ok := roster.uniquePlayer(NormalizeName(right))
	if !ok {
		return 0, 0, false
	}
	return coachID, playerID, true
}

// resolveHybridTitle handles split titles where each side carries either a
// short tag or a unique name, in any combination.
func resolveHybridTitle(ev calendar.Event, roster *Roster) (int64, int64, bool) {
	left, right, ok := splitPair(ev.Summary)
	if !ok {
		return 0, 0, false
	}

	coachID := findTag(coachTag, left)
	if coachID == 0 {
		coachID, _ = roster.uniqueCoach(NormalizeName(coachTag.ReplaceAllString(left, "")))
	}
	playerID := findTag(playerTag, right)
	if playerID == 0 {
		playerID, _ = roster.uniquePlayer(NormalizeName(playerTag.ReplaceAllString(right, "")))
	}

	if coachID > 0 && playerID > 0 {
		return coachID, playerID, true
	}
	return 0, 0, false
}

// resolveTagScan is the last resort: both tags anywhere in the full title,
// in any order.
func resolveTagScan(ev calendar.Event, _ *Roster) (int64, int64, bool) {
	coachID := findTag(coachTag, ev.Summary)
	playerID := findTag(playerTag, ev.Summary)
	if coachID > 0 && playerID > 0 {
		return coachID, playerID, true
	}
	return 0, 0, false
}

// splitPair strips the title prefix and splits "<left> × <right>". A plain
// "x" works too when spaced, so "Juan x Maria" parses but "Felix" does not.
func splitPair(summary string) (string, string, bool) {
	title := titlePrefix.ReplaceAllString(summary, "")
	for _, re := range []*regexp.Regexp{crossSplit, plainXSplit} {
		if m := re.FindStringSubmatch(title); m != nil {
			left := strings.TrimSpace(m[1])
			right := strings.TrimSpace(m[2])
			if left != "" && right != "" {
				return left, right, true
			}
		}
	}
	return "", "", false
}

func findTag(re *regexp.Regexp, s string) int64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 || id > maxMetadataID {
		return 0
	}
	return id
}
