// ABOUTME: Parsing and formatting helpers shared by CLI commands.
// ABOUTME: Set notation, timestamps, ID prefixes and colored log lines.
package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/storage"
)

var faint = color.New(color.Faint)

// parseSets reads set notation: WEIGHTxREPS with an optional @RPE and an
// optional *N repeat, e.g. "100x5", "110x3@8", "60x10*3" or "bwx12".
// Tokens may be separated by spaces or commas.
func parseSets(args []string) ([]models.WorkoutSet, error) {
	var sets []models.WorkoutSet
	for _, arg := range args {
		for _, tok := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			parsed, err := parseSetToken(tok)
			if err != nil {
				return nil, err
			}
			sets = append(sets, parsed...)
		}
	}
	return sets, nil
}

func parseSetToken(tok string) ([]models.WorkoutSet, error) {
	orig := tok
	tok = strings.ToLower(tok)

	repeat := 1
	if i := strings.LastIndex(tok, "*"); i >= 0 {
		n, err := strconv.Atoi(tok[i+1:])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid set %q: bad repeat count", orig)
		}
		repeat, tok = n, tok[:i]
	}

	var rpe *float64
	if i := strings.Index(tok, "@"); i >= 0 {
		v, err := strconv.ParseFloat(tok[i+1:], 64)
		if err != nil || v < 0 || v > 10 {
			return nil, fmt.Errorf("invalid set %q: RPE must be 0-10", orig)
		}
		rpe, tok = &v, tok[:i]
	}

	w, r, ok := strings.Cut(tok, "x")
	if !ok {
		return nil, fmt.Errorf("invalid set %q: use WEIGHTxREPS", orig)
	}
	var weight float64
	if w != "bw" {
		var err error
		weight, err = strconv.ParseFloat(w, 64)
		if err != nil || weight < 0 {
			return nil, fmt.Errorf("invalid set %q: bad weight", orig)
		}
	}
	reps, err := strconv.Atoi(r)
	if err != nil || reps < 0 {
		return nil, fmt.Errorf("invalid set %q: bad reps", orig)
	}

	out := make([]models.WorkoutSet, repeat)
	for i := range out {
		out[i] = models.WorkoutSet{Weight: weight, Reps: reps}
		if rpe != nil {
			v := *rpe
			out[i].RPE = &v
		}
	}
	return out, nil
}

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseTime accepts fixed layouts in local time, RFC 3339, or natural
// language such as "yesterday 6pm" relative to now.
func parseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, f := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	r, err := timeParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
	}
	return r.Time, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatLog renders one log as a single line.
func formatLog(l *models.WorkoutLog, now time.Time) string {
	note := ""
	if l.Note != nil && *l.Note != "" {
		note = faint.Sprintf(" (%s)", truncate(*l.Note, 30))
	}
	return fmt.Sprintf("%s %s %s %s%s",
		faint.Sprint(shortID(l.ID)),
		faint.Sprint(padRight(humanize.RelTime(l.Time(), now, "ago", "from now"), 14)),
		padRight(l.ExerciseID, 24),
		storage.FormatSets(l.Sets),
		note)
}

func metricLabel(m models.PRMetric) string {
	switch m {
	case models.PRMaxWeight:
		return "max weight"
	case models.PRMaxReps:
		return "max reps"
	case models.PRMaxVolume:
		return "max volume"
	case models.PREstimatedOneRepMax:
		return "estimated 1RM"
	}
	return string(m)
}

func formatSlot(m models.PRMetric, r *models.PRRecord) string {
	if r == nil {
		return "-"
	}
	switch m {
	case models.PRMaxReps:
		return fmt.Sprintf("%d reps @ %g", r.Reps, r.Weight)
	case models.PRMaxWeight:
		return fmt.Sprintf("%g x %d", r.Weight, r.Reps)
	}
	return fmt.Sprintf("%s (%gx%d)", humanize.FormatFloat("#,###.#", r.Value), r.Weight, r.Reps)
}

// currentUser returns the signed-in uid or a hint on how to sign in.
func currentUser() (string, error) {
	uid, err := identity.Require(liftApp.Identity)
	if err != nil {
		return "", fmt.Errorf("%w: link a Charm account with 'liftlog sync link' or set user_id in config", err)
	}
	return uid, nil
}

// resolveLogID expands an ID prefix against the user's local logs.
func resolveLogID(uid, prefix string) (*models.WorkoutLog, error) {
	if l, err := liftApp.Workouts.Get(prefix); err == nil && l.UID == uid {
		return l, nil
	}
	logs, err := liftApp.Workouts.List(uid)
	if err != nil {
		return nil, err
	}
	var match *models.WorkoutLog
	for _, l := range logs {
		if strings.HasPrefix(l.ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous prefix %s: matches multiple logs", prefix)
			}
			match = l
		}
	}
	if match == nil {
		return nil, fmt.Errorf("log not found: %s", prefix)
	}
	return match, nil
}
