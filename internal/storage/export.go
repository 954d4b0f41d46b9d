// ABOUTME: Export of a user's logs, routines and personal records.
// ABOUTME: Supports JSON, YAML, and Markdown formats plus parsing exports back in.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/liftlog/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is the format version written into exports.
const ExportVersion = "1.0"

// ExportData represents the full export format for one user.
type ExportData struct {
	Version    string                   `json:"version" yaml:"version"`
	ExportedAt time.Time                `json:"exportedAt" yaml:"exported_at"`
	Tool       string                   `json:"tool" yaml:"tool"`
	UID        string                   `json:"uid" yaml:"uid"`
	Logs       []*models.WorkoutLog     `json:"logs" yaml:"logs"`
	Routines   []*models.WorkoutRoutine `json:"routines" yaml:"routines"`
	Records    []*models.PersonalRecord `json:"personalRecords" yaml:"personal_records"`
}

// GetAllData collects everything the user owns, logs in ascending time order.
func (d *DB) GetAllData(uid string) (*ExportData, error) {
	logs, err := d.Logs.QueryByIndex(IndexUID, uid)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp < logs[j].Timestamp
	})

	routines, err := d.Routines.QueryByIndex(IndexUID, uid)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}

	records, err := d.Records.QueryByIndex(IndexUID, uid)
	if err != nil {
		return nil, fmt.Errorf("list personal records: %w", err)
	}

	return &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Tool:       "liftlog",
		UID:        uid,
		Logs:       logs,
		Routines:   routines,
		Records:    records,
	}, nil
}

// ExportJSON exports all of the user's data as JSON.
func (d *DB) ExportJSON(uid string) ([]byte, error) {
	data, err := d.GetAllData(uid)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all of the user's data as YAML.
func (d *DB) ExportYAML(uid string) ([]byte, error) {
	data, err := d.GetAllData(uid)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(data)
}

// ExportMarkdown renders the user's logs grouped by exercise. Logs before
// since are skipped when since is non-nil.
func (d *DB) ExportMarkdown(uid string, since *time.Time) (string, error) {
	data, err := d.GetAllData(uid)
	if err != nil {
		return "", err
	}

	grouped := make(map[string][]*models.WorkoutLog)
	for _, l := range data.Logs {
		if since != nil && l.Time().Before(*since) {
			continue
		}
		grouped[l.ExerciseID] = append(grouped[l.ExerciseID], l)
	}

	exerciseIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		exerciseIDs = append(exerciseIDs, id)
	}
	sort.Strings(exerciseIDs)

	var sb strings.Builder
	now := time.Now()
	sb.WriteString(fmt.Sprintf("# Training Log - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	for _, id := range exerciseIDs {
		sb.WriteString(fmt.Sprintf("## %s\n\n", id))
		sb.WriteString("| Date | Sets | Volume | Note |\n")
		sb.WriteString("|------|------|--------|------|\n")
		for _, l := range grouped[id] {
			note := ""
			if l.Note != nil {
				note = *l.Note
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %.1f | %s |\n",
				l.Time().Format("2006-01-02 15:04"), FormatSets(l.Sets), l.Volume(), note))
		}
		sb.WriteString("\n")
	}

	if len(data.Records) > 0 {
		sb.WriteString("## Personal Records\n\n")
		sb.WriteString("| Exercise | Max Weight | Max Reps | Max Volume | Est. 1RM |\n")
		sb.WriteString("|----------|------------|----------|------------|----------|\n")
		for _, pr := range data.Records {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", pr.ExerciseID,
				slotValue(pr.MaxWeight), slotValue(pr.MaxReps),
				slotValue(pr.MaxVolume), slotValue(pr.EstimatedOneRepMax)))
		}
	}

	return sb.String(), nil
}

// FormatSets renders sets as "100x5, 110x3@8".
func FormatSets(sets []models.WorkoutSet) string {
	parts := make([]string, 0, len(sets))
	for _, s := range sets {
		p := fmt.Sprintf("%gx%d", s.Weight, s.Reps)
		if s.RPE != nil {
			p += fmt.Sprintf("@%g", *s.RPE)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

func slotValue(r *models.PRRecord) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", r.Value)
}

// ParseExport decodes a JSON or YAML export.
func ParseExport(raw []byte) (*ExportData, error) {
	var data ExportData
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &data); err != nil {
			return nil, fmt.Errorf("unmarshal JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &data); err != nil {
		return nil, fmt.Errorf("unmarshal YAML: %w", err)
	}
	if data.Version == "" {
		return nil, fmt.Errorf("not a liftlog export: missing version")
	}
	return &data, nil
}
