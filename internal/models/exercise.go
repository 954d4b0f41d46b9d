// ABOUTME: Exercise reference model shared by all users.
// ABOUTME: Bulk-loaded from remote or a static bundle and cached indefinitely.
package models

import "strings"

// Exercise is an immutable catalog entry.
type Exercise struct {
	ExerciseID       string   `json:"exerciseId" yaml:"exercise_id"`
	Name             string   `json:"name" yaml:"name"`
	GifURL           string   `json:"gifUrl,omitempty" yaml:"gif_url,omitempty"`
	Instructions     []string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	TargetMuscles    []string `json:"targetMuscles" yaml:"target_muscles"`
	BodyParts        []string `json:"bodyParts" yaml:"body_parts"`
	Equipments       []string `json:"equipments" yaml:"equipments"`
	SecondaryMuscles []string `json:"secondaryMuscles,omitempty" yaml:"secondary_muscles,omitempty"`
}

// MatchesName reports whether the exercise name contains q, ignoring case.
func (e *Exercise) MatchesName(q string) bool {
	return strings.Contains(strings.ToLower(e.Name), strings.ToLower(q))
}

// NormalizeTag lower-cases and trims a classification tag so index lookups
// are case-insensitive.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
