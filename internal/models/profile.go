// ABOUTME: Profile model carried by UPDATE_PROFILE queue operations.
// ABOUTME: Written remote-only; never cached locally.
package models

// Profile holds per-user display preferences.
type Profile struct {
	UID         string   `json:"uid" yaml:"uid"`
	DisplayName string   `json:"displayName,omitempty" yaml:"display_name,omitempty"`
	Bodyweight  *float64 `json:"bodyweight,omitempty" yaml:"bodyweight,omitempty"`
	Unit        string   `json:"unit" yaml:"unit"`
	UpdatedAt   int64    `json:"updatedAt" yaml:"updated_at"`
}
