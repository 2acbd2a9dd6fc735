// Package domain holds the data model shared by the store, gateway and
// orchestrator layers.
package domain

import "strings"

// Gender of the person a plan is computed for.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts English and Indonesian spellings.
func ParseGender(raw string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m", "laki-laki", "pria", "l":
		return GenderMale, true
	case "female", "f", "perempuan", "wanita", "p":
		return GenderFemale, true
	}
	return "", false
}

// ActivityLevel drives the TDEE multiplier.
type ActivityLevel string

const (
	ActivitySedentary        ActivityLevel = "sedentary"
	ActivityLightlyActive    ActivityLevel = "lightly_active"
	ActivityModeratelyActive ActivityLevel = "moderately_active"
	ActivityVeryActive       ActivityLevel = "very_active"
	ActivityExtremelyActive  ActivityLevel = "extremely_active"
)

// ParseActivityLevel normalizes "moderately active", "Moderately-Active" and
// similar spellings to the canonical underscore form.
func ParseActivityLevel(raw string) (ActivityLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch ActivityLevel(normalized) {
	case ActivitySedentary, ActivityLightlyActive, ActivityModeratelyActive, ActivityVeryActive, ActivityExtremelyActive:
		return ActivityLevel(normalized), true
	}
	switch normalized {
	case "lightly", "light":
		return ActivityLightlyActive, true
	case "moderately", "moderate":
		return ActivityModeratelyActive, true
	case "very":
		return ActivityVeryActive, true
	case "extremely", "extreme":
		return ActivityExtremelyActive, true
	}
	return "", false
}

// DefaultPlanDays is the plan horizon used when a profile does not set one.
const DefaultPlanDays = 7

// UserProfile describes the person a reply or plan is tailored to. Zero
// values mean "not supplied".
type UserProfile struct {
	Age           int           `json:"age,omitempty"`
	Gender        Gender        `json:"gender,omitempty"`
	HeightCM      float64       `json:"height,omitempty"`
	WeightKG      float64       `json:"weight,omitempty"`
	Goal          string        `json:"goal,omitempty"`
	ActivityLevel ActivityLevel `json:"activity_level,omitempty"`
	Allergies     []string      `json:"allergies,omitempty"`
	Preferences   []string      `json:"preferences,omitempty"`
	Days          int           `json:"days,omitempty"`
}

// IsComplete reports whether every field the nutrition calculator needs is
// present.
func (p *UserProfile) IsComplete() bool {
	if p == nil {
		return false
	}
	return p.Age > 0 && p.Gender != "" && p.HeightCM > 0 && p.WeightKG > 0 &&
		p.ActivityLevel != "" && strings.TrimSpace(p.Goal) != ""
}

// PlanDays returns the plan horizon, defaulting to a week.
func (p *UserProfile) PlanDays() int {
	if p == nil || p.Days < 1 {
		return DefaultPlanDays
	}
	return p.Days
}
