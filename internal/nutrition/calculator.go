// Package nutrition implements the energy and macronutrient formulas used to
// size a meal plan: Mifflin-St Jeor BMR, activity-scaled TDEE, a fixed
// deficit or surplus for the goal, and a gram split for the macros.
package nutrition

import (
	"math"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// GoalAdjustment is the daily calorie delta applied for a deficit or surplus.
const GoalAdjustment = 500

// Upper bounds for calculator inputs.
const (
	MaxWeightKG = 1000
	MaxHeightCM = 300
	MaxAge      = 150
)

// Goal types reported in a summary.
const (
	GoalTypeDeficit     = "defisit"
	GoalTypeSurplus     = "surplus"
	GoalTypeMaintenance = "maintenance"
)

var (
	deficitKeywords = []string{"turun", "loss", "defisit", "deficit", "kurus"}
	surplusKeywords = []string{"naik", "gain", "surplus", "gemuk", "bulk"}
)

var activityMultipliers = map[domain.ActivityLevel]float64{
	domain.ActivitySedentary:        1.2,
	domain.ActivityLightlyActive:    1.375,
	domain.ActivityModeratelyActive: 1.55,
	domain.ActivityVeryActive:       1.725,
	domain.ActivityExtremelyActive:  1.9,
}

type splitRatio struct {
	protein, carbs, fat float64
}

var macroSplits = map[domain.MacroSplit]splitRatio{
	domain.MacroBalanced:    {protein: 0.30, carbs: 0.40, fat: 0.30},
	domain.MacroHighProtein: {protein: 0.40, carbs: 0.30, fat: 0.30},
	domain.MacroLowCarb:     {protein: 0.35, carbs: 0.20, fat: 0.45},
}

// Input is everything ComputeSummary needs.
type Input struct {
	WeightKG      float64
	HeightCM      float64
	Age           int
	Gender        domain.Gender
	ActivityLevel domain.ActivityLevel
	Goal          string
	MacroSplit    domain.MacroSplit
}

// InputFromProfile extracts calculator inputs from a profile.
func InputFromProfile(p domain.UserProfile, split domain.MacroSplit) Input {
	return Input{
		WeightKG:      p.WeightKG,
		HeightCM:      p.HeightCM,
		Age:           p.Age,
		Gender:        p.Gender,
		ActivityLevel: p.ActivityLevel,
		Goal:          p.Goal,
		MacroSplit:    split,
	}
}

// Validate reports the first missing or out-of-range field as a validation error.
func (in Input) Validate() error {
	switch {
	case !inRange(in.WeightKG, MaxWeightKG):
		return apperrors.Validationf("weight must be between 0 and %d kg", MaxWeightKG)
	case !inRange(in.HeightCM, MaxHeightCM):
		return apperrors.Validationf("height must be between 0 and %d cm", MaxHeightCM)
	case in.Age <= 0 || in.Age > MaxAge:
		return apperrors.Validationf("age must be between 1 and %d", MaxAge)
	case in.Gender != domain.GenderMale && in.Gender != domain.GenderFemale:
		return apperrors.Validationf("gender must be male or female")
	case in.ActivityLevel == "":
		return apperrors.Validationf("activity level is required")
	case strings.TrimSpace(in.Goal) == "":
		return apperrors.Validationf("goal is required")
	}
	return nil
}

// BMR returns the Mifflin-St Jeor basal metabolic rate in kcal/day.
func BMR(weightKG, heightCM float64, age int, gender domain.Gender) float64 {
	bmr := 10*weightKG + 6.25*heightCM - 5*float64(age)
	if gender == domain.GenderMale {
		bmr += 5
	} else {
		bmr -= 161
	}
	return round(bmr, 2)
}

// ActivityMultiplier returns the TDEE factor for level. Unknown levels count
// as sedentary.
func ActivityMultiplier(level domain.ActivityLevel) float64 {
	if normalized, ok := domain.ParseActivityLevel(string(level)); ok {
		level = normalized
	}
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return activityMultipliers[domain.ActivitySedentary]
}

// TDEE scales bmr by the activity multiplier.
func TDEE(bmr float64, level domain.ActivityLevel) float64 {
	return round(bmr*ActivityMultiplier(level), 2)
}

// Target is the calorie target for a goal.
type Target struct {
	Calories   float64
	Adjustment int
	GoalType   string
}

// TargetCalories applies a deficit or surplus based on goal keywords.
// Deficit keywords win when both kinds appear.
func TargetCalories(tdee float64, goal string) Target {
	lower := strings.ToLower(goal)
	switch {
	case containsAny(lower, deficitKeywords):
		return Target{Calories: round(tdee-GoalAdjustment, 2), Adjustment: -GoalAdjustment, GoalType: GoalTypeDeficit}
	case containsAny(lower, surplusKeywords):
		return Target{Calories: round(tdee+GoalAdjustment, 2), Adjustment: GoalAdjustment, GoalType: GoalTypeSurplus}
	default:
		return Target{Calories: round(tdee, 2), Adjustment: 0, GoalType: GoalTypeMaintenance}
	}
}

// ParseMacroSplit falls back to balanced for unknown names.
func ParseMacroSplit(raw string) domain.MacroSplit {
	split := domain.MacroSplit(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := macroSplits[split]; ok {
		return split
	}
	return domain.MacroBalanced
}

// CalculateMacros converts calories to grams using 4/4/9 kcal per gram.
func CalculateMacros(calories float64, split domain.MacroSplit) domain.Macros {
	ratio, ok := macroSplits[split]
	if !ok {
		ratio = macroSplits[domain.MacroBalanced]
	}
	return domain.Macros{
		ProteinG: round(calories*ratio.protein/4, 1),
		CarbsG:   round(calories*ratio.carbs/4, 1),
		FatG:     round(calories*ratio.fat/9, 1),
		Percentages: domain.MacroPercentages{
			Protein: int(math.Round(ratio.protein * 100)),
			Carbs:   int(math.Round(ratio.carbs * 100)),
			Fat:     int(math.Round(ratio.fat * 100)),
		},
	}
}

// ComputeSummary runs the full calculation. It performs no I/O.
func ComputeSummary(in Input) (domain.NutritionSummary, error) {
	if err := in.Validate(); err != nil {
		return domain.NutritionSummary{}, err
	}
	split := ParseMacroSplit(string(in.MacroSplit))
	bmr := BMR(in.WeightKG, in.HeightCM, in.Age, in.Gender)
	tdee := TDEE(bmr, in.ActivityLevel)
	target := TargetCalories(tdee, in.Goal)
	return domain.NutritionSummary{
		BMR:            bmr,
		TDEE:           tdee,
		TargetCalories: target.Calories,
		Adjustment:     target.Adjustment,
		GoalType:       target.GoalType,
		MacroSplit:     split,
		Macros:         CalculateMacros(target.Calories, split),
	}, nil
}

// inRange rejects NaN, infinities and anything outside (0, max].
func inRange(v, max float64) bool {
	return v > 0 && v <= max
}

// Finite reports whether every number in summary can be encoded as JSON.
func Finite(summary domain.NutritionSummary) bool {
	for _, v := range []float64{
		summary.BMR, summary.TDEE, summary.TargetCalories,
		summary.Macros.ProteinG, summary.Macros.CarbsG, summary.Macros.FatG,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
