package nutrition

import (
	"math"
	"testing"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSummaryWeightLossScenario(t *testing.T) {
	summary, err := ComputeSummary(Input{
		WeightKG:      70,
		HeightCM:      170,
		Age:           25,
		Gender:        domain.GenderMale,
		ActivityLevel: "moderately active",
		Goal:          "turun berat badan",
	})
	require.NoError(t, err)

	// 10*70 + 6.25*170 - 5*25 + 5
	assert.InDelta(t, 1642.5, summary.BMR, 1e-9)
	assert.InDelta(t, 2545.88, summary.TDEE, 0.011)
	assert.InDelta(t, 2045.88, summary.TargetCalories, 0.011)
	assert.Equal(t, -500, summary.Adjustment)
	assert.Equal(t, GoalTypeDeficit, summary.GoalType)
	assert.Equal(t, domain.MacroBalanced, summary.MacroSplit)
	assert.InDelta(t, 153.4, summary.Macros.ProteinG, 1e-9)
	assert.InDelta(t, 204.6, summary.Macros.CarbsG, 1e-9)
	assert.InDelta(t, 68.2, summary.Macros.FatG, 1e-9)
	assert.Equal(t, domain.MacroPercentages{Protein: 30, Carbs: 40, Fat: 30}, summary.Macros.Percentages)
}

func TestTDEEFromBMR(t *testing.T) {
	assert.InDelta(t, 2604.0, TDEE(1680, domain.ActivityModeratelyActive), 1e-9)
	assert.InDelta(t, 2104.0, TargetCalories(2604, "turun berat badan").Calories, 1e-9)
}

func TestBMRFemale(t *testing.T) {
	assert.InDelta(t, 1320.25, BMR(60, 165, 30, domain.GenderFemale), 1e-9)
}

func TestActivityMultiplierFallsBackToSedentary(t *testing.T) {
	assert.Equal(t, 1.2, ActivityMultiplier("unknown"))
	assert.Equal(t, 1.725, ActivityMultiplier("very active"))
	assert.Equal(t, 1.9, ActivityMultiplier(domain.ActivityExtremelyActive))
}

func TestTargetCalories(t *testing.T) {
	cases := []struct {
		goal       string
		adjustment int
		goalType   string
	}{
		{"weight loss", -500, GoalTypeDeficit},
		{"Naik berat badan", 500, GoalTypeSurplus},
		{"bulk season", 500, GoalTypeSurplus},
		{"maintain", 0, GoalTypeMaintenance},
		{"", 0, GoalTypeMaintenance},
	}
	for _, tc := range cases {
		target := TargetCalories(2000, tc.goal)
		assert.Equal(t, tc.adjustment, target.Adjustment, tc.goal)
		assert.Equal(t, tc.goalType, target.GoalType, tc.goal)
		assert.InDelta(t, 2000+float64(tc.adjustment), target.Calories, 1e-9, tc.goal)
	}
}

func TestCalculateMacrosSplits(t *testing.T) {
	high := CalculateMacros(2000, domain.MacroHighProtein)
	assert.InDelta(t, 200.0, high.ProteinG, 1e-9)
	assert.InDelta(t, 150.0, high.CarbsG, 1e-9)
	assert.InDelta(t, 66.7, high.FatG, 1e-9)

	low := CalculateMacros(2000, domain.MacroLowCarb)
	assert.Equal(t, domain.MacroPercentages{Protein: 35, Carbs: 20, Fat: 45}, low.Percentages)
	assert.InDelta(t, 100.0, low.FatG, 1e-9)

	assert.Equal(t, domain.MacroBalanced, ParseMacroSplit("keto"))
	assert.Equal(t, domain.MacroLowCarb, ParseMacroSplit(" LOW_CARB "))
}

func TestComputeSummaryValidation(t *testing.T) {
	_, err := ComputeSummary(Input{WeightKG: 70, HeightCM: 170, Age: 0, Gender: domain.GenderMale, ActivityLevel: "sedentary", Goal: "maintain"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ComputeSummary(Input{WeightKG: 70, HeightCM: 170, Age: 30, Gender: "other", ActivityLevel: "sedentary", Goal: "maintain"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestComputeSummaryRejectsNonFiniteAndOversized(t *testing.T) {
	base := Input{WeightKG: 70, HeightCM: 170, Age: 30, Gender: domain.GenderMale, ActivityLevel: "sedentary", Goal: "maintain"}
	cases := map[string]func(*Input){
		"nan weight":    func(in *Input) { in.WeightKG = math.NaN() },
		"inf weight":    func(in *Input) { in.WeightKG = math.Inf(1) },
		"huge weight":   func(in *Input) { in.WeightKG = 1e308 },
		"nan height":    func(in *Input) { in.HeightCM = math.NaN() },
		"tall height":   func(in *Input) { in.HeightCM = 301 },
		"ancient age":   func(in *Input) { in.Age = 151 },
		"negative inf":  func(in *Input) { in.HeightCM = math.Inf(-1) },
	}
	for name, mutate := range cases {
		in := base
		mutate(&in)
		_, err := ComputeSummary(in)
		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
	}

	in := base
	in.WeightKG, in.HeightCM, in.Age = MaxWeightKG, MaxHeightCM, MaxAge
	summary, err := ComputeSummary(in)
	require.NoError(t, err)
	assert.True(t, Finite(summary))
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(domain.NutritionSummary{BMR: 1500}))
	assert.False(t, Finite(domain.NutritionSummary{BMR: math.Inf(1)}))
	assert.False(t, Finite(domain.NutritionSummary{Macros: domain.Macros{FatG: math.NaN()}}))
}

func TestInputFromProfile(t *testing.T) {
	in := InputFromProfile(domain.UserProfile{Age: 40, Gender: domain.GenderFemale, HeightCM: 160, WeightKG: 55, Goal: "jaga", ActivityLevel: domain.ActivityLightlyActive}, domain.MacroLowCarb)
	summary, err := ComputeSummary(in)
	require.NoError(t, err)
	assert.Equal(t, GoalTypeMaintenance, summary.GoalType)
	assert.Equal(t, domain.MacroLowCarb, summary.MacroSplit)
}
