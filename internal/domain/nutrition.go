package domain

// MacroSplit names a calorie distribution across macronutrients.
type MacroSplit string

const (
	MacroBalanced    MacroSplit = "balanced"
	MacroHighProtein MacroSplit = "high_protein"
	MacroLowCarb     MacroSplit = "low_carb"
)

// MacroPercentages is the share of calories per macronutrient.
type MacroPercentages struct {
	Protein int `json:"protein"`
	Carbs   int `json:"carbs"`
	Fat     int `json:"fat"`
}

// Macros holds gram targets for a day.
type Macros struct {
	ProteinG    float64          `json:"protein_g"`
	CarbsG      float64          `json:"carbs_g"`
	FatG        float64          `json:"fat_g"`
	Percentages MacroPercentages `json:"percentages"`
}

// NutritionSummary is the daily energy picture for a profile.
type NutritionSummary struct {
	BMR            float64    `json:"bmr"`
	TDEE           float64    `json:"tdee"`
	TargetCalories float64    `json:"target_calories"`
	Adjustment     int        `json:"adjustment"`
	GoalType       string     `json:"goal_type"`
	MacroSplit     MacroSplit `json:"macro_split"`
	Macros         Macros     `json:"macros"`
}
