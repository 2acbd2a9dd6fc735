package domain

// Canonical nutrient names. Amounts are per 100g.
const (
	NutrientCalories     = "calories"
	NutrientProtein      = "protein"
	NutrientCarbs        = "carbs"
	NutrientFat          = "fat"
	NutrientFiber        = "fiber"
	NutrientSugar        = "sugar"
	NutrientSodium       = "sodium"
	NutrientCholesterol  = "cholesterol"
	NutrientSaturatedFat = "saturated_fat"
)

// FoodPortion is one household measure of a food.
type FoodPortion struct {
	Description string  `json:"description"`
	GramWeight  float64 `json:"gram_weight"`
}

// FoodItem is a read-only food reference record.
type FoodItem struct {
	ID          int64              `json:"fdc_id"`
	Description string             `json:"description"`
	DataType    string             `json:"data_type,omitempty"`
	Category    string             `json:"category,omitempty"`
	Brand       string             `json:"brand_name,omitempty"`
	BrandOwner  string             `json:"brand_owner,omitempty"`
	Ingredients string             `json:"ingredients,omitempty"`
	ServingSize float64            `json:"serving_size,omitempty"`
	ServingUnit string             `json:"serving_size_unit,omitempty"`
	Nutrients   map[string]float64 `json:"nutrients"`
	Portions    []FoodPortion      `json:"portions,omitempty"`
}

// Nutrient returns the amount for name and whether it is present.
func (f FoodItem) Nutrient(name string) (float64, bool) {
	v, ok := f.Nutrients[name]
	return v, ok
}
