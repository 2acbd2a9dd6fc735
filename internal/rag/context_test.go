package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

func TestBuildFoodContext(t *testing.T) {
	foods := []domain.FoodItem{
		{ID: 1, Description: "Chicken breast", Brand: "Farm Co", Nutrients: map[string]float64{
			domain.NutrientCalories: 120.4, domain.NutrientProtein: 22.5, domain.NutrientCarbs: 0, domain.NutrientFat: 2.62,
		}},
		{ID: 2, Description: "Water"},
	}
	got := BuildFoodContext(foods, 10)

	want := "Here are available foods with nutrition data:\n\n" +
		"1. **Chicken breast**\n" +
		"   Brand: Farm Co\n" +
		"   Nutrition (per 100g): 120 kcal, Protein 22.5g, Fat 2.6g\n\n" +
		"2. **Water**\n\n" +
		"\nUse the foods above as a reference for the meal plan. You may include other common foods if necessary.\n"
	assert.Equal(t, want, got)
}

func TestBuildFoodContextLimitsItems(t *testing.T) {
	var foods []domain.FoodItem
	for i := 0; i < 40; i++ {
		foods = append(foods, domain.FoodItem{ID: int64(i), Description: "Item"})
	}
	got := BuildFoodContext(foods, DefaultContextItems)
	assert.Equal(t, DefaultContextItems, strings.Count(got, "**Item**"))
	assert.Contains(t, got, "30. **Item**")
	assert.NotContains(t, got, "31. ")
}

func TestBuildFoodContextEmpty(t *testing.T) {
	got := BuildFoodContext(nil, 30)
	assert.Equal(t, noFoodContext, got)
	assert.NotContains(t, got, "**")
}

func TestMealPlanPrompt(t *testing.T) {
	p := domain.UserProfile{
		Age: 25, Gender: domain.GenderMale, HeightCM: 170, WeightKG: 70,
		Goal: "turun berat badan", ActivityLevel: domain.ActivityModeratelyActive,
		Allergies: []string{"udang"}, Preferences: []string{"halal"}, Days: 3,
	}
	got := MealPlanPrompt(p, "CTX")
	for _, want := range []string{
		"- Umur: 25 tahun", "- Tinggi: 170 cm", "- Berat: 70 kg",
		"- Alergi/Pantangan: udang", "- Preferensi: halal",
		"**Data Makanan yang Tersedia:**\nCTX",
		"Buatkan meal plan 3 hari", "Sarapan", "Snack Pagi", "Makan Siang", "Snack Sore", "Makan Malam",
		"**Total Kalori Hari 1: [Total] kkal**", "... dst untuk 3 hari.",
	} {
		assert.Contains(t, got, want)
	}

	bare := MealPlanPrompt(domain.UserProfile{}, "")
	assert.Contains(t, bare, "- Umur: N/A tahun")
	assert.Contains(t, bare, "Buatkan meal plan 7 hari")
	assert.NotContains(t, bare, "Data Makanan")
	assert.NotContains(t, bare, "Alergi")
}

func TestSummaryPromptIncludesTarget(t *testing.T) {
	got := SummaryPrompt("PLAN", &domain.UserProfile{Goal: "diet"}, 2045.9)
	assert.Contains(t, got, "TEKS MEAL PLAN:\nPLAN")
	assert.Contains(t, got, "- Target Kalori Ideal: 2046 kkal")

	unknown := SummaryPrompt("PLAN", &domain.UserProfile{}, 0)
	assert.Contains(t, unknown, "Tidak diketahui")
	assert.NotContains(t, SummaryPrompt("PLAN", nil, 0), "Konteks User")
}
