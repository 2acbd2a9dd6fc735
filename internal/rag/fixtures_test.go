package rag

import (
	"github.com/darrellrafa/Nutribot/internal/domain"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
)

func food(id int64, desc, category string, kcal, protein float64) domain.FoodItem {
	return domain.FoodItem{
		ID:          id,
		Description: desc,
		Category:    category,
		Nutrients: map[string]float64{
			domain.NutrientCalories: kcal,
			domain.NutrientProtein:  protein,
		},
	}
}

// fixtureStore holds lean proteins (weight-loss bucket), dense proteins
// (muscle bucket only) and a handful of items per variety category.
func fixtureStore(seed uint64) *foodstore.MemoryStore {
	foods := []domain.FoodItem{
		food(1, "Chicken breast, skinless", "Poultry", 120, 23),
		food(2, "Tuna, canned in water", "Finfish", 116, 26),
		food(3, "Shrimp, cooked", "Shellfish", 99, 24),
		food(4, "Peanut butter", "Legumes", 588, 25),
		food(5, "Beef jerky", "Beef", 410, 33),
		food(6, "Almonds", "Nuts", 579, 21),
	}
	id := int64(100)
	for _, cat := range VarietyCategories {
		for i := 0; i < 7; i++ {
			id++
			foods = append(foods, food(id, cat+" item", cat, 50, 2))
		}
	}
	return foodstore.NewMemoryStore(seed, foods...)
}
