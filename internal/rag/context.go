package rag

import (
	"fmt"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

const (
	// DefaultContextItems bounds a meal plan context block.
	DefaultContextItems = 30
	// ChatContextItems bounds the ad-hoc context attached to a chat turn.
	ChatContextItems = 10

	noFoodContext = "Tidak ada data makanan spesifik tersedia. Gunakan pengetahuan umum."
)

// BuildFoodContext renders up to maxItems foods as a model-directed
// reference list. An empty list yields a general-knowledge fallback.
func BuildFoodContext(foods []domain.FoodItem, maxItems int) string {
	if len(foods) == 0 {
		return noFoodContext
	}
	if maxItems <= 0 {
		maxItems = DefaultContextItems
	}

	var b strings.Builder
	b.WriteString("Here are available foods with nutrition data:\n\n")
	for i, food := range foods {
		if i >= maxItems {
			break
		}
		desc := food.Description
		if desc == "" {
			desc = "Unknown"
		}
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, desc)
		if food.Brand != "" {
			fmt.Fprintf(&b, "   Brand: %s\n", food.Brand)
		}
		if line := nutrientLine(food); line != "" {
			fmt.Fprintf(&b, "   Nutrition (per 100g): %s\n", line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUse the foods above as a reference for the meal plan. ")
	b.WriteString("You may include other common foods if necessary.\n")
	return b.String()
}

func nutrientLine(food domain.FoodItem) string {
	parts := make([]string, 0, 4)
	if v, ok := food.Nutrient(domain.NutrientCalories); ok && v > 0 {
		parts = append(parts, fmt.Sprintf("%.0f kcal", v))
	}
	if v, ok := food.Nutrient(domain.NutrientProtein); ok && v > 0 {
		parts = append(parts, fmt.Sprintf("Protein %.1fg", v))
	}
	if v, ok := food.Nutrient(domain.NutrientCarbs); ok && v > 0 {
		parts = append(parts, fmt.Sprintf("Carbs %.1fg", v))
	}
	if v, ok := food.Nutrient(domain.NutrientFat); ok && v > 0 {
		parts = append(parts, fmt.Sprintf("Fat %.1fg", v))
	}
	return strings.Join(parts, ", ")
}
