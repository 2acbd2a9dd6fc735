package foodstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

// Schema is the relational layout produced by ingestion.
const Schema = `
CREATE TABLE IF NOT EXISTS foods (
    fdc_id INTEGER PRIMARY KEY,
    data_type TEXT,
    description TEXT NOT NULL,
    food_category_id INTEGER,
    publication_date TEXT,
    brand_owner TEXT,
    brand_name TEXT,
    ingredients TEXT,
    serving_size REAL,
    serving_size_unit TEXT,
    household_serving_fulltext TEXT
);

CREATE TABLE IF NOT EXISTS nutrients (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    unit_name TEXT,
    nutrient_nbr TEXT,
    rank REAL
);

CREATE TABLE IF NOT EXISTS food_nutrients (
    id INTEGER PRIMARY KEY,
    fdc_id INTEGER,
    nutrient_id INTEGER,
    amount REAL,
    data_points INTEGER,
    derivation_id INTEGER,
    min REAL,
    max REAL,
    median REAL,
    FOREIGN KEY (fdc_id) REFERENCES foods(fdc_id),
    FOREIGN KEY (nutrient_id) REFERENCES nutrients(id)
);

CREATE TABLE IF NOT EXISTS food_categories (
    id INTEGER PRIMARY KEY,
    code TEXT,
    description TEXT
);

CREATE TABLE IF NOT EXISTS food_portions (
    id INTEGER PRIMARY KEY,
    fdc_id INTEGER,
    seq_num INTEGER,
    amount REAL,
    measure_unit_id INTEGER,
    portion_description TEXT,
    modifier TEXT,
    gram_weight REAL,
    data_points INTEGER,
    FOREIGN KEY (fdc_id) REFERENCES foods(fdc_id)
);

CREATE INDEX IF NOT EXISTS idx_foods_description ON foods(description);
CREATE INDEX IF NOT EXISTS idx_foods_category ON foods(food_category_id);
CREATE INDEX IF NOT EXISTS idx_foods_brand ON foods(brand_name);
CREATE INDEX IF NOT EXISTS idx_food_nutrients_fdc ON food_nutrients(fdc_id);
CREATE INDEX IF NOT EXISTS idx_food_nutrients_nutrient ON food_nutrients(nutrient_id);
CREATE INDEX IF NOT EXISTS idx_food_portions_fdc ON food_portions(fdc_id);
`

// EnsureSchema creates the reference tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create food schema: %w", err)
	}
	return nil
}

// nutrientNames maps dataset nutrient names to canonical keys.
var nutrientNames = map[string]string{
	"Energy":                       domain.NutrientCalories,
	"Protein":                      domain.NutrientProtein,
	"Total lipid (fat)":            domain.NutrientFat,
	"Carbohydrate, by difference":  domain.NutrientCarbs,
	"Fiber, total dietary":         domain.NutrientFiber,
	"Sugars, total including NLEA": domain.NutrientSugar,
	"Sodium, Na":                   domain.NutrientSodium,
	"Cholesterol":                  domain.NutrientCholesterol,
	"Fatty acids, total saturated": domain.NutrientSaturatedFat,
}

// CanonicalNutrient maps a dataset nutrient row to its canonical key. Energy
// rows are only accepted in kcal.
func CanonicalNutrient(name, unit string) (string, bool) {
	key, ok := nutrientNames[name]
	if !ok {
		return "", false
	}
	if key == domain.NutrientCalories && !strings.EqualFold(unit, "KCAL") {
		return "", false
	}
	return key, true
}

// DatasetNutrientName returns the dataset name for a canonical key.
func DatasetNutrientName(key string) string {
	for name, canonical := range nutrientNames {
		if canonical == key {
			return name
		}
	}
	return ""
}

func trackedNutrientNames() []any {
	out := make([]any, 0, len(nutrientNames))
	for name := range nutrientNames {
		out = append(out, name)
	}
	return out
}
