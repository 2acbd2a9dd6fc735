package foodstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDataset writes a small dataset and returns its path.
func seedDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foods.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, EnsureSchema(ctx, db))

	stmts := []string{
		`INSERT INTO food_categories (id, code, description) VALUES (1, '1100', 'Vegetables'), (2, '0900', 'Fruits'), (3, '0500', 'Proteins')`,
		`INSERT INTO nutrients (id, name, unit_name) VALUES
            (1008, 'Energy', 'KCAL'),
            (1062, 'Energy', 'kJ'),
            (1003, 'Protein', 'G'),
            (1004, 'Total lipid (fat)', 'G'),
            (1005, 'Carbohydrate, by difference', 'G'),
            (1093, 'Sodium, Na', 'MG'),
            (1099, 'Vitamin X', 'MG')`,
		`INSERT INTO foods (fdc_id, data_type, description, food_category_id, brand_name, ingredients) VALUES
            (10, 'sr_legacy_food', 'Chicken breast, roasted', 3, NULL, NULL),
            (11, 'branded_food', 'Protein Bar 50%', 3, 'FitCo', 'whey, peanuts, sugar'),
            (12, 'sr_legacy_food', 'Broccoli, raw', 1, NULL, NULL),
            (13, 'sr_legacy_food', 'Spinach, raw', 1, NULL, NULL),
            (14, 'foundation_food', 'Banana, raw', 2, NULL, NULL),
            (15, 'sr_legacy_food', 'Tofu, firm', 3, NULL, 'soybeans, water')`,
		`INSERT INTO food_nutrients (id, fdc_id, nutrient_id, amount) VALUES
            (1, 10, 1008, 165), (2, 10, 1062, 690), (3, 10, 1003, 31), (4, 10, 1004, 3.6), (5, 10, 1005, 0),
            (6, 11, 1008, 380), (7, 11, 1003, 30), (8, 11, 1004, 12),
            (9, 12, 1008, 34), (10, 12, 1003, 2.8), (11, 12, 1099, 5),
            (12, 13, 1008, 23), (13, 13, 1003, 2.9),
            (14, 14, 1008, 89), (15, 14, 1003, 1.1), (16, 14, 1005, 23),
            (17, 15, 1008, 144), (18, 15, 1003, 17.3), (19, 15, 1093, 14)`,
		`INSERT INTO food_portions (id, fdc_id, seq_num, portion_description, modifier, gram_weight) VALUES
            (1, 10, 2, '1 cup, chopped', NULL, 140),
            (2, 10, 1, NULL, 'breast, bone removed', 172)`,
	}
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return path
}

func openSeeded(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), seedDataset(t), WithSeed(7), WithLogger(logging.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func ids(items []domain.FoodItem) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestOpenSQLiteMissingDataset(t *testing.T) {
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestOpenSQLiteWithoutFoodsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenSQLite(context.Background(), path)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestSearchMatchesDescriptionAndBrandCaseInsensitive(t *testing.T) {
	store := openSeeded(t)
	ctx := context.Background()

	items, err := store.Search(ctx, "CHICKEN", SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids(items))
	assert.Equal(t, "Proteins", items[0].Category)
	assert.InDelta(t, 165.0, items[0].Nutrients[domain.NutrientCalories], 1e-9)
	assert.InDelta(t, 31.0, items[0].Nutrients[domain.NutrientProtein], 1e-9)

	items, err = store.Search(ctx, "fitco", SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, ids(items))

	items, err = store.Search(ctx, "raw", SearchFilters{Category: "Vegetables"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 13}, ids(items))

	items, err = store.Search(ctx, "raw", SearchFilters{DataType: "foundation_food"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{14}, ids(items))

	items, err = store.Search(ctx, "50%", SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, ids(items))

	items, err = store.Search(ctx, "pizza", SearchFilters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetByIDIncludesOrderedPortions(t *testing.T) {
	store := openSeeded(t)

	item, err := store.GetByID(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, item.Portions, 2)
	assert.Equal(t, "breast, bone removed", item.Portions[0].Description)
	assert.Equal(t, 140.0, item.Portions[1].GramWeight)
	_, hasVitamin := item.Nutrients["vitamin x"]
	assert.False(t, hasVitamin)

	_, err = store.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSearchByNutrientsIsConjunctive(t *testing.T) {
	store := openSeeded(t)
	ctx := context.Background()

	items, err := store.SearchByNutrients(ctx, NutrientQuery{MinProtein: Float(15), MaxCalories: Float(200), Limit: 30})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 15}, ids(items))
	for _, item := range items {
		assert.GreaterOrEqual(t, item.Nutrients[domain.NutrientProtein], 15.0)
		assert.LessOrEqual(t, item.Nutrients[domain.NutrientCalories], 200.0)
	}

	items, err = store.SearchByNutrients(ctx, NutrientQuery{MinProtein: Float(15), MaxFat: Float(5), Limit: 30})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids(items))

	items, err = store.SearchByNutrients(ctx, NutrientQuery{MaxCalories: Float(100), Category: "Fruits", Limit: 30})
	require.NoError(t, err)
	assert.Equal(t, []int64{14}, ids(items))
}

func TestRandomSampleIsDistinctAndWithinCategory(t *testing.T) {
	store := openSeeded(t)

	items, err := store.RandomSample(context.Background(), "Proteins", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0].ID, items[1].ID)
	for _, item := range items {
		assert.Equal(t, "Proteins", item.Category)
	}

	items, err = store.RandomSample(context.Background(), "Fruits", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{14}, ids(items))

	items, err = store.RandomSample(context.Background(), "Grains", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRandomSampleReproducibleWithSeed(t *testing.T) {
	path := seedDataset(t)
	a, err := OpenSQLite(context.Background(), path, WithSeed(42))
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(context.Background(), path, WithSeed(42))
	require.NoError(t, err)
	defer b.Close()

	first, err := a.RandomSample(context.Background(), "", 4)
	require.NoError(t, err)
	second, err := b.RandomSample(context.Background(), "", 4)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}

func TestListCategoriesSorted(t *testing.T) {
	store := openSeeded(t)
	categories, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fruits", "Proteins", "Vegetables"}, categories)
}

func TestUnavailableStore(t *testing.T) {
	var store Store = Unavailable{}
	_, err := store.Search(context.Background(), "x", SearchFilters{}, 1)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	_, err = store.ListCategories(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestCanonicalNutrient(t *testing.T) {
	key, ok := CanonicalNutrient("Energy", "KCAL")
	assert.True(t, ok)
	assert.Equal(t, domain.NutrientCalories, key)

	_, ok = CanonicalNutrient("Energy", "kJ")
	assert.False(t, ok)

	key, ok = CanonicalNutrient("Fatty acids, total saturated", "G")
	assert.True(t, ok)
	assert.Equal(t, domain.NutrientSaturatedFat, key)
}
