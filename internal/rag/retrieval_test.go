package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrellrafa/Nutribot/internal/domain"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

func ids(foods []domain.FoodItem) []int64 {
	out := make([]int64, len(foods))
	for i, f := range foods {
		out[i] = f.ID
	}
	return out
}

func TestClassifyGoal(t *testing.T) {
	assert.Equal(t, BucketWeightLoss, ClassifyGoal("Turun berat badan"))
	assert.Equal(t, BucketWeightLoss, ClassifyGoal("weight loss"))
	assert.Equal(t, BucketMuscleGain, ClassifyGoal("build muscle"))
	assert.Equal(t, BucketMuscleGain, ClassifyGoal("naik berat badan"))
	assert.Equal(t, BucketMaintenance, ClassifyGoal("jaga berat"))
	assert.Equal(t, BucketNone, ClassifyGoal("eat better"))
}

func TestRelevantFoodsWeightLossBucket(t *testing.T) {
	r := NewRetriever(fixtureStore(1), logging.Nop())
	foods := r.RelevantFoods(context.Background(), domain.UserProfile{Goal: "turun berat badan"})

	got := ids(foods)
	assert.Equal(t, []int64{1, 2, 3}, got[:3])
	for _, id := range []int64{4, 5, 6} {
		assert.NotContains(t, got, id, "muscle-only item leaked into weight-loss retrieval")
	}
	assert.Len(t, foods, 3+4*varietySample)
}

func TestRelevantFoodsMuscleBucket(t *testing.T) {
	r := NewRetriever(fixtureStore(1), logging.Nop())
	foods := r.RelevantFoods(context.Background(), domain.UserProfile{Goal: "muscle gain"})
	assert.Subset(t, ids(foods), []int64{1, 2, 3, 4, 5, 6})
}

func TestRelevantFoodsFiltersAllergens(t *testing.T) {
	store := fixtureStore(3)
	r := NewRetriever(store, logging.Nop())
	foods := r.RelevantFoods(context.Background(), domain.UserProfile{
		Goal:      "muscle",
		Allergies: []string{"SHRIMP", "  ", "peanut"},
	})
	for _, f := range foods {
		assert.NotContains(t, f.Description, "Shrimp")
		assert.NotContains(t, f.Description, "Peanut")
	}
	assert.Contains(t, ids(foods), int64(1))
}

func TestFilterAllergensChecksIngredients(t *testing.T) {
	foods := []domain.FoodItem{
		{ID: 1, Description: "Granola bar", Ingredients: "OATS, HONEY, ALMONDS"},
		{ID: 2, Description: "Rice cake"},
	}
	out := FilterAllergens(foods, []string{"almond"})
	assert.Equal(t, []int64{2}, ids(out))
	assert.Len(t, FilterAllergens(foods, nil), 2)
}

func TestRelevantFoodsDeduplicatesAndCaps(t *testing.T) {
	var many []domain.FoodItem
	for i := int64(1); i <= 80; i++ {
		many = append(many, food(i, "Lean item", VarietyCategories[i%4], 100, 30))
	}
	r := NewRetriever(foodstore.NewMemoryStore(7, many...), logging.Nop())
	foods := r.RelevantFoods(context.Background(), domain.UserProfile{Goal: "diet"})

	assert.LessOrEqual(t, len(foods), MaxRelevantFoods)
	assert.GreaterOrEqual(t, len(foods), goalBucketLimit)
	seen := map[int64]bool{}
	for _, f := range foods {
		assert.False(t, seen[f.ID], "duplicate id %d", f.ID)
		seen[f.ID] = true
	}
}

func TestDedupeKeepsFirstSeen(t *testing.T) {
	in := []domain.FoodItem{{ID: 3, Description: "first"}, {ID: 1}, {ID: 3, Description: "second"}}
	out := dedupeFoods(in)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Description)
}

func TestRelevantFoodsSwallowsCategoryFailures(t *testing.T) {
	store := fixtureStore(1)
	store.FailCategories = map[string]bool{"Fruits": true, "Grains": true}
	r := NewRetriever(store, logging.Nop())
	foods := r.RelevantFoods(context.Background(), domain.UserProfile{Goal: "eat better"})
	assert.Len(t, foods, 2*varietySample)
}

func TestRelevantFoodsUnavailableStore(t *testing.T) {
	r := NewRetriever(foodstore.Unavailable{Cause: errors.New("missing db")}, logging.Nop())
	assert.Empty(t, r.RelevantFoods(context.Background(), domain.UserProfile{Goal: "diet"}))
}

func TestRelevantFoodsBucketIsReproducible(t *testing.T) {
	profile := domain.UserProfile{Goal: "defisit"}
	a := NewRetriever(fixtureStore(1), logging.Nop()).RelevantFoods(context.Background(), profile)
	b := NewRetriever(fixtureStore(99), logging.Nop()).RelevantFoods(context.Background(), profile)
	assert.Equal(t, ids(a)[:3], ids(b)[:3])

	c := NewRetriever(fixtureStore(1), logging.Nop()).RelevantFoods(context.Background(), profile)
	assert.Equal(t, ids(a), ids(c))
}
