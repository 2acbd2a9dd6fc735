package rag

import (
	"context"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

const (
	// MaxRelevantFoods caps the merged retrieval result.
	MaxRelevantFoods = 50
	goalBucketLimit  = 30
	varietySample    = 5
)

// VarietyCategories are sampled on every retrieval regardless of goal.
var VarietyCategories = []string{"Vegetables", "Fruits", "Proteins", "Grains"}

// GoalBucket names a goal-driven nutrient query.
type GoalBucket string

const (
	BucketNone        GoalBucket = ""
	BucketWeightLoss  GoalBucket = "weight_loss"
	BucketMuscleGain  GoalBucket = "muscle_gain"
	BucketMaintenance GoalBucket = "maintenance"
)

var goalBuckets = []struct {
	bucket   GoalBucket
	keywords []string
	query    foodstore.NutrientQuery
}{
	{
		bucket:   BucketWeightLoss,
		keywords: []string{"turun", "loss", "defisit", "deficit", "diet", "kurus"},
		query:    foodstore.NutrientQuery{MinProtein: foodstore.Float(15), MaxCalories: foodstore.Float(200), Limit: goalBucketLimit},
	},
	{
		bucket:   BucketMuscleGain,
		keywords: []string{"muscle", "otot", "naik berat", "bulk"},
		query:    foodstore.NutrientQuery{MinProtein: foodstore.Float(20), Limit: goalBucketLimit},
	},
	{
		bucket:   BucketMaintenance,
		keywords: []string{"maintain", "jaga"},
		query:    foodstore.NutrientQuery{MinProtein: foodstore.Float(10), MaxCalories: foodstore.Float(300), Limit: goalBucketLimit},
	},
}

// ClassifyGoal returns the first bucket whose keywords appear in goal.
func ClassifyGoal(goal string) GoalBucket {
	lower := strings.ToLower(goal)
	for _, b := range goalBuckets {
		if countMatches(lower, b.keywords) > 0 {
			return b.bucket
		}
	}
	return BucketNone
}

// Retriever selects foods from the reference store for a profile. Store
// failures never fail retrieval; they only shrink the result.
type Retriever struct {
	store  foodstore.Store
	logger logging.Logger
}

// NewRetriever builds a Retriever over store.
func NewRetriever(store foodstore.Store, logger logging.Logger) *Retriever {
	return &Retriever{store: store, logger: logging.OrNop(logger)}
}

// RelevantFoods merges the goal bucket with a variety sample, drops allergens,
// de-duplicates by id and keeps the first MaxRelevantFoods.
func (r *Retriever) RelevantFoods(ctx context.Context, profile domain.UserProfile) []domain.FoodItem {
	var collected []domain.FoodItem

	bucket := ClassifyGoal(profile.Goal)
	for _, b := range goalBuckets {
		if b.bucket != bucket {
			continue
		}
		foods, err := r.store.SearchByNutrients(ctx, b.query)
		if err != nil {
			r.logger.Warn("goal bucket %s query failed: %v", bucket, err)
			break
		}
		collected = append(collected, foods...)
	}

	for _, category := range VarietyCategories {
		foods, err := r.store.RandomSample(ctx, category, varietySample)
		if err != nil {
			r.logger.Warn("variety sample for %s failed: %v", category, err)
			continue
		}
		collected = append(collected, foods...)
	}

	collected = FilterAllergens(collected, profile.Allergies)
	collected = dedupeFoods(collected)
	if len(collected) > MaxRelevantFoods {
		collected = collected[:MaxRelevantFoods]
	}
	return collected
}

// SearchTerms runs a text search per term and concatenates the results.
func (r *Retriever) SearchTerms(ctx context.Context, terms []string, perTerm int) []domain.FoodItem {
	var out []domain.FoodItem
	for _, term := range terms {
		foods, err := r.store.Search(ctx, term, foodstore.SearchFilters{}, perTerm)
		if err != nil {
			r.logger.Warn("food search for %q failed: %v", term, err)
			continue
		}
		out = append(out, foods...)
	}
	return out
}

// FilterAllergens drops foods whose description or ingredients contain any
// allergy term. Blank terms are ignored.
func FilterAllergens(foods []domain.FoodItem, allergies []string) []domain.FoodItem {
	terms := make([]string, 0, len(allergies))
	for _, a := range allergies {
		if t := strings.ToLower(strings.TrimSpace(a)); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return foods
	}
	out := foods[:0:0]
	for _, f := range foods {
		desc := strings.ToLower(f.Description)
		ingredients := strings.ToLower(f.Ingredients)
		allergic := false
		for _, t := range terms {
			if strings.Contains(desc, t) || strings.Contains(ingredients, t) {
				allergic = true
				break
			}
		}
		if !allergic {
			out = append(out, f)
		}
	}
	return out
}

func dedupeFoods(foods []domain.FoodItem) []domain.FoodItem {
	seen := make(map[int64]struct{}, len(foods))
	out := make([]domain.FoodItem, 0, len(foods))
	for _, f := range foods {
		if _, dup := seen[f.ID]; dup {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}
