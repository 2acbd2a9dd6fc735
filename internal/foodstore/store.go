// Package foodstore provides read-only access to the food composition
// reference dataset.
package foodstore

import (
	"context"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// DefaultSearchLimit applies when a caller passes a non-positive limit.
const DefaultSearchLimit = 20

// SearchFilters narrows a text search.
type SearchFilters struct {
	Category string `json:"category,omitempty"`
	DataType string `json:"data_type,omitempty"`
}

// NutrientQuery selects foods by per-100g bounds. Nil bounds are ignored and
// all supplied bounds must hold.
type NutrientQuery struct {
	MinProtein  *float64
	MaxCalories *float64
	MaxFat      *float64
	MaxCarbs    *float64
	Category    string
	Limit       int
}

// Store is the food reference contract consumed by retrieval and the API.
// Every method fails with errors.ErrStoreUnavailable when the dataset has not
// been built; an empty result is not an error.
type Store interface {
	Search(ctx context.Context, query string, filters SearchFilters, limit int) ([]domain.FoodItem, error)
	GetByID(ctx context.Context, id int64) (domain.FoodItem, error)
	SearchByNutrients(ctx context.Context, q NutrientQuery) ([]domain.FoodItem, error)
	RandomSample(ctx context.Context, category string, limit int) ([]domain.FoodItem, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// Float returns a pointer to v, for NutrientQuery bounds.
func Float(v float64) *float64 {
	return &v
}

// Unavailable is a Store for a dataset that was never ingested.
type Unavailable struct {
	Cause error
}

var _ Store = Unavailable{}

func (u Unavailable) err() error { return apperrors.StoreUnavailable(u.Cause) }

func (u Unavailable) Search(context.Context, string, SearchFilters, int) ([]domain.FoodItem, error) {
	return nil, u.err()
}

func (u Unavailable) GetByID(context.Context, int64) (domain.FoodItem, error) {
	return domain.FoodItem{}, u.err()
}

func (u Unavailable) SearchByNutrients(context.Context, NutrientQuery) ([]domain.FoodItem, error) {
	return nil, u.err()
}

func (u Unavailable) RandomSample(context.Context, string, int) ([]domain.FoodItem, error) {
	return nil, u.err()
}

func (u Unavailable) ListCategories(context.Context) ([]string, error) {
	return nil, u.err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return limit
}
