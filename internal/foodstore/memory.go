package foodstore

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

// MemoryStore is an in-process Store over a fixed slice of foods. It backs
// tests and small fixture datasets.
type MemoryStore struct {
	foods []domain.FoodItem

	mu  sync.Mutex
	rng *rand.Rand

	// FailCategories makes RandomSample fail for the named categories.
	FailCategories map[string]bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore copies foods, ordered by id.
func NewMemoryStore(seed uint64, foods ...domain.FoodItem) *MemoryStore {
	copied := append([]domain.FoodItem(nil), foods...)
	sort.Slice(copied, func(i, j int) bool { return copied[i].ID < copied[j].ID })
	return &MemoryStore{
		foods: copied,
		rng:   rand.New(rand.NewPCG(seed, seed)),
	}
}

func (m *MemoryStore) Search(_ context.Context, query string, filters SearchFilters, limit int) ([]domain.FoodItem, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []domain.FoodItem
	for _, f := range m.foods {
		if !strings.Contains(strings.ToLower(f.Description), needle) && !strings.Contains(strings.ToLower(f.Brand), needle) {
			continue
		}
		if filters.Category != "" && f.Category != filters.Category {
			continue
		}
		if filters.DataType != "" && f.DataType != filters.DataType {
			continue
		}
		out = append(out, f)
		if len(out) == normalizeLimit(limit) {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (domain.FoodItem, error) {
	for _, f := range m.foods {
		if f.ID == id {
			return f, nil
		}
	}
	return domain.FoodItem{}, apperrors.NotFoundf("food %d", id)
}

func (m *MemoryStore) SearchByNutrients(_ context.Context, q NutrientQuery) ([]domain.FoodItem, error) {
	var out []domain.FoodItem
	for _, f := range m.foods {
		if !matchesBound(f, domain.NutrientProtein, q.MinProtein, true) ||
			!matchesBound(f, domain.NutrientCalories, q.MaxCalories, false) ||
			!matchesBound(f, domain.NutrientFat, q.MaxFat, false) ||
			!matchesBound(f, domain.NutrientCarbs, q.MaxCarbs, false) {
			continue
		}
		if q.Category != "" && f.Category != q.Category {
			continue
		}
		out = append(out, f)
		if len(out) == normalizeLimit(q.Limit) {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) RandomSample(_ context.Context, category string, limit int) ([]domain.FoodItem, error) {
	if m.FailCategories[category] {
		return nil, apperrors.StoreUnavailable(nil)
	}
	var pool []domain.FoodItem
	for _, f := range m.foods {
		if category == "" || f.Category == category {
			pool = append(pool, f)
		}
	}
	k := normalizeLimit(limit)
	if k > len(pool) {
		k = len(pool)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < k; i++ {
		j := i + m.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}

func (m *MemoryStore) ListCategories(context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, f := range m.foods {
		if f.Category != "" && !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchesBound(f domain.FoodItem, key string, bound *float64, isMin bool) bool {
	if bound == nil {
		return true
	}
	v, ok := f.Nutrients[key]
	if !ok {
		return false
	}
	if isMin {
		return v >= *bound
	}
	return v <= *bound
}
