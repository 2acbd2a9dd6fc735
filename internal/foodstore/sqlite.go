package foodstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore reads the ingested FoodData Central database.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

var _ Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithSeed makes RandomSample reproducible.
func WithSeed(seed uint64) Option {
	return func(s *SQLiteStore) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the store logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *SQLiteStore) {
		s.logger = logging.OrNop(logger)
	}
}

// OpenSQLite opens the dataset at path read-only. A missing file or a
// database without the foods table yields errors.ErrStoreUnavailable.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("dataset %s: %w", path, err))
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("open dataset: %w", err))
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'foods'`).Scan(&name)
	if err != nil {
		db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.StoreUnavailable(fmt.Errorf("dataset %s has no foods table", path))
		}
		return nil, apperrors.StoreUnavailable(err)
	}

	return NewSQLiteStore(db, opts...), nil
}

// NewSQLiteStore wraps an open handle that already carries the schema.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		db:     db,
		logger: logging.NewComponentLogger("foodstore"),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const foodColumns = `
    f.fdc_id,
    COALESCE(f.description, ''),
    COALESCE(f.data_type, ''),
    COALESCE(fc.description, ''),
    COALESCE(f.brand_owner, ''),
    COALESCE(f.brand_name, ''),
    COALESCE(f.ingredients, ''),
    COALESCE(f.serving_size, 0),
    COALESCE(f.serving_size_unit, '')
FROM foods f
LEFT JOIN food_categories fc ON f.food_category_id = fc.id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query as a case-insensitive substring of description or brand.
func (s *SQLiteStore) Search(ctx context.Context, query string, filters SearchFilters, limit int) ([]domain.FoodItem, error) {
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
	clauses := []string{`(f.description LIKE ? ESCAPE '\' OR f.brand_name LIKE ? ESCAPE '\')`}
	args := []any{pattern, pattern}

	if filters.Category != "" {
		clauses = append(clauses, "fc.description = ?")
		args = append(args, filters.Category)
	}
	if filters.DataType != "" {
		clauses = append(clauses, "f.data_type = ?")
		args = append(args, filters.DataType)
	}
	args = append(args, normalizeLimit(limit))

	q := "SELECT " + foodColumns + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY f.fdc_id LIMIT ?"
	return s.queryFoods(ctx, q, args...)
}

// GetByID returns one food with its nutrients and portions.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (domain.FoodItem, error) {
	items, err := s.queryFoods(ctx, "SELECT "+foodColumns+" WHERE f.fdc_id = ?", id)
	if err != nil {
		return domain.FoodItem{}, err
	}
	if len(items) == 0 {
		return domain.FoodItem{}, apperrors.NotFoundf("food %d", id)
	}
	item := items[0]

	rows, err := s.db.QueryContext(ctx, `
SELECT COALESCE(portion_description, ''), COALESCE(modifier, ''), COALESCE(gram_weight, 0)
FROM food_portions
WHERE fdc_id = ?
ORDER BY seq_num`, id)
	if err != nil {
		return domain.FoodItem{}, apperrors.StoreUnavailable(fmt.Errorf("query portions: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var desc, modifier string
		var grams float64
		if err := rows.Scan(&desc, &modifier, &grams); err != nil {
			return domain.FoodItem{}, apperrors.StoreUnavailable(fmt.Errorf("scan portion: %w", err))
		}
		if desc == "" {
			desc = modifier
		}
		item.Portions = append(item.Portions, domain.FoodPortion{Description: desc, GramWeight: grams})
	}
	if err := rows.Err(); err != nil {
		return domain.FoodItem{}, apperrors.StoreUnavailable(err)
	}
	return item, nil
}

// SearchByNutrients applies every supplied bound conjunctively.
func (s *SQLiteStore) SearchByNutrients(ctx context.Context, nq NutrientQuery) ([]domain.FoodItem, error) {
	var clauses []string
	var args []any

	bound := func(key, op string, value *float64) {
		if value == nil {
			return
		}
		clause := `EXISTS (
    SELECT 1 FROM food_nutrients fn
    JOIN nutrients n ON n.id = fn.nutrient_id
    WHERE fn.fdc_id = f.fdc_id AND n.name = ? AND fn.amount ` + op + ` ?`
		if key == domain.NutrientCalories {
			clause += ` AND UPPER(n.unit_name) = 'KCAL'`
		}
		clauses = append(clauses, clause+")")
		args = append(args, DatasetNutrientName(key), *value)
	}
	bound(domain.NutrientProtein, ">=", nq.MinProtein)
	bound(domain.NutrientCalories, "<=", nq.MaxCalories)
	bound(domain.NutrientFat, "<=", nq.MaxFat)
	bound(domain.NutrientCarbs, "<=", nq.MaxCarbs)

	if nq.Category != "" {
		clauses = append(clauses, "fc.description = ?")
		args = append(args, nq.Category)
	}

	q := "SELECT " + foodColumns
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY f.fdc_id LIMIT ?"
	args = append(args, normalizeLimit(nq.Limit))

	return s.queryFoods(ctx, q, args...)
}

// RandomSample draws up to limit distinct foods uniformly from the category
// (or the whole dataset when category is empty).
func (s *SQLiteStore) RandomSample(ctx context.Context, category string, limit int) ([]domain.FoodItem, error) {
	limit = normalizeLimit(limit)

	q := "SELECT f.fdc_id FROM foods f LEFT JOIN food_categories fc ON f.food_category_id = fc.id"
	var args []any
	if category != "" {
		q += " WHERE fc.description = ?"
		args = append(args, category)
	}
	q += " ORDER BY f.fdc_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("query sample ids: %w", err))
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperrors.StoreUnavailable(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	chosen := s.sample(ids, limit)
	if len(chosen) == 0 {
		return nil, nil
	}

	placeholders, idArgs := inClause(chosen)
	items, err := s.queryFoods(ctx, "SELECT "+foodColumns+" WHERE f.fdc_id IN ("+placeholders+")", idArgs...)
	if err != nil {
		return nil, err
	}
	return orderByIDs(items, chosen), nil
}

// ListCategories returns distinct category names in order.
func (s *SQLiteStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT description FROM food_categories
WHERE description IS NOT NULL AND description != ''
ORDER BY description`)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("query categories: %w", err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.StoreUnavailable(err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// sample performs a partial Fisher-Yates shuffle over a copy of ids.
func (s *SQLiteStore) sample(ids []int64, k int) []int64 {
	if k > len(ids) {
		k = len(ids)
	}
	pool := append([]int64(nil), ids...)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func (s *SQLiteStore) queryFoods(ctx context.Context, q string, args ...any) ([]domain.FoodItem, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("query foods: %w", err))
	}
	defer rows.Close()

	var items []domain.FoodItem
	for rows.Next() {
		var item domain.FoodItem
		if err := rows.Scan(
			&item.ID,
			&item.Description,
			&item.DataType,
			&item.Category,
			&item.BrandOwner,
			&item.Brand,
			&item.Ingredients,
			&item.ServingSize,
			&item.ServingUnit,
		); err != nil {
			return nil, apperrors.StoreUnavailable(fmt.Errorf("scan food: %w", err))
		}
		item.Nutrients = map[string]float64{}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	rows.Close()

	if err := s.attachNutrients(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// attachNutrients loads tracked nutrients for all items in one query.
func (s *SQLiteStore) attachNutrients(ctx context.Context, items []domain.FoodItem) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	ids := make([]int64, 0, len(items))
	for i, item := range items {
		index[item.ID] = i
		ids = append(ids, item.ID)
	}

	idPlaceholders, args := inClause(ids)
	names := trackedNutrientNames()
	namePlaceholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args = append(args, names...)

	rows, err := s.db.QueryContext(ctx, `
SELECT fn.fdc_id, n.name, COALESCE(n.unit_name, ''), fn.amount
FROM food_nutrients fn
JOIN nutrients n ON fn.nutrient_id = n.id
WHERE fn.fdc_id IN (`+idPlaceholders+`) AND n.name IN (`+namePlaceholders+`) AND fn.amount IS NOT NULL`, args...)
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("query nutrients: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fdcID  int64
			name   string
			unit   string
			amount float64
		)
		if err := rows.Scan(&fdcID, &name, &unit, &amount); err != nil {
			return apperrors.StoreUnavailable(fmt.Errorf("scan nutrient: %w", err))
		}
		key, ok := CanonicalNutrient(name, unit)
		if !ok || amount < 0 {
			continue
		}
		if i, found := index[fdcID]; found {
			items[i].Nutrients[key] = amount
		}
	}
	return rows.Err()
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

func orderByIDs(items []domain.FoodItem, ids []int64) []domain.FoodItem {
	byID := make(map[int64]domain.FoodItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	out := make([]domain.FoodItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			out = append(out, item)
		}
	}
	return out
}
