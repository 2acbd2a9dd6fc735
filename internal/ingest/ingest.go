// Package ingest builds the food reference database from a FoodData Central
// CSV export.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/logging"

	_ "modernc.org/sqlite"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 1000

// Source files inside the export directory.
const (
	FileFood         = "food.csv"
	FileNutrient     = "nutrient.csv"
	FileFoodNutrient = "food_nutrient.csv"
	FileFoodCategory = "food_category.csv"
	FileFoodPortion  = "food_portion.csv"
	FileBrandedFood  = "branded_food.csv"
)

// keptDataTypes are the food data types worth serving.
var keptDataTypes = map[string]bool{
	"branded_food":      true,
	"sr_legacy_food":    true,
	"survey_fndds_food": true,
	"foundation_food":   true,
}

// Config controls one ingestion run.
type Config struct {
	DatasetDir string
	DBPath     string
	BatchSize  int
	Logger     logging.Logger
}

// Stats summarizes the built database.
type Stats struct {
	Foods         int            `json:"foods"`
	FoodsByType   map[string]int `json:"foods_by_type"`
	Nutrients     int            `json:"nutrients"`
	FoodNutrients int            `json:"food_nutrients"`
	Categories    int            `json:"categories"`
	Portions      int            `json:"portions"`
	Enriched      int            `json:"enriched"`
	SizeBytes     int64          `json:"size_bytes"`
	Elapsed       time.Duration  `json:"elapsed"`
}

// Run recreates the database at cfg.DBPath from the CSV export. Missing CSV
// files are skipped with a warning.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	started := time.Now()
	logger := logging.OrNop(cfg.Logger)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	info, err := os.Stat(cfg.DatasetDir)
	if err != nil || !info.IsDir() {
		return Stats{}, fmt.Errorf("dataset directory %q not found", cfg.DatasetDir)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create database directory: %w", err)
	}
	if _, err := os.Stat(cfg.DBPath); err == nil {
		logger.Warn("Removing existing database at %s", cfg.DBPath)
		if err := os.Remove(cfg.DBPath); err != nil {
			return Stats{}, fmt.Errorf("remove existing database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return Stats{}, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := foodstore.EnsureSchema(ctx, db); err != nil {
		return Stats{}, err
	}

	imp := &importer{db: db, dir: cfg.DatasetDir, batchSize: cfg.BatchSize, logger: logger}

	steps := []struct {
		table  string
		file   string
		filter func(map[string]string) bool
	}{
		{"food_categories", FileFoodCategory, nil},
		{"nutrients", FileNutrient, nil},
		{"foods", FileFood, keepFood},
		{"food_nutrients", FileFoodNutrient, nil},
		{"food_portions", FileFoodPortion, nil},
	}
	for _, step := range steps {
		n, err := imp.importTable(ctx, step.table, step.file, step.filter)
		if err != nil {
			return Stats{}, fmt.Errorf("import %s: %w", step.file, err)
		}
		logger.Info("Imported %d rows from %s", n, step.file)
	}

	enriched, err := imp.enrichBranded(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("enrich branded foods: %w", err)
	}

	if _, err := db.ExecContext(ctx, macrosView); err != nil {
		return Stats{}, fmt.Errorf("create macros view: %w", err)
	}

	stats, err := collectStats(ctx, db)
	if err != nil {
		return Stats{}, err
	}
	stats.Enriched = enriched
	if fi, err := os.Stat(cfg.DBPath); err == nil {
		stats.SizeBytes = fi.Size()
	}
	stats.Elapsed = time.Since(started)
	return stats, nil
}

func keepFood(row map[string]string) bool {
	return strings.TrimSpace(row["description"]) != "" && keptDataTypes[row["data_type"]]
}

const macrosView = `
CREATE VIEW IF NOT EXISTS foods_with_macros AS
SELECT
    f.fdc_id,
    f.description,
    f.data_type,
    f.brand_name,
    fc.description AS category,
    MAX(CASE WHEN n.name = 'Energy' AND UPPER(n.unit_name) = 'KCAL' THEN fn.amount END) AS calories,
    MAX(CASE WHEN n.name = 'Protein' THEN fn.amount END) AS protein,
    MAX(CASE WHEN n.name = 'Total lipid (fat)' THEN fn.amount END) AS fat,
    MAX(CASE WHEN n.name = 'Carbohydrate, by difference' THEN fn.amount END) AS carbs,
    MAX(CASE WHEN n.name = 'Fiber, total dietary' THEN fn.amount END) AS fiber
FROM foods f
LEFT JOIN food_categories fc ON f.food_category_id = fc.id
LEFT JOIN food_nutrients fn ON f.fdc_id = fn.fdc_id
LEFT JOIN nutrients n ON fn.nutrient_id = n.id
GROUP BY f.fdc_id`

type importer struct {
	db        *sql.DB
	dir       string
	batchSize int
	logger    logging.Logger
}

// openCSV returns a reader positioned after the header, or nil when the file
// does not exist.
func (imp *importer) openCSV(name string) (*os.File, *csv.Reader, []string, error) {
	path := filepath.Join(imp.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		imp.logger.Warn("%s not found, skipping", name)
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, nil, nil, nil
		}
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return f, r, header, nil
}

func (imp *importer) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := imp.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// importTable copies the CSV columns that exist in table, in batches.
func (imp *importer) importTable(ctx context.Context, table, file string, filter func(map[string]string) bool) (int, error) {
	f, r, header, err := imp.openCSV(file)
	if err != nil || f == nil {
		return 0, err
	}
	defer f.Close()

	tableCols, err := imp.tableColumns(ctx, table)
	if err != nil {
		return 0, err
	}

	var columns []string
	var positions []int
	for i, col := range header {
		if tableCols[col] {
			columns = append(columns, col)
			positions = append(positions, i)
		}
	}
	if len(columns) == 0 {
		imp.logger.Warn("%s shares no columns with %s, skipping", file, table)
		return 0, nil
	}

	insert := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ","), strings.TrimSuffix(strings.Repeat("?,", len(columns)), ","))

	batch := make([][]any, 0, imp.batchSize)
	count := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read row %d: %w", count+1, err)
		}
		if filter != nil && !filter(rowMap(header, record)) {
			continue
		}

		values := make([]any, len(positions))
		for i, pos := range positions {
			if pos < len(record) && record[pos] != "" {
				values[i] = record[pos]
			}
		}
		batch = append(batch, values)
		count++

		if len(batch) >= imp.batchSize {
			if err := imp.flush(ctx, insert, batch); err != nil {
				return count, err
			}
			batch = batch[:0]
			imp.logger.Debug("Processed %d rows of %s", count, file)
		}
	}
	if len(batch) > 0 {
		if err := imp.flush(ctx, insert, batch); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (imp *importer) flush(ctx context.Context, query string, batch [][]any) error {
	tx, err := imp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, values := range batch {
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

// enrichBranded copies brand and serving columns from branded_food.csv onto
// already imported foods.
func (imp *importer) enrichBranded(ctx context.Context) (int, error) {
	f, r, header, err := imp.openCSV(FileBrandedFood)
	if err != nil || f == nil {
		return 0, err
	}
	defer f.Close()

	const update = `
UPDATE foods
SET brand_owner = ?,
    brand_name = ?,
    ingredients = ?,
    serving_size = ?,
    serving_size_unit = ?,
    household_serving_fulltext = ?
WHERE fdc_id = ?`

	batch := make([][]any, 0, imp.batchSize)
	count := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read row %d: %w", count+1, err)
		}
		row := rowMap(header, record)
		if row["fdc_id"] == "" {
			continue
		}
		batch = append(batch, []any{
			nullable(row["brand_owner"]),
			nullable(row["brand_name"]),
			nullable(row["ingredients"]),
			nullable(row["serving_size"]),
			nullable(row["serving_size_unit"]),
			nullable(row["household_serving_fulltext"]),
			row["fdc_id"],
		})
		count++
		if len(batch) >= imp.batchSize {
			if err := imp.flush(ctx, update, batch); err != nil {
				return count, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := imp.flush(ctx, update, batch); err != nil {
			return count, err
		}
	}
	imp.logger.Info("Enriched %d foods with branded data", count)
	return count, nil
}

func collectStats(ctx context.Context, db *sql.DB) (Stats, error) {
	stats := Stats{FoodsByType: map[string]int{}}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM foods", &stats.Foods},
		{"SELECT COUNT(*) FROM nutrients", &stats.Nutrients},
		{"SELECT COUNT(*) FROM food_nutrients", &stats.FoodNutrients},
		{"SELECT COUNT(*) FROM food_categories", &stats.Categories},
		{"SELECT COUNT(*) FROM food_portions", &stats.Portions},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("collect stats: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT COALESCE(data_type, ''), COUNT(*) FROM foods GROUP BY data_type")
	if err != nil {
		return stats, fmt.Errorf("collect stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dataType string
		var n int
		if err := rows.Scan(&dataType, &n); err != nil {
			return stats, err
		}
		stats.FoodsByType[dataType] = n
	}
	return stats, rows.Err()
}

func rowMap(header, record []string) map[string]string {
	row := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(record) {
			row[col] = record[i]
		}
	}
	return row
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
