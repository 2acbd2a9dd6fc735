package foodstore

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
	"github.com/darrellrafa/Nutribot/internal/logging"
	chromem "github.com/philippgille/chromem-go"
)

// SemanticConfig configures the embedding index over food descriptions.
type SemanticConfig struct {
	PersistPath string // directory for the gob snapshot; empty keeps it in memory
	Collection  string
}

// SemanticIndex answers free-text food queries by embedding similarity and
// resolves hits back through the reference Store.
type SemanticIndex struct {
	store      Store
	collection *chromem.Collection
	logger     logging.Logger
}

// OllamaEmbeddingFunc embeds text with an Ollama embedding model. baseURL
// may be given with or without the /api suffix.
func OllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && !strings.HasSuffix(baseURL, "/api") {
		baseURL += "/api"
	}
	return chromem.NewEmbeddingFuncOllama(model, baseURL)
}

// NewSemanticIndex opens or creates the collection.
func NewSemanticIndex(cfg SemanticConfig, store Store, embed chromem.EmbeddingFunc) (*SemanticIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = "foods"
	}

	var db *chromem.DB
	if cfg.PersistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "foods.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("open semantic index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &SemanticIndex{
		store:      store,
		collection: collection,
		logger:     logging.NewComponentLogger("food-semantic"),
	}, nil
}

// Count reports the number of indexed foods.
func (s *SemanticIndex) Count() int {
	return s.collection.Count()
}

// Index embeds foods and adds them to the collection.
func (s *SemanticIndex) Index(ctx context.Context, foods []domain.FoodItem) error {
	if len(foods) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(foods))
	for _, f := range foods {
		docs = append(docs, chromem.Document{
			ID:      strconv.FormatInt(f.ID, 10),
			Content: documentText(f),
			Metadata: map[string]string{
				"fdc_id":   strconv.FormatInt(f.ID, 10),
				"category": f.Category,
			},
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("index foods: %w", err)
	}
	return nil
}

// IndexCategories samples up to perCategory foods from every category and
// indexes them.
func (s *SemanticIndex) IndexCategories(ctx context.Context, perCategory int) (int, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		foods, err := s.store.RandomSample(ctx, category, perCategory)
		if err != nil {
			s.logger.Warn("Skipping category %q: %v", category, err)
			continue
		}
		if err := s.Index(ctx, foods); err != nil {
			return total, err
		}
		total += len(foods)
	}
	return total, nil
}

// Search returns the foods most similar to query, best first.
func (s *SemanticIndex) Search(ctx context.Context, query string, limit int) ([]domain.FoodItem, error) {
	limit = normalizeLimit(limit)
	if n := s.collection.Count(); n < limit {
		limit = n
	}
	if limit == 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query semantic index: %w", err)
	}

	out := make([]domain.FoodItem, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.Metadata["fdc_id"], 10, 64)
		if err != nil {
			continue
		}
		item, err := s.store.GetByID(ctx, id)
		if err != nil {
			s.logger.Debug("Semantic hit %d not resolvable: %v", id, err)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func documentText(f domain.FoodItem) string {
	parts := []string{f.Description}
	if f.Brand != "" {
		parts = append(parts, "brand "+f.Brand)
	}
	if f.Category != "" {
		parts = append(parts, "category "+f.Category)
	}
	if f.Ingredients != "" {
		parts = append(parts, "ingredients "+f.Ingredients)
	}
	return strings.Join(parts, ". ")
}
