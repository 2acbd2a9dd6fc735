package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/llm"
)

const (
	defaultSearchLimit      = 20
	defaultAlternativeLimit = 10
	maxFoodLimit            = 100
)

var errSemanticDisabled = errors.New("semantic search is disabled")

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxFoodLimit {
		return maxFoodLimit
	}
	return limit
}

type searchFoodsRequest struct {
	Query   string                  `json:"query"`
	Filters foodstore.SearchFilters `json:"filters"`
	Limit   int                     `json:"limit"`
}

type foodsResponse struct {
	Foods []domain.FoodItem `json:"foods"`
	Count int               `json:"count"`
}

func (s *Server) handleSearchFoods(c *gin.Context) {
	var req searchFoodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.badRequest(c, "Query is required")
		return
	}
	foods, err := s.foods.Search(c.Request.Context(), query, req.Filters, clampLimit(req.Limit, defaultSearchLimit))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, foodsResponse{Foods: nonNilFoods(foods), Count: len(foods)})
}

func (s *Server) handleSemanticSearch(c *gin.Context) {
	if s.semantic == nil {
		s.abortWithError(c, apperrors.StoreUnavailable(errSemanticDisabled))
		return
	}
	var req searchFoodsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.badRequest(c, "Query is required")
		return
	}
	foods, err := s.semantic.Search(c.Request.Context(), query, clampLimit(req.Limit, defaultSearchLimit))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, foodsResponse{Foods: nonNilFoods(foods), Count: len(foods)})
}

func (s *Server) handleFoodDetails(c *gin.Context) {
	fdcID, err := strconv.ParseInt(c.Param("fdc_id"), 10, 64)
	if err != nil || fdcID <= 0 {
		s.badRequest(c, "fdc_id must be a positive integer")
		return
	}
	food, err := s.foods.GetByID(c.Request.Context(), fdcID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			s.abortWithError(c, apperrors.NotFoundf("Food not found"))
			return
		}
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, food)
}

type alternativesRequest struct {
	MinProtein  *float64 `json:"min_protein"`
	MaxCalories *float64 `json:"max_calories"`
	MaxFat      *float64 `json:"max_fat"`
	MaxCarbs    *float64 `json:"max_carbs"`
	Category    string   `json:"category"`
	Limit       int      `json:"limit"`
}

func (s *Server) handleSuggestAlternatives(c *gin.Context) {
	var req alternativesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	foods, err := s.foods.SearchByNutrients(c.Request.Context(), foodstore.NutrientQuery{
		MinProtein:  req.MinProtein,
		MaxCalories: req.MaxCalories,
		MaxFat:      req.MaxFat,
		MaxCarbs:    req.MaxCarbs,
		Category:    strings.TrimSpace(req.Category),
		Limit:       clampLimit(req.Limit, defaultAlternativeLimit),
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alternatives": nonNilFoods(foods), "count": len(foods)})
}

func (s *Server) handleCategories(c *gin.Context) {
	categories, err := s.foods.ListCategories(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}

func (s *Server) handleModels(c *gin.Context) {
	if s.models == nil {
		c.JSON(http.StatusOK, gin.H{"models": []llm.ModelInfo{}, "default_model": s.opts.DefaultModel})
		return
	}
	models, err := s.models.ListModels(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if models == nil {
		models = []llm.ModelInfo{}
	}
	_, installed := llm.ResolveModel(models, s.opts.DefaultModel)
	c.JSON(http.StatusOK, gin.H{
		"models":            models,
		"default_model":     s.opts.DefaultModel,
		"default_installed": installed,
	})
}

func nonNilFoods(foods []domain.FoodItem) []domain.FoodItem {
	if foods == nil {
		return []domain.FoodItem{}
	}
	return foods
}
