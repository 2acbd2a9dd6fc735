// Package rag grounds meal-planning replies in the food reference store and
// runs the two-stage generation pipeline.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/foodstore"
	"github.com/darrellrafa/Nutribot/internal/llm"
	"github.com/darrellrafa/Nutribot/internal/logging"
	"github.com/darrellrafa/Nutribot/internal/nutrition"
	"github.com/darrellrafa/Nutribot/internal/observability"
)

const (
	// DefaultPlanReplyThreshold is the reply length, in characters, above
	// which a reply is treated as a meal plan and gets a summary and calendar.
	DefaultPlanReplyThreshold = 500
	// DefaultCallTimeout bounds a single model call.
	DefaultCallTimeout = 120 * time.Second

	chatTermResults = 5
)

// mealPlanSummaryHeadings separate a plan from its appended summary.
var mealPlanSummaryHeadings = map[domain.Language]string{
	domain.LanguageIndonesian: "\n\n---\n\n## 📋 Ringkasan Meal Plan\n\n",
	domain.LanguageEnglish:    "\n\n---\n\n## 📋 Meal Plan Summary\n\n",
}

// Sampling parameters per call site.
var (
	primaryParams  = sampling{temperature: 0.7, maxTokens: 2048}
	mealPlanParams = sampling{temperature: 0.7, maxTokens: 4096}
	summaryParams  = sampling{temperature: 0.3, maxTokens: 1024}
	calendarParams = sampling{temperature: 0.1, maxTokens: 1024}
)

type sampling struct {
	temperature float64
	maxTokens   int
}

func (s sampling) options(model string) llm.Options {
	return llm.Options{Model: model, Temperature: s.temperature, MaxTokens: s.maxTokens}
}

// Config is the immutable orchestrator configuration.
type Config struct {
	DefaultModel       string
	SummarizationModel string
	RAGEnabled         bool
	PlanReplyThreshold int
	CallTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.PlanReplyThreshold <= 0 {
		c.PlanReplyThreshold = DefaultPlanReplyThreshold
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.SummarizationModel == "" {
		c.SummarizationModel = c.DefaultModel
	}
	return c
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records stage metrics.
func WithMetrics(m *Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithTracer traces each stage.
func WithTracer(tp *observability.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp }
}

// WithLogger overrides the component logger.
func WithLogger(l logging.Logger) Option { return func(o *Orchestrator) { o.logger = logging.OrNop(l) } }

// WithSemanticIndex lets food questions in chat use embedding search before
// falling back to keyword terms.
func WithSemanticIndex(idx *foodstore.SemanticIndex) Option {
	return func(o *Orchestrator) { o.semantic = idx }
}

// Orchestrator answers chat turns and builds meal plans. It holds no
// per-request state and is safe for concurrent use.
type Orchestrator struct {
	cfg       Config
	client    llm.Client
	retriever *Retriever
	semantic  *foodstore.SemanticIndex
	metrics   *Metrics
	tracer    *observability.TracerProvider
	logger    logging.Logger
}

// New wires an orchestrator. store may be a foodstore.Unavailable when the
// dataset has not been built; generation then proceeds ungrounded.
func New(cfg Config, client llm.Client, store foodstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg.withDefaults(),
		client: client,
		logger: logging.NewComponentLogger("rag"),
		tracer: observability.NoopTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.retriever = NewRetriever(store, o.logger)
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// RelevantFoods exposes profile-driven retrieval.
func (o *Orchestrator) RelevantFoods(ctx context.Context, profile domain.UserProfile) []domain.FoodItem {
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanRetrieval)
	started := time.Now()
	foods := o.retriever.RelevantFoods(ctx, profile)
	o.metrics.ObserveStage(StageRetrieval, "ok", time.Since(started))
	span.SetAttributes(attribute.Int(observability.AttrFoodCount, len(foods)))
	observability.EndSpan(span, nil)
	return foods
}

// GenerateReply answers one chat turn. Only a primary generation failure is
// returned as an error; summary, calendar and nutrition failures degrade to
// empty fields.
func (o *Orchestrator) GenerateReply(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	return o.generate(ctx, req, nil)
}

// GenerateReplyStream is GenerateReply with the primary reply delivered
// incrementally through onDelta. The returned result is the same.
func (o *Orchestrator) GenerateReplyStream(ctx context.Context, req domain.GenerationRequest, onDelta func(string)) (domain.GenerationResult, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return o.generate(ctx, req, onDelta)
}

func (o *Orchestrator) generate(ctx context.Context, req domain.GenerationRequest, onDelta func(string)) (result domain.GenerationResult, err error) {
	defer o.metrics.trackActive()()

	lang := DetectLanguage(req.Message)
	model := o.cfg.DefaultModel
	if m := strings.TrimSpace(req.ModelOverride); m != "" {
		model = m
	}
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanReplyGenerate,
		attribute.String(observability.AttrLanguage, string(lang)),
		attribute.String(observability.AttrModel, model))
	defer func() { observability.EndSpan(span, err) }()

	result = domain.GenerationResult{Model: model, Language: lang}
	result.NutritionSummary = o.nutritionSummary(req.Profile)

	turns := o.chatTurns(ctx, req, lang)
	opts := primaryParams.options(model)

	started := time.Now()
	reply, err := o.withTimeout(ctx, model, func(callCtx context.Context) (string, error) {
		if onDelta != nil {
			return llm.ChatStream(callCtx, o.client, turns, opts, onDelta)
		}
		return o.client.Chat(callCtx, turns, opts)
	})
	if err != nil {
		o.metrics.ObserveStage(StagePrimary, "error", time.Since(started))
		o.metrics.IncStageFailure(StagePrimary, string(apperrors.KindOf(err)))
		o.logger.Error("primary generation failed: model=%s err=%v", model, err)
		return domain.GenerationResult{}, err
	}
	o.metrics.ObserveStage(StagePrimary, "ok", time.Since(started))
	result.Reply = reply

	chars := utf8.RuneCountInString(reply)
	planShaped := chars > o.cfg.PlanReplyThreshold
	span.SetAttributes(attribute.Int(observability.AttrReplyChars, chars), attribute.Bool(observability.AttrPlanReply, planShaped))
	if planShaped {
		o.metrics.incPlanReply()
		var target float64
		if result.NutritionSummary != nil {
			target = result.NutritionSummary.TargetCalories
		}
		result.MealPlanSummary, result.MealCalendar = o.secondaryStage(ctx, reply, req.Profile, target)
	}
	return result, nil
}

// ComputeMealPlan generates a full multi-day plan for profile, grounded in
// retrieved foods when enabled, with the plan summary appended.
func (o *Orchestrator) ComputeMealPlan(ctx context.Context, profile domain.UserProfile) (plan string, err error) {
	defer o.metrics.trackActive()()
	model := o.cfg.DefaultModel
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanMealPlanGenerate, attribute.String(observability.AttrModel, model))
	defer func() { observability.EndSpan(span, err) }()

	var foodContext string
	if o.cfg.RAGEnabled {
		foods := o.RelevantFoods(ctx, profile)
		o.logger.Info("retrieved %d relevant foods for meal plan", len(foods))
		foodContext = BuildFoodContext(foods, DefaultContextItems)
	}

	started := time.Now()
	plan, err = o.withTimeout(ctx, model, func(callCtx context.Context) (string, error) {
		return o.client.Generate(callCtx, MealPlanPrompt(profile, foodContext), SystemPrompt, mealPlanParams.options(model))
	})
	if err != nil {
		o.metrics.ObserveStage(StageMealPlan, "error", time.Since(started))
		o.metrics.IncStageFailure(StageMealPlan, string(apperrors.KindOf(err)))
		return "", err
	}
	o.metrics.ObserveStage(StageMealPlan, "ok", time.Since(started))

	var target float64
	if summary := o.nutritionSummary(&profile); summary != nil {
		target = summary.TargetCalories
	}
	if summary, sumErr := o.Summarize(ctx, plan, &profile, target); sumErr == nil {
		plan += mealPlanSummaryHeadings[ProfileLanguage(&profile)] + summary
	}
	return plan, nil
}

// Summarize asks the summarization model for a faithful audit of plan.
func (o *Orchestrator) Summarize(ctx context.Context, plan string, profile *domain.UserProfile, targetCalories float64) (summary string, err error) {
	model := o.cfg.SummarizationModel
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanSummary, attribute.String(observability.AttrModel, model))
	defer func() { observability.EndSpan(span, err) }()

	started := time.Now()
	summary, err = o.withTimeout(ctx, model, func(callCtx context.Context) (string, error) {
		return o.client.Generate(callCtx, SummaryPrompt(plan, profile, targetCalories), SummarizationSystemPrompt, summaryParams.options(model))
	})
	o.finishSecondary(StageSummary, started, err)
	return summary, err
}

// ExtractCalendar asks the summarization model for a lunch and dinner
// calendar. Any failure yields an empty calendar.
func (o *Orchestrator) ExtractCalendar(ctx context.Context, plan string) []domain.CalendarEntry {
	model := o.cfg.SummarizationModel
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanCalendar, attribute.String(observability.AttrModel, model))

	started := time.Now()
	raw, err := o.withTimeout(ctx, model, func(callCtx context.Context) (string, error) {
		return o.client.Generate(callCtx, CalendarPrompt(plan), CalendarSystemPrompt, calendarParams.options(model))
	})
	var entries []domain.CalendarEntry
	if err == nil {
		entries, err = ParseCalendar(raw)
	}
	o.finishSecondary(StageCalendar, started, err)
	observability.EndSpan(span, err)
	if err != nil {
		return []domain.CalendarEntry{}
	}
	return entries
}

// secondaryStage runs summary and calendar extraction concurrently. Neither
// cancels the other.
func (o *Orchestrator) secondaryStage(ctx context.Context, reply string, profile *domain.UserProfile, target float64) (string, []domain.CalendarEntry) {
	var (
		g        errgroup.Group
		summary  string
		calendar []domain.CalendarEntry
	)
	g.Go(func() error {
		if s, err := o.Summarize(ctx, reply, profile, target); err == nil {
			summary = s
		}
		return nil
	})
	g.Go(func() error {
		calendar = o.ExtractCalendar(ctx, reply)
		return nil
	})
	_ = g.Wait()
	return summary, calendar
}

func (o *Orchestrator) finishSecondary(stage string, started time.Time, err error) {
	if err != nil {
		o.metrics.ObserveStage(stage, "error", time.Since(started))
		o.metrics.IncStageFailure(stage, string(apperrors.KindOf(err)))
		o.logger.Warn("%s stage degraded: %v", stage, err)
		return
	}
	o.metrics.ObserveStage(stage, "ok", time.Since(started))
}

func (o *Orchestrator) nutritionSummary(profile *domain.UserProfile) *domain.NutritionSummary {
	if !profile.IsComplete() {
		return nil
	}
	summary, err := nutrition.ComputeSummary(nutrition.InputFromProfile(*profile, domain.MacroBalanced))
	if err != nil {
		o.logger.Debug("nutrition summary skipped: %v", err)
		return nil
	}
	if !nutrition.Finite(summary) {
		o.logger.Warn("nutrition summary skipped: non-finite result for profile %+v", *profile)
		return nil
	}
	return &summary
}

// chatTurns assembles system prompt, history and the directive-prefixed user
// message. History order is kept as given.
func (o *Orchestrator) chatTurns(ctx context.Context, req domain.GenerationRequest, lang domain.Language) []domain.ConversationTurn {
	system := SystemPrompt
	if profileBlock := ProfileContext(req.Profile); profileBlock != "" {
		system += "\n\n" + profileBlock
	}

	turns := make([]domain.ConversationTurn, 0, len(req.History)+2)
	turns = append(turns, domain.ConversationTurn{Role: domain.RoleSystem, Content: system})
	turns = append(turns, req.History...)

	message := req.Message
	if o.cfg.RAGEnabled && IsFoodQuery(req.Message) {
		if foods := o.chatFoods(ctx, req.Message); len(foods) > 0 {
			message += "\n\n" + BuildFoodContext(foods, ChatContextItems)
		}
	}
	message = Directives(lang, IsListRequest(req.Message)) + message
	return append(turns, domain.ConversationTurn{Role: domain.RoleUser, Content: message})
}

func (o *Orchestrator) chatFoods(ctx context.Context, message string) []domain.FoodItem {
	ctx, span := o.tracer.StartSpan(ctx, observability.SpanRetrieval)
	defer span.End()
	started := time.Now()

	var foods []domain.FoodItem
	if o.semantic != nil && o.semantic.Count() > 0 {
		hits, err := o.semantic.Search(ctx, message, ChatContextItems)
		if err != nil {
			o.logger.Warn("semantic food search failed: %v", err)
		}
		foods = hits
	}
	if len(foods) == 0 {
		foods = o.retriever.SearchTerms(ctx, ExtractFoodTerms(message), chatTermResults)
	}
	o.metrics.ObserveStage(StageRetrieval, "ok", time.Since(started))
	span.SetAttributes(attribute.Int(observability.AttrFoodCount, len(foods)))
	return foods
}

// withTimeout bounds fn by the configured call timeout. Expiry is reported
// as ModelUnavailable and partial output is discarded.
func (o *Orchestrator) withTimeout(ctx context.Context, model string, fn func(context.Context) (string, error)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	out, err := fn(callCtx)
	if err == nil {
		return out, nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, apperrors.ErrModelUnavailable) {
		return "", apperrors.NewModelUnavailable(model, 0, false, fmt.Errorf("no response within %s: %w", o.cfg.CallTimeout, err))
	}
	return "", err
}
