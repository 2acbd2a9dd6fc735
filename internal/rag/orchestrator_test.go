package rag

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/llm"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

var (
	longPlan     = "Hari 1:\n- Sarapan: Oatmeal (300 kkal)\n" + strings.Repeat("- Makan Siang: Nasi merah dan ayam panggang (450 kkal)\n", 12)
	calendarJSON = `[{"day":"Mon","lunch":"Nasi ayam","dinner":"Sup"},{"day":"Tue","lunch":"Gado-gado","dinner":"Ikan"}]`
	testProfile  = domain.UserProfile{
		Age: 25, Gender: domain.GenderMale, HeightCM: 170, WeightKG: 70,
		Goal: "turun berat badan", ActivityLevel: domain.ActivityModeratelyActive,
	}
)

func testConfig() Config {
	return Config{
		DefaultModel:       "llama3.2:3b",
		SummarizationModel: "qwen2.5:7b-instruct-q5_K_M",
		RAGEnabled:         true,
		CallTimeout:        time.Second,
	}
}

// scripted routes each call by its system prompt.
func scripted(primary string, primaryErr, summaryErr error, calendar string) *llm.MockClient {
	return &llm.MockClient{Respond: func(call llm.MockCall) (string, error) {
		switch {
		case call.SystemPrompt == SummarizationSystemPrompt:
			return "Ringkasan: sekitar 1900 kkal per hari.", summaryErr
		case call.SystemPrompt == CalendarSystemPrompt:
			return calendar, nil
		default:
			return primary, primaryErr
		}
	}}
}

func newTestOrchestrator(client llm.Client, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(logging.Nop())}, opts...)
	return New(testConfig(), client, fixtureStore(1), opts...)
}

func TestGenerateReplyShortReplySkipsSecondaryStage(t *testing.T) {
	mock := scripted("Halo! Ada yang bisa aku bantu?", nil, nil, calendarJSON)
	o := newTestOrchestrator(mock)

	res, err := o.GenerateReply(context.Background(), domain.GenerationRequest{Message: "Hai, aku mau diet"})
	require.NoError(t, err)
	assert.Equal(t, "Halo! Ada yang bisa aku bantu?", res.Reply)
	assert.Equal(t, domain.LanguageIndonesian, res.Language)
	assert.Empty(t, res.MealPlanSummary)
	assert.Nil(t, res.MealCalendar)
	assert.Nil(t, res.NutritionSummary)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "llama3.2:3b", calls[0].Options.Model)
	assert.InDelta(t, 0.7, calls[0].Options.Temperature, 1e-9)
	assert.Equal(t, 2048, calls[0].Options.MaxTokens)
	assert.True(t, strings.HasPrefix(calls[0].Prompt, "[PENTING: JAWAB DALAM BAHASA INDONESIA]"))
}

func TestGenerateReplyPlanShapedRunsSummaryAndCalendar(t *testing.T) {
	mock := scripted(longPlan, nil, nil, "```json\n"+calendarJSON+"\n```")
	o := newTestOrchestrator(mock)

	res, err := o.GenerateReply(context.Background(), domain.GenerationRequest{
		Message: "Buatkan meal plan 7 hari",
		Profile: &testProfile,
	})
	require.NoError(t, err)
	assert.Equal(t, longPlan, res.Reply)
	assert.Equal(t, "Ringkasan: sekitar 1900 kkal per hari.", res.MealPlanSummary)
	require.Len(t, res.MealCalendar, 2)
	assert.Equal(t, domain.Tue, res.MealCalendar[1].Day)

	require.NotNil(t, res.NutritionSummary)
	assert.Equal(t, "defisit", res.NutritionSummary.GoalType)
	assert.InDelta(t, -500, res.NutritionSummary.Adjustment, 1e-9)

	var secondary int
	for _, call := range mock.Calls() {
		if call.SystemPrompt == SummarizationSystemPrompt {
			secondary++
			assert.Equal(t, "qwen2.5:7b-instruct-q5_K_M", call.Options.Model)
			assert.InDelta(t, 0.3, call.Options.Temperature, 1e-9)
			assert.Contains(t, call.Prompt, "Target Kalori Ideal: 2046 kkal")
		}
		if call.SystemPrompt == CalendarSystemPrompt {
			secondary++
			assert.InDelta(t, 0.1, call.Options.Temperature, 1e-9)
		}
	}
	assert.Equal(t, 2, secondary)
}

func TestGenerateReplySecondaryFailuresDegrade(t *testing.T) {
	mock := scripted(longPlan, nil, apperrors.NewModelUnavailable("qwen", 404, false, nil), "not json at all")
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	o := newTestOrchestrator(mock, WithMetrics(metrics))

	res, err := o.GenerateReply(context.Background(), domain.GenerationRequest{Message: "7 day meal plan please"})
	require.NoError(t, err)
	assert.Equal(t, longPlan, res.Reply)
	assert.Empty(t, res.MealPlanSummary)
	assert.NotNil(t, res.MealCalendar)
	assert.Empty(t, res.MealCalendar)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.stageFailures.WithLabelValues(StageSummary, string(apperrors.KindModelUnavailable))), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.stageFailures.WithLabelValues(StageCalendar, string(apperrors.KindExtractionParse))), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.planReplies), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.activeReplies), 1e-9)
}

func TestGenerateReplyOversizedProfileDropsOnlyNutritionSummary(t *testing.T) {
	mock := scripted("Oke, ini sarannya.", nil, nil, calendarJSON)
	o := newTestOrchestrator(mock)

	profile := testProfile
	profile.WeightKG = 1e308
	res, err := o.GenerateReply(context.Background(), domain.GenerationRequest{Message: "Saran sarapan dong", Profile: &profile})
	require.NoError(t, err)
	assert.Equal(t, "Oke, ini sarannya.", res.Reply)
	assert.Nil(t, res.NutritionSummary)
}

func TestGenerateReplyPrimaryFailureIsFatal(t *testing.T) {
	mock := scripted("", apperrors.NewModelUnavailable("llama3.2:3b", 0, true, nil), nil, "")
	o := newTestOrchestrator(mock)

	_, err := o.GenerateReply(context.Background(), domain.GenerationRequest{Message: "hi", Profile: &testProfile})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrModelUnavailable)
	assert.Len(t, mock.Calls(), 1)
}

func TestGenerateReplyTimeoutIsModelUnavailable(t *testing.T) {
	mock := &llm.MockClient{Respond: func(llm.MockCall) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "", context.DeadlineExceeded
	}}
	cfg := testConfig()
	cfg.CallTimeout = 10 * time.Millisecond
	o := New(cfg, mock, fixtureStore(1), WithLogger(logging.Nop()))

	_, err := o.GenerateReply(context.Background(), domain.GenerationRequest{Message: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrModelUnavailable)
}

func TestGenerateReplyAttachesFoodContextAndDirectives(t *testing.T) {
	mock := scripted("ok", nil, nil, "")
	o := newTestOrchestrator(mock)

	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "second"},
	}
	_, err := o.GenerateReply(context.Background(), domain.GenerationRequest{
		Message:       "Give me 3 chicken food ideas",
		History:       history,
		ModelOverride: "mistral",
	})
	require.NoError(t, err)

	call := mock.Calls()[0]
	assert.Equal(t, "mistral", call.Options.Model)
	require.Len(t, call.Turns, 4)
	assert.Equal(t, domain.RoleSystem, call.Turns[0].Role)
	assert.Equal(t, history, call.Turns[1:3])

	user := call.Turns[3].Content
	assert.True(t, strings.HasPrefix(user, "[IMPORTANT: YOU MUST REPLY IN ENGLISH]\n\n[FORMAT: Use numbered list"))
	assert.Contains(t, user, "Give me 3 chicken food ideas\n\nHere are available foods with nutrition data:")
	assert.Contains(t, user, "**Chicken breast, skinless**")
}

func TestGenerateReplyWithoutRAGSkipsRetrieval(t *testing.T) {
	mock := scripted("ok", nil, nil, "")
	cfg := testConfig()
	cfg.RAGEnabled = false
	o := New(cfg, mock, fixtureStore(1), WithLogger(logging.Nop()))

	_, err := o.GenerateReply(context.Background(), domain.GenerationRequest{Message: "chicken protein food?"})
	require.NoError(t, err)
	assert.NotContains(t, mock.Calls()[0].Prompt, "Here are available foods")
}

func TestGenerateReplyStreamMatchesReply(t *testing.T) {
	mock := scripted("Selamat pagi semua", nil, nil, "")
	o := newTestOrchestrator(mock)

	var sb strings.Builder
	var deltas atomic.Int32
	res, err := o.GenerateReplyStream(context.Background(), domain.GenerationRequest{Message: "pagi"}, func(d string) {
		deltas.Add(1)
		sb.WriteString(d)
	})
	require.NoError(t, err)
	assert.Equal(t, "Selamat pagi semua", res.Reply)
	assert.Equal(t, res.Reply, sb.String())
	assert.Equal(t, int32(3), deltas.Load())
}

func TestComputeMealPlanAppendsSummary(t *testing.T) {
	mock := scripted(longPlan, nil, nil, "")
	o := newTestOrchestrator(mock)

	plan, err := o.ComputeMealPlan(context.Background(), testProfile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plan, longPlan))
	assert.Contains(t, plan, "## 📋 Ringkasan Meal Plan\n\nRingkasan: sekitar 1900 kkal per hari.")

	first := mock.Calls()[0]
	assert.Equal(t, SystemPrompt, first.SystemPrompt)
	assert.Equal(t, 4096, first.Options.MaxTokens)
	assert.Contains(t, first.Prompt, "**Data Makanan yang Tersedia:**")
	assert.Contains(t, first.Prompt, "Chicken breast, skinless")
}

func TestComputeMealPlanSummaryHeadingFollowsProfileLanguage(t *testing.T) {
	mock := scripted(longPlan, nil, nil, "")
	o := newTestOrchestrator(mock)

	profile := testProfile
	profile.Goal = "lose weight"
	plan, err := o.ComputeMealPlan(context.Background(), profile)
	require.NoError(t, err)
	assert.Contains(t, plan, "## 📋 Meal Plan Summary\n\n")
	assert.NotContains(t, plan, "Ringkasan Meal Plan")
}

func TestComputeMealPlanSummaryFailureKeepsPlan(t *testing.T) {
	mock := scripted(longPlan, nil, apperrors.NewGenerationFailed("qwen", 500, "boom", nil), "")
	o := newTestOrchestrator(mock)

	plan, err := o.ComputeMealPlan(context.Background(), testProfile)
	require.NoError(t, err)
	assert.Equal(t, longPlan, plan)
}

func TestComputeMealPlanPrimaryFailure(t *testing.T) {
	mock := scripted("", apperrors.NewGenerationFailed("llama", 500, "boom", nil), nil, "")
	o := newTestOrchestrator(mock)

	_, err := o.ComputeMealPlan(context.Background(), testProfile)
	assert.ErrorIs(t, err, apperrors.ErrGenerationFailed)
}
