package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/darrellrafa/Nutribot/internal/chatstore"
	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/nutrition"
	"github.com/darrellrafa/Nutribot/internal/observability"
	"github.com/darrellrafa/Nutribot/internal/rag"
	"github.com/darrellrafa/Nutribot/internal/utils/id"
)

// storedHistoryWindow is how many stored messages seed a turn when the
// client sends a session id but no history.
const storedHistoryWindow = 20

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.badRequest(c, "Message is required")
		return
	}

	genReq, sessionID := s.prepareGeneration(c, req)
	result, err := s.assistant.GenerateReply(c.Request.Context(), genReq)
	if err != nil {
		s.chatFailed(c, rag.DetectLanguage(message), err)
		return
	}
	s.persistTurn(c, sessionID, message, result)
	c.JSON(http.StatusOK, chatResponse{GenerationResult: result, SessionID: sessionID})
}

// prepareGeneration builds the orchestrator request. For a signed-in caller
// it falls back to the stored profile and stored session history, and
// assigns a session id when none was sent.
func (s *Server) prepareGeneration(c *gin.Context, req chatRequest) (domain.GenerationRequest, string) {
	ctx := c.Request.Context()
	genReq := domain.GenerationRequest{
		Message:       strings.TrimSpace(req.Message),
		Profile:       req.Context.profile(),
		History:       conversationTurns(req.History),
		ModelOverride: strings.TrimSpace(req.Model),
	}
	sessionID := strings.TrimSpace(req.SessionID)

	userID, ok := currentUserID(c)
	if !ok {
		return genReq, sessionID
	}
	if genReq.Profile == nil {
		if user, err := s.chats.UserByID(ctx, userID); err == nil {
			genReq.Profile = user.Profile()
		} else {
			s.logger.Warn("load profile for user %d: %v", userID, err)
		}
	}
	if len(genReq.History) == 0 && sessionID != "" {
		stored, err := s.chats.History(ctx, userID, sessionID, storedHistoryWindow)
		if err != nil {
			s.logger.Warn("load history for session %s: %v", sessionID, err)
		}
		genReq.History = chatstore.Turns(stored)
	}
	if sessionID == "" {
		sessionID = id.NewSessionID()
	}
	c.Request = c.Request.WithContext(observability.ContextWithSessionID(ctx, sessionID))
	return genReq, sessionID
}

// persistTurn stores the exchange for a signed-in caller. Failures are
// logged and never fail the reply.
func (s *Server) persistTurn(c *gin.Context, sessionID, message string, result domain.GenerationResult) {
	userID, ok := currentUserID(c)
	if !ok || sessionID == "" {
		return
	}
	_, err := s.chats.AppendMessages(c.Request.Context(), userID, []chatstore.Message{
		{Message: message, Sender: chatstore.SenderUser, SessionID: sessionID},
		{Message: result.Reply, Sender: chatstore.SenderAI, SessionID: sessionID, ModelUsed: result.Model},
	})
	if err != nil {
		s.logger.Warn("persist chat turn for user %d session %s: %v", userID, sessionID, err)
	}
}

// chatFailed answers a failed turn with the localized apology in place of
// a reply.
func (s *Server) chatFailed(c *gin.Context, lang domain.Language, err error) {
	kind := apperrors.KindOf(err)
	s.logger.Error("chat generation failed: %v", err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusForKind(kind), errorResponse{
		Error: publicMessage(err),
		Kind:  kind,
		Reply: apology(lang),
	})
}

type mealPlanRequest struct {
	profileRequest
	Profile *profileRequest `json:"profile"`
}

func (s *Server) handleMealPlan(c *gin.Context) {
	var req mealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	profile := req.Profile.profile()
	if profile == nil {
		profile = req.profileRequest.profile()
	}
	if profile == nil {
		if userID, ok := currentUserID(c); ok {
			if user, err := s.chats.UserByID(c.Request.Context(), userID); err == nil {
				profile = user.Profile()
			}
		}
	}
	if profile == nil {
		s.badRequest(c, "profile is required")
		return
	}

	plan, err := s.assistant.ComputeMealPlan(c.Request.Context(), *profile)
	if err != nil {
		s.chatFailed(c, rag.ProfileLanguage(profile), err)
		return
	}

	resp := gin.H{"meal_plan": plan}
	if profile.IsComplete() {
		if summary, sumErr := nutrition.ComputeSummary(nutrition.InputFromProfile(*profile, domain.MacroBalanced)); sumErr == nil && nutrition.Finite(summary) {
			resp["nutrition_summary"] = summary
		}
	}
	c.JSON(http.StatusOK, resp)
}

type nutritionRequest struct {
	profileRequest
	MacroSplit string `json:"macro_split"`
}

// missingField names the first required calculator field absent from req.
func (r nutritionRequest) missingField() string {
	switch {
	case !r.Age.set:
		return "age"
	case strings.TrimSpace(r.Gender) == "":
		return "gender"
	case !r.Height.set:
		return "height"
	case !r.Weight.set:
		return "weight"
	case strings.TrimSpace(r.ActivityLevel) == "":
		return "activity_level"
	case strings.TrimSpace(r.Goal) == "":
		return "goal"
	}
	return ""
}

func (s *Server) handleNutrition(c *gin.Context) {
	var req nutritionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body")
		return
	}
	if field := req.missingField(); field != "" {
		s.badRequest(c, "Missing required field: %s", field)
		return
	}
	gender, ok := domain.ParseGender(req.Gender)
	if !ok {
		s.badRequest(c, "gender must be male or female")
		return
	}
	activity, ok := domain.ParseActivityLevel(req.ActivityLevel)
	if !ok {
		s.badRequest(c, "unknown activity_level %q", req.ActivityLevel)
		return
	}

	summary, err := nutrition.ComputeSummary(nutrition.Input{
		WeightKG:      req.Weight.float(),
		HeightCM:      req.Height.float(),
		Age:           req.Age.int(),
		Gender:        gender,
		ActivityLevel: activity,
		Goal:          req.Goal,
		MacroSplit:    nutrition.ParseMacroSplit(req.MacroSplit),
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
