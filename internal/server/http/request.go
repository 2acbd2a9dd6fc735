package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

// flexNumber accepts 70, 70.5, "70" and "" from browser forms.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = flexNumber{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*n = flexNumber{}
			return nil
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%q is not a number", raw)
		}
		*n = flexNumber{value: v, set: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = flexNumber{value: v, set: true}
	return nil
}

func (n flexNumber) float() float64 { return n.value }

// int saturates instead of relying on an out-of-range float conversion.
func (n flexNumber) int() int {
	switch {
	case n.value >= math.MaxInt32:
		return math.MaxInt32
	case n.value <= math.MinInt32:
		return math.MinInt32
	}
	return int(n.value)
}

// flexList accepts ["nuts", "milk"] as well as "nuts, milk".
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var items []string
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items = strings.Split(raw, ",")
	} else if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

// profileRequest is the profile shape the frontend posts.
type profileRequest struct {
	Age           flexNumber `json:"age"`
	Gender        string     `json:"gender"`
	Height        flexNumber `json:"height"`
	Weight        flexNumber `json:"weight"`
	Goal          string     `json:"goal"`
	ActivityLevel string     `json:"activity_level"`
	Allergies     flexList   `json:"allergies"`
	Preferences   flexList   `json:"preferences"`
	Days          flexNumber `json:"days"`
}

func (p *profileRequest) empty() bool {
	if p == nil {
		return true
	}
	return !p.Age.set && !p.Height.set && !p.Weight.set && !p.Days.set &&
		strings.TrimSpace(p.Gender) == "" && strings.TrimSpace(p.Goal) == "" &&
		strings.TrimSpace(p.ActivityLevel) == "" && len(p.Allergies) == 0 && len(p.Preferences) == 0
}

// profile converts the request leniently. Unrecognised gender or activity
// values are dropped, which leaves the profile incomplete rather than
// failing the request.
func (p *profileRequest) profile() *domain.UserProfile {
	if p.empty() {
		return nil
	}
	out := &domain.UserProfile{
		Age:         p.Age.int(),
		HeightCM:    p.Height.float(),
		WeightKG:    p.Weight.float(),
		Goal:        strings.TrimSpace(p.Goal),
		Allergies:   []string(p.Allergies),
		Preferences: []string(p.Preferences),
		Days:        p.Days.int(),
	}
	if g, ok := domain.ParseGender(p.Gender); ok {
		out.Gender = g
	}
	if a, ok := domain.ParseActivityLevel(p.ActivityLevel); ok {
		out.ActivityLevel = a
	}
	return out
}

// historyTurn is one client-side history entry. Clients label the
// assistant as "assistant", "ai" or "bot".
type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// conversationTurns keeps user and assistant turns. System turns from the
// client are dropped.
func conversationTurns(history []historyTurn) []domain.ConversationTurn {
	turns := make([]domain.ConversationTurn, 0, len(history))
	for _, h := range history {
		content := strings.TrimSpace(h.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(h.Role)) {
		case "user":
			turns = append(turns, domain.ConversationTurn{Role: domain.RoleUser, Content: content})
		case "assistant", "ai", "bot", "model":
			turns = append(turns, domain.ConversationTurn{Role: domain.RoleAssistant, Content: content})
		}
	}
	return turns
}

type chatRequest struct {
	Message   string          `json:"message"`
	Context   *profileRequest `json:"context"`
	History   []historyTurn   `json:"history"`
	Model     string          `json:"model"`
	SessionID string          `json:"session_id"`
}

type chatResponse struct {
	domain.GenerationResult
	SessionID string `json:"session_id,omitempty"`
}
