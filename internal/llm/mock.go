package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/darrellrafa/Nutribot/internal/domain"
)

// MockCall records one request seen by MockClient.
type MockCall struct {
	Prompt       string
	SystemPrompt string
	Turns        []domain.ConversationTurn
	Options      Options
}

// MockResponse is a scripted answer.
type MockResponse struct {
	Content string
	Err     error
}

// MockClient is a scripted Gateway for tests. Respond, when set, takes
// precedence over the queued Responses; with neither it echoes "ok".
type MockClient struct {
	mu        sync.Mutex
	Responses []MockResponse
	Respond   func(call MockCall) (string, error)
	Models    []ModelInfo
	ModelsErr error
	calls     []MockCall
}

// NewMockClient queues responses in order.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{Responses: responses}
}

func (m *MockClient) Generate(ctx context.Context, prompt, systemPrompt string, opts Options) (string, error) {
	return m.answer(ctx, MockCall{Prompt: prompt, SystemPrompt: systemPrompt, Turns: generateTurns(prompt, systemPrompt), Options: opts})
}

func (m *MockClient) Chat(ctx context.Context, turns []domain.ConversationTurn, opts Options) (string, error) {
	copied := append([]domain.ConversationTurn(nil), turns...)
	call := MockCall{Turns: copied, Options: opts}
	for _, t := range copied {
		switch t.Role {
		case domain.RoleSystem:
			if call.SystemPrompt == "" {
				call.SystemPrompt = t.Content
			}
		case domain.RoleUser:
			call.Prompt = t.Content
		}
	}
	return m.answer(ctx, call)
}

// ChatStream splits the scripted reply on spaces to emulate deltas.
func (m *MockClient) ChatStream(ctx context.Context, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error) {
	reply, err := m.Chat(ctx, turns, opts)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		words := strings.SplitAfter(reply, " ")
		for _, w := range words {
			if w != "" {
				onDelta(w)
			}
		}
	}
	return reply, nil
}

func (m *MockClient) ListModels(context.Context) ([]ModelInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelInfo(nil), m.Models...), m.ModelsErr
}

// Calls returns a snapshot of recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

func (m *MockClient) answer(ctx context.Context, call MockCall) (string, error) {
	if err := call.Options.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	respond := m.Respond
	var scripted *MockResponse
	if respond == nil && len(m.Responses) > 0 {
		next := m.Responses[0]
		m.Responses = m.Responses[1:]
		scripted = &next
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch {
	case respond != nil:
		return respond(call)
	case scripted != nil:
		return scripted.Content, scripted.Err
	default:
		return "ok", nil
	}
}
