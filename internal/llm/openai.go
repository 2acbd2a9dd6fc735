package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/logging"
)

// openAIClient speaks the OpenAI-compatible /v1/chat/completions protocol
// served by vLLM, LM Studio, llama.cpp and hosted providers.
type openAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logging.Logger
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		Delta        openAIMessage `json:"delta"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// NewOpenAIClient talks to an OpenAI-compatible endpoint. baseURL should
// include the version prefix, e.g. https://api.openai.com/v1.
func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration) StreamingClient {
	return newOpenAIClient(baseURL, apiKey, timeout)
}

func newOpenAIClient(baseURL, apiKey string, timeout time.Duration) *openAIClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &openAIClient{
		baseURL:    base,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("openai"),
	}
}

func (c *openAIClient) Generate(ctx context.Context, prompt, systemPrompt string, opts Options) (string, error) {
	return c.Chat(ctx, generateTurns(prompt, systemPrompt), opts)
}

func (c *openAIClient) Chat(ctx context.Context, turns []domain.ConversationTurn, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	resp, err := c.post(ctx, c.buildRequest(turns, opts, false))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "malformed response", err)
	}
	if decoded.Error != nil {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, decoded.Error.Message, nil)
	}
	if len(decoded.Choices) == 0 {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "no choices returned", nil)
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "empty response", nil)
	}
	c.logger.Debug("openai chat done: model=%s prompt_tokens=%d completion_tokens=%d",
		opts.Model, decoded.Usage.PromptTokens, decoded.Usage.CompletionTokens)
	return content, nil
}

// ChatStream consumes server-sent events until the [DONE] marker.
func (c *openAIClient) ChatStream(ctx context.Context, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	resp, err := c.post(ctx, c.buildRequest(turns, opts, true))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var (
		sb   strings.Builder
		done bool
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			done = true
			break
		}
		var chunk openAIResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "malformed stream chunk", err)
		}
		if chunk.Error != nil {
			return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, chunk.Error.Message, nil)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			sb.WriteString(choice.Delta.Content)
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", transportError(opts.Model, err)
	}
	if !done {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "stream ended before completion", nil)
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "empty response", nil)
	}
	return content, nil
}

func (c *openAIClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build models request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewModelUnavailable("", resp.StatusCode, apperrors.IsTransientHTTPStatus(resp.StatusCode), fmt.Errorf("list models: %s", strings.TrimSpace(string(body))))
	}
	var decoded openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewModelUnavailable("", resp.StatusCode, false, fmt.Errorf("decode models: %w", err))
	}
	models := make([]ModelInfo, 0, len(decoded.Data))
	for _, m := range decoded.Data {
		if id := strings.TrimSpace(m.ID); id != "" {
			models = append(models, ModelInfo{Name: id, Family: m.OwnedBy})
		}
	}
	return models, nil
}

func (c *openAIClient) buildRequest(turns []domain.ConversationTurn, opts Options, stream bool) openAIRequest {
	messages := make([]openAIMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openAIMessage{Role: string(t.Role), Content: t.Content})
	}
	return openAIRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
}

func (c *openAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *openAIClient) post(ctx context.Context, payload openAIRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(payload.Model, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var decoded openAIResponse
		msg := string(raw)
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return nil, statusError(payload.Model, resp.StatusCode, msg)
	}
	return resp, nil
}
