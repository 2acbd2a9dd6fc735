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

// DefaultOllamaBaseURL is where a local Ollama server listens.
const DefaultOllamaBaseURL = "http://localhost:11434"

type ollamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Model   string `json:"model"`
		Size    int64  `json:"size"`
		Details struct {
			Family            string `json:"family"`
			ParameterSize     string `json:"parameter_size"`
			QuantizationLevel string `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

// NewOllamaClient talks to Ollama's native /api endpoints.
func NewOllamaClient(baseURL string, timeout time.Duration) StreamingClient {
	return newOllamaClient(baseURL, timeout)
}

func newOllamaClient(baseURL string, timeout time.Duration) *ollamaClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultOllamaBaseURL
	}
	if !strings.HasSuffix(base, "/api") {
		base += "/api"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ollamaClient{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("ollama"),
	}
}

func (c *ollamaClient) Generate(ctx context.Context, prompt, systemPrompt string, opts Options) (string, error) {
	return c.Chat(ctx, generateTurns(prompt, systemPrompt), opts)
}

func (c *ollamaClient) Chat(ctx context.Context, turns []domain.ConversationTurn, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	resp, err := c.post(ctx, c.buildRequest(turns, opts, false))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "malformed response", err)
	}
	if decoded.Error != "" {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, decoded.Error, nil)
	}
	content := strings.TrimSpace(decoded.Message.Content)
	if content == "" {
		return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "empty response", nil)
	}
	c.logger.Debug("ollama chat done: model=%s prompt_tokens=%d completion_tokens=%d reason=%s",
		opts.Model, decoded.PromptEvalCount, decoded.EvalCount, decoded.DoneReason)
	return content, nil
}

func (c *ollamaClient) ChatStream(ctx context.Context, turns []domain.ConversationTurn, opts Options, onDelta func(string)) (string, error) {
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
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, "malformed stream chunk", err)
		}
		if chunk.Error != "" {
			return "", apperrors.NewGenerationFailed(opts.Model, resp.StatusCode, chunk.Error, nil)
		}
		if delta := chunk.Message.Content; delta != "" {
			sb.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		if chunk.Done {
			done = true
			break
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

// ListModels reads /api/tags and normalizes each entry, preferring "name"
// and falling back to "model".
func (c *ollamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewModelUnavailable("", resp.StatusCode, apperrors.IsTransientHTTPStatus(resp.StatusCode), fmt.Errorf("list models: %s", strings.TrimSpace(string(body))))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, apperrors.NewModelUnavailable("", resp.StatusCode, false, fmt.Errorf("decode tags: %w", err))
	}
	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			name = strings.TrimSpace(m.Model)
		}
		if name == "" {
			continue
		}
		models = append(models, ModelInfo{
			Name:          name,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
			SizeBytes:     m.Size,
		})
	}
	return models, nil
}

func (c *ollamaClient) buildRequest(turns []domain.ConversationTurn, opts Options, stream bool) ollamaRequest {
	messages := make([]ollamaMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, ollamaMessage{Role: string(t.Role), Content: t.Content})
	}
	return ollamaRequest{
		Model:    opts.Model,
		Messages: messages,
		Stream:   stream,
		Options: map[string]any{
			"temperature": opts.Temperature,
			"num_predict": opts.MaxTokens,
		},
	}
}

func (c *ollamaClient) post(ctx context.Context, payload ollamaRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("ollama request: model=%s messages=%d stream=%t", payload.Model, len(payload.Messages), payload.Stream)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(payload.Model, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var decoded ollamaResponse
		msg := string(raw)
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return nil, statusError(payload.Model, resp.StatusCode, msg)
	}
	return resp, nil
}
