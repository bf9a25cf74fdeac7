package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"gwi.com/llm-chat-service/internal/config"
	"gwi.com/llm-chat-service/internal/observability"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Completer is the outbound port to a chat-completion API. It returns the
// content of the first choice.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// LLMService wraps a provider backend with the configured default model, a
// per-call timeout and an optional rate limit. Every failure it returns
// wraps ErrUpstream.
type LLMService struct {
	backend      Completer
	provider     string
	defaultModel string
	timeout      time.Duration
	limiter      *rate.Limiter
	metrics      *observability.Metrics
	closer       func() error
}

func NewLLMService(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*LLMService, error) {
	var backend Completer
	var closer func() error

	switch cfg.LLMProvider {
	case ProviderOpenAI:
		backend = newOpenAIBackend(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMTimeout)
	case ProviderGemini:
		gemini, err := newGeminiBackend(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		backend = gemini
		closer = gemini.client.Close
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}

	s := newLLMService(cfg.LLMProvider, backend, cfg.LLMModel, cfg.LLMTimeout, cfg.LLMRateLimit, metrics)
	s.closer = closer
	slog.Info("LLM client configured", "provider", cfg.LLMProvider, "model", cfg.LLMModel, "timeout", cfg.LLMTimeout)
	return s, nil
}

func newLLMService(provider string, backend Completer, defaultModel string, timeout time.Duration, ratePerSecond float64, metrics *observability.Metrics) *LLMService {
	s := &LLMService{
		backend:      backend,
		provider:     provider,
		defaultModel: defaultModel,
		timeout:      timeout,
		metrics:      metrics,
	}
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return s
}

func (s *LLMService) Close() {
	if s.closer == nil {
		return
	}
	if err := s.closer(); err != nil {
		slog.Error("Error closing LLM client", "provider", s.provider, "error", err)
	}
}

func (s *LLMService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("%w: no messages to send", ErrUpstream)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limit wait: %v", ErrUpstream, err)
		}
	}

	start := time.Now()
	answer, err := s.backend.Complete(ctx, req)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errors.New("empty completion")
	}
	s.metrics.ObserveUpstream(s.provider, time.Since(start), err)
	if err != nil {
		slog.Error("Chat completion failed", "provider", s.provider, "model", req.Model, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return answer, nil
}

type openAIBackend struct {
	client *openai.Client
}

func newOpenAIBackend(apiKey, baseURL string, timeout time.Duration) *openAIBackend {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	return &openAIBackend{client: openai.NewClientWithConfig(clientConfig)}
}

func (b *openAIBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiBackend struct {
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, apiKey string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiBackend{client: client}, nil
}

func (b *geminiBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := b.client.GenerativeModel(req.Model)

	history, last := toGeminiHistory(req.Messages)
	if last == nil {
		return "", errors.New("last message is not from 'user'")
	}

	session := model.StartChat()
	session.History = history
	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}
	return geminiText(resp)
}

// toGeminiHistory splits messages into prior history and the final user turn.
// Gemini calls the assistant role "model".
func toGeminiHistory(messages []Message) ([]*genai.Content, *genai.Content) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role == openai.ChatMessageRoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	if len(contents) == 0 || contents[len(contents)-1].Role != openai.ChatMessageRoleUser {
		return nil, nil
	}
	return contents[:len(contents)-1], contents[len(contents)-1]
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini response was empty or had no valid candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return "", errors.New("gemini response had no text parts")
	}
	return text.String(), nil
}
