package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/llm-chat-service/internal/observability"
)

// fakeOpenAI serves /v1/chat/completions with the given handler and returns
// a client pointed at it.
func fakeOpenAI(t *testing.T, timeout time.Duration, handler http.HandlerFunc) *openAIBackend {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return newOpenAIBackend("test-key", srv.URL+"/v1/", timeout)
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	choices := []map[string]any{}
	if content != "" {
		choices = append(choices, map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		})
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-3.5-turbo",
		"choices": choices,
	})
}

var userHello = []Message{{Role: "user", Content: "hello"}}

func TestLLMService_OpenAI(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	backend := fakeOpenAI(t, time.Second, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeCompletion(w, "hi there")
	})
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc := newLLMService(ProviderOpenAI, backend, "gpt-3.5-turbo", time.Second, 0, metrics)

	answer, err := svc.Complete(context.Background(), CompletionRequest{Messages: userHello})
	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)
	assert.Equal(t, "gpt-3.5-turbo", got.Model, "default model applied")
	assert.Equal(t, userHello, got.Messages)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.UpstreamDurationSeconds))

	_, err = svc.Complete(context.Background(), CompletionRequest{Model: "gpt-4o", Messages: userHello})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
}

func TestLLMService_OpenAIFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeCompletion(w, "")
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"choices": [`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := fakeOpenAI(t, time.Second, tt.handler)
			svc := newLLMService(ProviderOpenAI, backend, "gpt-3.5-turbo", time.Second, 0, nil)

			_, err := svc.Complete(context.Background(), CompletionRequest{Messages: userHello})
			assert.ErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestLLMService_Timeout(t *testing.T) {
	backend := fakeOpenAI(t, 5*time.Second, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	svc := newLLMService(ProviderOpenAI, backend, "gpt-3.5-turbo", 50*time.Millisecond, 0, nil)

	start := time.Now()
	_, err := svc.Complete(context.Background(), CompletionRequest{Messages: userHello})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLLMService_RejectsEmptyInputAndOutput(t *testing.T) {
	backend := &fakeCompleter{answer: "  "}
	svc := newLLMService(ProviderOpenAI, backend, "m", time.Second, 0, nil)

	_, err := svc.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, backend.requests, "nothing sent without messages")

	_, err = svc.Complete(context.Background(), CompletionRequest{Messages: userHello})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestLLMService_BackendError(t *testing.T) {
	svc := newLLMService(ProviderGemini, &fakeCompleter{err: errBoom}, "m", time.Second, 0, nil)

	_, err := svc.Complete(context.Background(), CompletionRequest{Messages: userHello})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "boom")
}

func TestLLMService_RateLimit(t *testing.T) {
	backend := &fakeCompleter{answer: "ok"}
	svc := newLLMService(ProviderOpenAI, backend, "m", 100*time.Millisecond, 1, nil)
	ctx := context.Background()

	_, err := svc.Complete(ctx, CompletionRequest{Messages: userHello})
	require.NoError(t, err)

	// The next token is a second away, beyond the call timeout.
	_, err = svc.Complete(ctx, CompletionRequest{Messages: userHello})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Len(t, backend.requests, 1)
}

func TestToGeminiHistory(t *testing.T) {
	history, last := toGeminiHistory([]Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
	})
	require.NotNil(t, last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("q2")}, last.Parts)

	_, last = toGeminiHistory([]Message{{Role: "assistant", Content: "a"}})
	assert.Nil(t, last)

	_, last = toGeminiHistory(nil)
	assert.Nil(t, last)
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("hello "), genai.Text("world")}},
		}},
	}
	text, err := geminiText(resp)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = geminiText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = geminiText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}}},
	})
	assert.Error(t, err)
}
