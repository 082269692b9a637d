package ai_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"github.com/myrjola/decisionverse/internal/ai"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *ai.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return ai.NewClient(ai.Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: ""}, testhelpers.NewLogger(io.Discard))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_GenerateFeedback(t *testing.T) {
	t.Parallel()
	var got openai.ChatCompletionRequest
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  ai.DefaultModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "  ¡Arriesgado pero brillante, Ann!  "},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})

	text, err := client.GenerateFeedback(context.Background(), models.FeedbackRequest{
		QuestionText: "¿Invertir en propiedades en el metaverso?",
		Decision:     models.DecisionYes,
		Outcome:      models.OutcomeSuccess,
		Nickname:     "Ann",
	})
	require.NoError(t, err)
	require.Equal(t, "¡Arriesgado pero brillante, Ann!", text)

	require.Equal(t, ai.DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	require.Contains(t, got.Messages[0].Content, "SIEMPRE responde en español")
	require.Contains(t, got.Messages[1].Content, "Ann")
	require.Contains(t, got.Messages[1].Content, "¿Invertir en propiedades en el metaverso?")
	require.Contains(t, got.Messages[1].Content, "Decisión del jugador: SÍ")
	require.Contains(t, got.Messages[1].Content, "Resultado: ÉXITO")
}

func TestClient_GenerateFeedbackErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
			},
		},
		{
			name: "blank content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":" "}}]}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newFakeOpenAI(t, tt.handler)
			_, err := client.GenerateFeedback(context.Background(), models.FeedbackRequest{
				QuestionText: "¿Pregunta?",
				Decision:     models.DecisionNo,
				Outcome:      models.OutcomeFail,
				Nickname:     "Ann",
			})
			require.Error(t, err)
		})
	}
}

func TestClient_GenerateImage(t *testing.T) {
	t.Parallel()
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(1, 1, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"created": 1,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(buf.Bytes())}},
		})
	})

	img, err := client.GenerateImage(context.Background(), "una nave espacial")
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	r, _, _, _ := img.At(1, 1).RGBA()
	require.Equal(t, uint32(0xffff), r)
}
