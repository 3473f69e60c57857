package content_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alkime/followup/internal/content"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMessage struct {
	System []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
}

func anthropicServer(t *testing.T, reply string, got *capturedMessage) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		if got != nil {
			assert.NoError(t, json.Unmarshal(body, got))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_01",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-sonnet-4-5-20250929",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []map[string]any{
				{"type": "text", "text": reply},
			},
			"usage": map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestWriter(srv *httptest.Server) *content.Writer {
	return content.NewWriter("test-key", "", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
}

func TestWriter_DraftActionPlan(t *testing.T) {
	t.Parallel()

	var got capturedMessage
	srv := anthropicServer(t, "  - Buy milk (Unassigned)\n", &got)

	draft, err := newTestWriter(srv).DraftActionPlan(context.Background(), "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, "- Buy milk (Unassigned)", draft)

	require.Len(t, got.System, 1)
	assert.Equal(t, content.DraftSystemPrompt, got.System[0].Text)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content[0].Text, "MEETING NOTES:\nBuy milk")
	assert.InDelta(t, 0.2, got.Temperature, 0.001)
}

func TestWriter_Polish(t *testing.T) {
	t.Parallel()

	var got capturedMessage
	srv := anthropicServer(t, "Final plan...", &got)

	polished, err := newTestWriter(srv).Polish(context.Background(), "edited plan")
	require.NoError(t, err)
	assert.Equal(t, "Final plan...", polished)
	assert.Equal(t, content.PolishSystemPrompt, got.System[0].Text)
	assert.Contains(t, got.Messages[0].Content[0].Text, "ACTION PLAN (USER-EDITED):\nedited plan")
}

func TestWriter_EmptyResponse(t *testing.T) {
	t.Parallel()

	srv := anthropicServer(t, "   ", nil)

	_, err := newTestWriter(srv).DraftActionPlan(context.Background(), "notes")
	assert.ErrorIs(t, err, content.ErrEmptyResponse)
}

func TestWriter_MissingAPIKey(t *testing.T) {
	t.Parallel()

	w := content.NewWriter("", "")
	_, err := w.Polish(context.Background(), "plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestWriter_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestWriter(srv).DraftActionPlan(context.Background(), "notes")
	assert.Error(t, err)
}
