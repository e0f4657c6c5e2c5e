package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)
	require.NoError(t, err)
	return c, srv
}

func chatReply(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	})
	return b
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
}

func TestAnalyzeImage_OK(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write(chatReply(`{"milk": 2}`))
	})

	out, err := c.AnalyzeImage(context.Background(), llm.VisionRequest{
		ImageBytes:  []byte("not-really-a-jpeg"),
		ContentType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"milk": 2}`, out)
	assert.Equal(t, "Bearer test-key", gotAuth)

	// default prompt rides along as the system message
	msgs := gotBody["messages"].([]any)
	system := msgs[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], "ingredient")

	// image goes in as a data URL
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	imageURL := parts[0].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.Contains(t, imageURL, "data:image/jpeg;base64,")
}

func TestRunPrompt_OK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatReply("pong"))
	})

	out, err := c.RunPrompt(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
}

func TestComplete_UnauthorizedIsConfiguration(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.RunPrompt(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
}

func TestComplete_RateLimitIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.RunPrompt(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}

func TestComplete_ServerErrorIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.RunPrompt(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}

func TestComplete_RefusalIsValidation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "", "refusal": "no"}, "finish_reason": "stop"},
			},
		})
		_, _ = w.Write(b)
	})

	_, err := c.RunPrompt(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}

func TestComplete_NoChoicesIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.RunPrompt(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}
