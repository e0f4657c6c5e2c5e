package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/llm"
)

// AnalyzeImage implements llm.VisionClient via chat/completions with the
// image inlined as a base64 data URL.
func (c *Client) AnalyzeImage(ctx context.Context, req llm.VisionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	prompt := req.Prompt
	if prompt == "" {
		prompt = llm.DefaultSystemPrompt
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(req.ImageBytes)

	c.logger.Info("llm.vision.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image_bytes", len(req.ImageBytes),
		"content_type", contentType,
		"custom_prompt", req.Prompt != "",
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": prompt},
			{"role": "user", "content": []map[string]any{
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
		},
	}

	content, err := c.complete(ctx, rid, body)
	if err != nil {
		c.logger.Error("llm.vision.failed",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	c.logger.Info("llm.vision.ok",
		"req_id", rid, "reply_bytes", len(content), "elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

// RunPrompt sends a text-only prompt, used by categorization and the probe.
func (c *Client) RunPrompt(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.prompt.start", "req_id", rid, "model", c.cfg.Model, "prompt_bytes", len(prompt))

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	content, err := c.complete(ctx, rid, body)
	if err != nil {
		c.logger.Error("llm.prompt.failed",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	c.logger.Info("llm.prompt.ok",
		"req_id", rid, "reply_bytes", len(content), "elapsed_ms", time.Since(start).Milliseconds())
	return content, nil
}

func (c *Client) complete(ctx context.Context, rid string, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, status, err := c.post(ctx, endpoint, body)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", common.TransientError(fmt.Sprintf("decode openai response (status %d)", status), err)
	}
	if len(cc.Choices) == 0 {
		return "", common.TransientError("no choices in openai response", nil)
	}
	choice := cc.Choices[0]
	if choice.Message.Refusal != "" {
		return "", common.ValidationError("model refused: "+choice.Message.Refusal, nil)
	}
	if choice.FinishReason == "content_filter" {
		return "", common.ValidationError("model reply blocked by content filter", nil)
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", common.ValidationError("model returned empty content", nil)
	}
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// timeouts, DNS, connection resets
		return nil, 0, common.TransientError("openai request failed", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("llm.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, resp.StatusCode, nil
	}

	msg := fmt.Sprintf("openai status %d: %s", resp.StatusCode, truncateBody(raw))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, common.ConfigurationError(msg, nil)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, resp.StatusCode, common.TransientError(msg, nil)
	default:
		// 400s for malformed payloads: not retryable
		return nil, resp.StatusCode, common.ValidationError(msg, nil)
	}
}

func truncateBody(raw []byte) string {
	const max = 512
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "…"
}
