// Package render talks to the external video renderer: outbound webhook
// dispatch and the inbound completion callback.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
)

// Webhook envelope types
const (
	TypeVideoGeneration = "video_generation"
	TypeImagePreview    = "image_preview"
)

// DefaultRetryAfter is used when a 429 response carries no Retry-After header.
const DefaultRetryAfter = 60

// Envelope is the webhook body posted to the renderer.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// VideoPayload asks the renderer to produce a video from a MulmoScript.
type VideoPayload struct {
	VideoID    uuid.UUID       `json:"video_id"`
	StoryID    uuid.UUID       `json:"story_id"`
	UID        uuid.UUID       `json:"uid"`
	Title      string          `json:"title"`
	TextRaw    string          `json:"text_raw"`
	ScriptJSON json.RawMessage `json:"script_json"`
}

// PreviewPayload asks the renderer for preview images and face detection.
type PreviewPayload struct {
	VideoID    uuid.UUID       `json:"video_id"`
	WorkflowID uuid.UUID       `json:"workflow_id"`
	StoryID    uuid.UUID       `json:"story_id"`
	UID        uuid.UUID       `json:"uid"`
	ScriptJSON json.RawMessage `json:"script_json,omitempty"`
}

// Result is the renderer's synchronous answer to a dispatch.
type Result struct {
	StatusCode int
	RetryAfter int // seconds, only meaningful on 429
	Body       string
}

// OK reports a 2xx response.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RateLimited reports renderer throttling.
func (r *Result) RateLimited() bool {
	return r.StatusCode == http.StatusTooManyRequests
}

// Dispatcher posts webhook envelopes to the configured renderer URL.
type Dispatcher struct {
	url    string
	secret string
	client *http.Client
}

func NewDispatcher(cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		url:    cfg.RendererURL(),
		secret: cfg.WebhookSecret,
		client: &http.Client{Timeout: cfg.WebhookTimeout},
	}
}

// Dispatch fires the webhook. A non-nil error means the request never got an
// HTTP answer (network failure, timeout); otherwise the Result carries the
// renderer's status code and the caller decides what to do with non-2xx.
// There is no automatic retry here: stuck jobs are swept by the scheduler.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) (*Result, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.secret != "" {
		req.Header.Set("X-Webhook-Secret", d.secret)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	// Keep a snippet of the body for the stored error message
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	result := &Result{
		StatusCode: resp.StatusCode,
		Body:       string(snippet),
	}
	if result.RateLimited() {
		result.RetryAfter = DefaultRetryAfter
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				result.RetryAfter = secs
			}
		}
	}

	log.Info().
		Str("type", env.Type).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("dispatched renderer webhook")

	return result, nil
}
