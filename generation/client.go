package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/mulmo"
)

// completer abstracts the LLM call so tests can stub it.
type completer interface {
	Complete(ctx context.Context, prompt, schemaName string, schema interface{}) (string, error)
}

type openaiCompleter struct {
	client openai.Client
	model  openai.ChatModel
}

func (o *openaiCompleter) Complete(ctx context.Context, prompt, schemaName string, schema interface{}) (string, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        schemaName,
		Description: openai.String("Structured data response"),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}

	chatCompletion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: o.model,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	})

	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(chatCompletion.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	raw := chatCompletion.Choices[0].Message.Content
	if raw == "" {
		return "", fmt.Errorf("OpenAI returned empty response. Finish reason: %s", chatCompletion.Choices[0].FinishReason)
	}

	return raw, nil
}

// Client produces structured scripts and per-step previews from story text.
type Client struct {
	completer completer
	metrics   *Metrics
	retries   int
}

// NewClient builds a client backed by the OpenAI API.
func NewClient(cfg *config.Config, metrics *Metrics) *Client {
	return &Client{
		completer: &openaiCompleter{
			client: openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey)),
			model:  openai.ChatModel(cfg.OpenAIModel),
		},
		metrics: metrics,
		retries: cfg.GenerationMaxAttempts,
	}
}

// IsRateLimited reports whether the error is provider throttling; callers
// surface these as 429 with a retry hint.
func IsRateLimited(err error) bool {
	var apierr *openai.Error
	return errors.As(err, &apierr) && apierr.StatusCode == 429
}

// GenerateScript generates a full MulmoScript from the request. It retries
// on malformed or schema-invalid output and falls back to the deterministic
// template on exhaustion, so it always returns a valid script.
func (c *Client) GenerateScript(ctx context.Context, req Request) *mulmo.Script {
	start := time.Now()
	defer func() { c.metrics.recordRequest(time.Since(start)) }()

	prompt := buildScriptPrompt(req)

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.metrics.recordRetry()
		}

		raw, err := c.completer.Complete(ctx, prompt, "mulmo_script", scriptResponseSchema)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("script generation call failed")
			c.metrics.recordFailure()
			continue
		}

		var resp scriptResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("script generation returned malformed JSON")
			c.metrics.recordFailure()
			continue
		}

		script := assembleScript(req, resp)
		if errs := mulmo.Validate(script); errs.HasErrors() {
			log.Warn().Str("details", errs.Error()).Int("attempt", attempt).Msg("generated script failed validation")
			c.metrics.recordFailure()
			continue
		}

		return script
	}

	c.metrics.recordFallback()
	log.Warn().Msg("script generation exhausted retries, using fallback template")
	return FallbackScript(req)
}

// assembleScript folds the structured LLM output into a MulmoScript.
func assembleScript(req Request, resp scriptResponse) *mulmo.Script {
	speakers := make(map[string]mulmo.Speaker, len(resp.Characters))
	for _, ch := range resp.Characters {
		speakers[ch.Name] = mulmo.Speaker{VoiceID: ch.VoiceID}
	}

	beats := make([]mulmo.Beat, 0, len(resp.Beats))
	for _, b := range resp.Beats {
		beats = append(beats, mulmo.Beat{
			Speaker:     b.Speaker,
			Text:        b.Text,
			ImagePrompt: b.ImagePrompt,
		})
	}

	lang := req.Language
	if lang != "en" {
		lang = "ja"
	}

	return &mulmo.Script{
		Mulmocast: mulmo.Meta{Version: mulmo.Version},
		Title:     resp.Title,
		Lang:      lang,
		SpeechParams: mulmo.SpeechParams{
			Provider: "openai",
			Speakers: speakers,
		},
		ImageParams: mulmo.ImageParams{Style: req.Style},
		Beats:       beats,
	}
}

// PreviewInput carries the accumulated workflow context a preview call needs.
type PreviewInput struct {
	Request
	Title             string
	CharactersSummary string
	ScenesSummary     string
}

// GeneratePreview generates the suggested content for workflow step n
// (2..6). Unlike GenerateScript it returns errors to the caller: a failed
// preview must not advance the workflow.
func (c *Client) GeneratePreview(ctx context.Context, step int, in PreviewInput) (map[string]interface{}, error) {
	start := time.Now()
	defer func() { c.metrics.recordRequest(time.Since(start)) }()

	var (
		prompt string
		name   string
		schema interface{}
		out    interface{}
	)

	switch step {
	case 2:
		prompt, name, schema, out = buildTitlePrompt(in.Request), "title_preview", titlePreviewSchema, &titlePreview{}
	case 3:
		prompt, name, schema, out = buildCharactersPrompt(in.Request, in.Title), "characters_preview", charactersPreviewSchema, &charactersPreview{}
	case 4:
		prompt, name, schema, out = buildScenesPrompt(in.Request, in.Title), "scenes_preview", scenesPreviewSchema, &scenesPreview{}
	case 5:
		prompt, name, schema, out = buildDialoguePrompt(in.Request, in.Title, in.CharactersSummary, in.ScenesSummary), "dialogue_preview", dialoguePreviewSchema, &dialoguePreview{}
	case 6:
		prompt, name, schema, out = buildAudioPrompt(in.Title, in.Style), "audio_preview", audioPreviewSchema, &audioPreview{}
	default:
		return nil, fmt.Errorf("no preview defined for step %d", step)
	}

	raw, err := c.completer.Complete(ctx, prompt, name, schema)
	if err != nil {
		c.metrics.recordFailure()
		return nil, err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.metrics.recordFailure()
		return nil, fmt.Errorf("failed to parse preview JSON: %w", err)
	}

	// Round-trip through JSON so the blob stored on the workflow row uses
	// the wire field names.
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var blob map[string]interface{}
	if err := json.Unmarshal(encoded, &blob); err != nil {
		return nil, err
	}
	return blob, nil
}
