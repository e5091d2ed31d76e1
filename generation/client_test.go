package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akibsystems/showgeki2-sub004/mulmo"
)

// stubCompleter replays canned responses in order.
type stubCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt, schemaName string, schema interface{}) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no more responses")
}

func validScriptJSON(t *testing.T) string {
	t.Helper()
	resp := scriptResponse{
		Title: "Hamlet in Shibuya",
		Characters: []characterResponse{
			{Name: "Hamlet", VoiceID: "onyx"},
		},
		Beats: []beatResponse{
			{Speaker: "Hamlet", Text: "To be, or not to be", ImagePrompt: "a prince on a neon crossing"},
		},
	}
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(raw)
}

func TestGenerateScriptSuccess(t *testing.T) {
	metrics := NewMetrics()
	client := &Client{
		completer: &stubCompleter{responses: []string{validScriptJSON(t)}},
		metrics:   metrics,
		retries:   2,
	}

	script := client.GenerateScript(context.Background(), Request{
		Text: "a story", Language: "ja", SceneCount: 1,
	})

	require.NotNil(t, script)
	assert.Equal(t, "Hamlet in Shibuya", script.Title)
	assert.False(t, mulmo.Validate(script).HasErrors())

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Requests)
	assert.Equal(t, int64(0), snap.Retries)
	assert.Equal(t, int64(0), snap.Fallbacks)
}

func TestGenerateScriptRetriesThenSucceeds(t *testing.T) {
	metrics := NewMetrics()
	stub := &stubCompleter{
		errs:      []error{errors.New("upstream hiccup"), nil},
		responses: []string{"", validScriptJSON(t)},
	}
	client := &Client{completer: stub, metrics: metrics, retries: 2}

	script := client.GenerateScript(context.Background(), Request{Text: "a story"})

	require.NotNil(t, script)
	assert.Equal(t, "Hamlet in Shibuya", script.Title)
	assert.Equal(t, 2, stub.calls)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Retries)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(0), snap.Fallbacks)
}

func TestGenerateScriptFallsBackOnExhaustion(t *testing.T) {
	metrics := NewMetrics()
	stub := &stubCompleter{
		responses: []string{"not json", "not json", "not json"},
	}
	client := &Client{completer: stub, metrics: metrics, retries: 2}

	req := Request{Text: "昔々あるところに。おじいさんが住んでいた。", Language: "ja", SceneCount: 3}
	script := client.GenerateScript(context.Background(), req)

	// fallback output is still a valid script with the requested beat count
	require.NotNil(t, script)
	assert.False(t, mulmo.Validate(script).HasErrors())
	assert.Len(t, script.Beats, 3)
	assert.Equal(t, 3, stub.calls)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Fallbacks)
	assert.Equal(t, int64(3), snap.Failures)
}

func TestGenerateScriptRejectsSchemaInvalidOutput(t *testing.T) {
	// syntactically fine JSON but the beat speaker is not declared
	bad := `{"title":"T","characters":[{"name":"A","voice_id":"alloy"}],"beats":[{"speaker":"Ghost","text":"boo","image_prompt":"x"}]}`
	stub := &stubCompleter{responses: []string{bad, validScriptJSON(t)}}
	client := &Client{completer: stub, metrics: NewMetrics(), retries: 2}

	script := client.GenerateScript(context.Background(), Request{Text: "a story"})

	require.NotNil(t, script)
	assert.Equal(t, "Hamlet in Shibuya", script.Title)
	assert.Equal(t, 2, stub.calls)
}

func TestGeneratePreviewReturnsErrors(t *testing.T) {
	stub := &stubCompleter{errs: []error{errors.New("boom")}}
	client := &Client{completer: stub, metrics: NewMetrics(), retries: 0}

	_, err := client.GeneratePreview(context.Background(), 2, PreviewInput{})
	assert.Error(t, err)

	_, err = client.GeneratePreview(context.Background(), 1, PreviewInput{})
	assert.Error(t, err, "step 1 has no preview")
}

func TestGeneratePreviewReturnsWireFieldNames(t *testing.T) {
	stub := &stubCompleter{responses: []string{`{"title":"A Tale","synopsis":"a synopsis"}`}}
	client := &Client{completer: stub, metrics: NewMetrics(), retries: 0}

	blob, err := client.GeneratePreview(context.Background(), 2, PreviewInput{})
	require.NoError(t, err)
	assert.Equal(t, "A Tale", blob["title"])
	assert.Equal(t, "a synopsis", blob["synopsis"])
}
