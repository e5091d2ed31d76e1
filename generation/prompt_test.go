package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildScriptPromptIncludesHints(t *testing.T) {
	prompt := buildScriptPrompt(Request{
		Text:            "a story",
		Style:           "dramatic",
		Language:        "en",
		SceneCount:      3,
		DurationSeconds: 60,
		SceneTitleHints: []string{"The Crossing", "", "The Duel"},
	})

	assert.Contains(t, prompt, "- The Crossing")
	assert.Contains(t, prompt, "- The Duel")
	assert.Contains(t, prompt, "English")
	assert.Contains(t, prompt, "exactly 3 beats")
}

func TestBuildScriptPromptNoHints(t *testing.T) {
	prompt := buildScriptPrompt(Request{Text: "a story", Language: "ja", SceneCount: 5, DurationSeconds: 60})
	assert.Contains(t, prompt, "- None")
	assert.Contains(t, prompt, "Japanese")
}
