package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGuard(t *testing.T) {
	assert.Equal(t, GuardOutOfRange, Guard(1, 0))
	assert.Equal(t, GuardOutOfRange, Guard(1, 8))
	assert.Equal(t, GuardOutOfRange, Guard(1, -3))

	// jumping more than one step ahead is rejected
	assert.Equal(t, GuardAhead, Guard(1, 3))
	assert.Equal(t, GuardAhead, Guard(2, 7))

	// current, behind, and one ahead are all fine
	assert.Equal(t, GuardOK, Guard(3, 3))
	assert.Equal(t, GuardOK, Guard(3, 1))
	assert.Equal(t, GuardOK, Guard(3, 4))
	assert.Equal(t, GuardOK, Guard(7, 7))
}

func TestNextStep(t *testing.T) {
	// advancing moves current_step forward
	assert.Equal(t, 2, NextStep(1, 1, false))
	assert.Equal(t, 5, NextStep(4, 4, false))
	assert.Equal(t, 5, NextStep(3, 4, false))

	// confirm is the ceiling
	assert.Equal(t, 7, NextStep(7, 7, false))

	// resubmitting an earlier step does not regress progress
	assert.Equal(t, 5, NextStep(5, 2, false))

	// unless rewind is requested
	assert.Equal(t, 3, NextStep(5, 2, true))
}

func TestMergeStepOutput(t *testing.T) {
	outputs := datatypes.JSONMap{
		"1": map[string]interface{}{"text_raw": "once upon a time", "style": "dramatic"},
		"2": map[string]interface{}{"title": "A Tale"},
	}

	merged := MergeStepOutput(outputs, 1, map[string]interface{}{"style": "comedic"})

	step1, ok := merged["1"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "comedic", step1["style"])
	// untouched keys in the same step survive the merge
	assert.Equal(t, "once upon a time", step1["text_raw"])
	// other steps are untouched
	assert.Equal(t, outputs["2"], merged["2"])

	// the stored map is not mutated
	original := outputs["1"].(map[string]interface{})
	assert.Equal(t, "dramatic", original["style"])
}

func TestMergeStepOutputNewStep(t *testing.T) {
	merged := MergeStepOutput(datatypes.JSONMap{}, 2, map[string]interface{}{"title": "Hamlet in Shibuya"})

	step2, ok := merged["2"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Hamlet in Shibuya", step2["title"])
}

func TestValidateStepInputStoryInput(t *testing.T) {
	errs := ValidateStepInput(StepStoryInput, map[string]interface{}{
		"text_raw":    "a story",
		"style":       "dramatic",
		"language":    "ja",
		"scene_count": 5,
	})
	assert.False(t, errs.HasErrors())

	errs = ValidateStepInput(StepStoryInput, map[string]interface{}{})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "text_raw", errs[0].Field)
	assert.Equal(t, "required", errs[0].Code)

	errs = ValidateStepInput(StepStoryInput, map[string]interface{}{
		"text_raw": "a story", "scene_count": 99,
	})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "scene_count", errs[0].Field)
	assert.Equal(t, "out_of_range", errs[0].Code)

	errs = ValidateStepInput(StepStoryInput, map[string]interface{}{
		"text_raw": "a story", "language": "fr",
	})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "language", errs[0].Field)
}

func TestValidateStepInputCharacters(t *testing.T) {
	errs := ValidateStepInput(StepCharacters, map[string]interface{}{
		"characters": []interface{}{
			map[string]interface{}{"name": "Hamlet", "voice_id": "onyx"},
		},
	})
	assert.False(t, errs.HasErrors())

	errs = ValidateStepInput(StepCharacters, map[string]interface{}{
		"characters": []interface{}{
			map[string]interface{}{"name": "Hamlet", "voice_id": "robot9000"},
		},
	})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "characters[0].voice_id", errs[0].Field)
	assert.Equal(t, "invalid", errs[0].Code)

	errs = ValidateStepInput(StepCharacters, map[string]interface{}{"characters": []interface{}{}})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "characters", errs[0].Field)
}

func TestValidateStepInputDialogue(t *testing.T) {
	errs := ValidateStepInput(StepDialogue, map[string]interface{}{
		"beats": []interface{}{
			map[string]interface{}{"speaker": "Hamlet", "text": "To be", "image_prompt": "a prince"},
			map[string]interface{}{"speaker": "Hamlet", "text": ""},
		},
	})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "beats[1].text", errs[0].Field)
	assert.Equal(t, "beats[1].image_prompt", errs[1].Field)
}

func TestValidateStepInputAudio(t *testing.T) {
	errs := ValidateStepInput(StepAudio, map[string]interface{}{"bgm": "strings", "bgm_volume": 0.4})
	assert.False(t, errs.HasErrors())

	errs = ValidateStepInput(StepAudio, map[string]interface{}{"bgm_volume": 1.5})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "bgm_volume", errs[0].Field)
}

func TestValidateStepInputUnknownStep(t *testing.T) {
	errs := ValidateStepInput(9, map[string]interface{}{})
	require.True(t, errs.HasErrors())
	assert.Equal(t, "out_of_range", errs[0].Code)
}

func TestStepMessageCoversAllSteps(t *testing.T) {
	for n := StepStoryInput; n <= StepConfirm; n++ {
		assert.NotEmpty(t, StepMessage(n))
	}
	assert.NotEmpty(t, StepMessage(42))
}
