package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/akibsystems/showgeki2-sub004/models"
)

func completedWorkflow() *models.Workflow {
	return &models.Workflow{
		CurrentStep: StepConfirm,
		StepOutputs: datatypes.JSONMap{
			"1": map[string]interface{}{
				"text_raw": "昔々あるところに", "style": "dramatic", "language": "ja", "scene_count": float64(2),
			},
			"2": map[string]interface{}{"title": "桃太郎異聞"},
			"3": map[string]interface{}{
				"characters": []interface{}{
					map[string]interface{}{"name": "桃太郎", "voice_id": "onyx", "description": "鬼退治の英雄"},
				},
			},
			"4": map[string]interface{}{
				"scenes": []interface{}{
					map[string]interface{}{"title": "誕生", "summary": "桃から生まれる"},
				},
			},
			"5": map[string]interface{}{
				"beats": []interface{}{
					map[string]interface{}{"speaker": "桃太郎", "text": "鬼ヶ島へ行く", "image_prompt": "a hero setting out at dawn"},
				},
			},
			"6": map[string]interface{}{"bgm": "taiko", "bgm_volume": 0.3, "caption_style": "bottom"},
		},
	}
}

func TestAssembleScript(t *testing.T) {
	script, errs := AssembleScript(completedWorkflow())
	require.False(t, errs.HasErrors(), errs.Error())
	require.NotNil(t, script)

	assert.Equal(t, "桃太郎異聞", script.Title)
	assert.Equal(t, "ja", script.Lang)
	assert.Equal(t, "onyx", script.SpeechParams.Speakers["桃太郎"].VoiceID)
	require.Len(t, script.Beats, 1)
	assert.Equal(t, "鬼ヶ島へ行く", script.Beats[0].Text)
	require.NotNil(t, script.AudioParams)
	assert.Equal(t, "taiko", script.AudioParams.BGM)
}

func TestAssembleScriptAudioOptional(t *testing.T) {
	w := completedWorkflow()
	delete(w.StepOutputs, "6")

	script, errs := AssembleScript(w)
	require.False(t, errs.HasErrors())
	assert.Nil(t, script.AudioParams)
}

func TestAssembleScriptNamesMissingSteps(t *testing.T) {
	w := completedWorkflow()
	delete(w.StepOutputs, "2")
	delete(w.StepOutputs, "5")

	script, errs := AssembleScript(w)
	assert.Nil(t, script)
	require.Len(t, errs, 2)
	assert.Equal(t, "steps.2", errs[0].Field)
	assert.Equal(t, "steps.5", errs[1].Field)
}

func TestAssembleScriptRejectsUndeclaredSpeaker(t *testing.T) {
	w := completedWorkflow()
	w.StepOutputs["5"] = map[string]interface{}{
		"beats": []interface{}{
			map[string]interface{}{"speaker": "犬", "text": "ワン", "image_prompt": "a loyal dog"},
		},
	}

	script, errs := AssembleScript(w)
	assert.Nil(t, script)
	assert.True(t, errs.HasErrors())
}

func TestBuildPreviewInput(t *testing.T) {
	in := buildPreviewInput(completedWorkflow())

	assert.Equal(t, "昔々あるところに", in.Text)
	assert.Equal(t, "桃太郎異聞", in.Title)
	assert.Contains(t, in.CharactersSummary, "桃太郎 (onyx)")
	assert.Contains(t, in.ScenesSummary, "1. 誕生")
	// scene count follows the confirmed scene list
	assert.Equal(t, 1, in.SceneCount)
}

func TestBuildPreviewInputDefaultsSceneCount(t *testing.T) {
	in := buildPreviewInput(&models.Workflow{StepOutputs: datatypes.JSONMap{}})
	assert.Equal(t, 5, in.SceneCount)
}

func TestScriptToStepOutputsRoundTrip(t *testing.T) {
	story := &models.Story{TextRaw: "a story", Style: "anime", Language: "en", SceneCount: 1}
	script, errs := AssembleScript(completedWorkflow())
	require.False(t, errs.HasErrors())

	outputs := scriptToStepOutputs(story, script)

	// every wizard step gets a blob so the UI can render instant runs
	for n := StepStoryInput; n <= StepConfirm; n++ {
		assert.Contains(t, outputs, n)
	}
	assert.Equal(t, script.Title, outputs[StepTitle]["title"])
	assert.Equal(t, true, outputs[StepConfirm]["confirmed"])
}
