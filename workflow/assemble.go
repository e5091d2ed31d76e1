package workflow

import (
	"fmt"
	"strings"

	"github.com/akibsystems/showgeki2-sub004/generation"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/mulmo"
	"github.com/akibsystems/showgeki2-sub004/pkg/validate"
)

// AssembleScript builds the final MulmoScript from the accumulated step
// outputs. Returns field errors naming the steps that are still incomplete.
func AssembleScript(w *models.Workflow) (*mulmo.Script, validate.Errors) {
	var errs validate.Errors

	var story StoryInputStep
	if !decodeStep(w.StepOutputs, StepStoryInput, &story) || story.TextRaw == "" {
		errs = errs.Required("steps.1")
	}
	var title TitleStep
	if !decodeStep(w.StepOutputs, StepTitle, &title) || title.Title == "" {
		errs = errs.Required("steps.2")
	}
	var characters CharactersStep
	if !decodeStep(w.StepOutputs, StepCharacters, &characters) || len(characters.Characters) == 0 {
		errs = errs.Required("steps.3")
	}
	var dialogue DialogueStep
	if !decodeStep(w.StepOutputs, StepDialogue, &dialogue) || len(dialogue.Beats) == 0 {
		errs = errs.Required("steps.5")
	}
	if errs.HasErrors() {
		return nil, errs
	}

	// Audio settings are optional
	var audio AudioStep
	decodeStep(w.StepOutputs, StepAudio, &audio)

	lang := story.Language
	if lang != "en" {
		lang = "ja"
	}
	style := story.Style
	if style == "" {
		style = "dramatic"
	}

	speakers := make(map[string]mulmo.Speaker, len(characters.Characters))
	for _, ch := range characters.Characters {
		speakers[ch.Name] = mulmo.Speaker{VoiceID: ch.VoiceID}
	}

	beats := make([]mulmo.Beat, 0, len(dialogue.Beats))
	for _, b := range dialogue.Beats {
		beats = append(beats, mulmo.Beat{
			Speaker:     b.Speaker,
			Text:        b.Text,
			ImagePrompt: b.ImagePrompt,
		})
	}

	script := &mulmo.Script{
		Mulmocast: mulmo.Meta{Version: mulmo.Version},
		Title:     title.Title,
		Lang:      lang,
		SpeechParams: mulmo.SpeechParams{
			Provider: "openai",
			Speakers: speakers,
		},
		ImageParams: mulmo.ImageParams{Style: style},
		Beats:       beats,
	}
	if audio.BGM != "" || audio.CaptionStyle != "" {
		script.AudioParams = &mulmo.AudioParams{
			BGM:          audio.BGM,
			BGMVolume:    audio.BGMVolume,
			CaptionStyle: audio.CaptionStyle,
		}
	}

	if verrs := mulmo.Validate(script); verrs.HasErrors() {
		return nil, verrs
	}
	return script, nil
}

// buildPreviewInput collects the accumulated context the generation client
// needs for step previews.
func buildPreviewInput(w *models.Workflow) generation.PreviewInput {
	var story StoryInputStep
	decodeStep(w.StepOutputs, StepStoryInput, &story)

	in := generation.PreviewInput{
		Request: generation.Request{
			Text:            story.TextRaw,
			Style:           story.Style,
			Language:        story.Language,
			SceneCount:      story.SceneCount,
			DurationSeconds: story.DurationSeconds,
		},
	}
	if in.SceneCount == 0 {
		in.SceneCount = 5
	}

	var title TitleStep
	if decodeStep(w.StepOutputs, StepTitle, &title) {
		in.Title = title.Title
	}

	var characters CharactersStep
	if decodeStep(w.StepOutputs, StepCharacters, &characters) {
		var lines []string
		for _, ch := range characters.Characters {
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", ch.Name, ch.VoiceID, ch.Description))
		}
		in.CharactersSummary = strings.Join(lines, "\n")
	}

	var scenes ScenesStep
	if decodeStep(w.StepOutputs, StepScenes, &scenes) {
		var lines []string
		for i, sc := range scenes.Scenes {
			lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, sc.Title, sc.Summary))
		}
		in.ScenesSummary = strings.Join(lines, "\n")
		in.SceneCount = len(scenes.Scenes)
	}

	return in
}

// scriptToStepOutputs back-fills all step blobs from a generated script,
// used by instant mode so the wizard UI can still render every step.
func scriptToStepOutputs(story *models.Story, script *mulmo.Script) map[int]map[string]interface{} {
	characters := make([]interface{}, 0, len(script.SpeechParams.Speakers))
	for name, sp := range script.SpeechParams.Speakers {
		characters = append(characters, map[string]interface{}{
			"name": name, "voice_id": sp.VoiceID, "description": "",
		})
	}

	scenes := make([]interface{}, 0, len(script.Beats))
	beats := make([]interface{}, 0, len(script.Beats))
	for i, b := range script.Beats {
		scenes = append(scenes, map[string]interface{}{
			"title":   fmt.Sprintf("Scene %d", i+1),
			"summary": b.Text,
		})
		beats = append(beats, map[string]interface{}{
			"speaker": b.Speaker, "text": b.Text, "image_prompt": b.ImagePrompt,
		})
	}

	out := map[int]map[string]interface{}{
		StepStoryInput: {
			"text_raw":         story.TextRaw,
			"style":            story.Style,
			"language":         story.Language,
			"scene_count":      story.SceneCount,
			"duration_seconds": story.DurationSeconds,
		},
		StepTitle:      {"title": script.Title, "synopsis": ""},
		StepCharacters: {"characters": characters},
		StepScenes:     {"scenes": scenes},
		StepDialogue:   {"beats": beats},
		StepAudio:      {},
		StepConfirm:    {"confirmed": true},
	}
	if script.AudioParams != nil {
		out[StepAudio] = map[string]interface{}{
			"bgm":           script.AudioParams.BGM,
			"bgm_volume":    script.AudioParams.BGMVolume,
			"caption_style": script.AudioParams.CaptionStyle,
		}
	}
	return out
}
