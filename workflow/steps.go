// Package workflow implements the seven-step guided wizard that turns raw
// story text into a finished MulmoScript.
package workflow

import (
	"encoding/json"
	"strconv"

	"gorm.io/datatypes"

	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/validate"
)

// The seven steps.
const (
	StepStoryInput = 1
	StepTitle      = 2
	StepCharacters = 3
	StepScenes     = 4
	StepDialogue   = 5
	StepAudio      = 6
	StepConfirm    = 7
)

// Guard outcomes for a step submission.
type GuardResult int

const (
	GuardOK GuardResult = iota
	// GuardOutOfRange: the step number is not 1..7.
	GuardOutOfRange
	// GuardAhead: the step is more than one ahead of current_step.
	GuardAhead
)

// Guard checks whether step n may be submitted given the workflow's
// current step. Steps at or behind current_step are always editable;
// jumping past current_step+1 is rejected.
func Guard(currentStep, n int) GuardResult {
	if n < StepStoryInput || n > StepConfirm {
		return GuardOutOfRange
	}
	if n > currentStep+1 {
		return GuardAhead
	}
	return GuardOK
}

// NextStep computes the new current_step after a successful submission of
// step n. Resubmitting an earlier step never regresses current_step unless
// the rewind flag is set.
func NextStep(currentStep, n int, rewind bool) int {
	if n >= currentStep {
		next := n + 1
		if next > StepConfirm {
			next = StepConfirm
		}
		return next
	}
	if rewind {
		return n + 1
	}
	return currentStep
}

// StepKey is the JSON-map key for step n.
func StepKey(n int) string {
	return strconv.Itoa(n)
}

// MergeStepOutput merges input into the stored output blob for step n,
// preserving keys the input does not touch and leaving every other step's
// blob untouched. Returns a new map; the stored one is not mutated.
func MergeStepOutput(outputs datatypes.JSONMap, n int, input map[string]interface{}) datatypes.JSONMap {
	merged := datatypes.JSONMap{}
	for k, v := range outputs {
		merged[k] = v
	}

	existing := map[string]interface{}{}
	if prior, ok := merged[StepKey(n)].(map[string]interface{}); ok {
		for k, v := range prior {
			existing[k] = v
		}
	}
	for k, v := range input {
		existing[k] = v
	}
	merged[StepKey(n)] = existing
	return merged
}

// voice ids the renderer's TTS provider accepts
var allowedVoices = map[string]bool{
	"alloy": true, "echo": true, "fable": true,
	"onyx": true, "nova": true, "shimmer": true,
}

// Typed step inputs. Stored blobs are loosely-typed JSON columns, but each
// step's input is validated against its own shape before persisting.

type StoryInputStep struct {
	TextRaw         string `json:"text_raw"`
	Style           string `json:"style"`
	Language        string `json:"language"`
	SceneCount      int    `json:"scene_count"`
	DurationSeconds int    `json:"duration_seconds"`
}

type TitleStep struct {
	Title    string `json:"title"`
	Synopsis string `json:"synopsis"`
}

type CharacterEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	VoiceID     string `json:"voice_id"`
}

type CharactersStep struct {
	Characters []CharacterEntry `json:"characters"`
}

type SceneEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type ScenesStep struct {
	Scenes []SceneEntry `json:"scenes"`
}

type BeatEntry struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	ImagePrompt string `json:"image_prompt"`
}

type DialogueStep struct {
	Beats []BeatEntry `json:"beats"`
}

type AudioStep struct {
	BGM          string  `json:"bgm"`
	BGMVolume    float64 `json:"bgm_volume"`
	CaptionStyle string  `json:"caption_style"`
}

type ConfirmStep struct {
	Confirmed bool `json:"confirmed"`
}

// ValidateStepInput checks the raw input blob against the step's typed
// shape and rules. The blob is persisted as-is once it validates.
func ValidateStepInput(n int, input map[string]interface{}) validate.Errors {
	var errs validate.Errors

	raw, err := json.Marshal(input)
	if err != nil {
		return errs.Invalid("input", "input is not a JSON object")
	}

	switch n {
	case StepStoryInput:
		var s StoryInputStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}
		if s.TextRaw == "" {
			errs = errs.Required("text_raw")
		}
		if s.Style != "" && !models.IsValidStyle(s.Style) {
			errs = errs.Invalid("style", "unknown style \""+s.Style+"\"")
		}
		if s.Language != "" && s.Language != "ja" && s.Language != "en" {
			errs = errs.Invalid("language", "language must be \"ja\" or \"en\"")
		}
		if s.SceneCount < 0 || s.SceneCount > 20 {
			errs = errs.OutOfRange("scene_count", 1, 20)
		}

	case StepTitle:
		var s TitleStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}
		if s.Title == "" {
			errs = errs.Required("title")
		}

	case StepCharacters:
		var s CharactersStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}
		if len(s.Characters) == 0 {
			errs = errs.Required("characters")
		}
		for i, ch := range s.Characters {
			prefix := "characters[" + strconv.Itoa(i) + "]"
			if ch.Name == "" {
				errs = errs.Required(prefix + ".name")
			}
			if ch.VoiceID == "" {
				errs = errs.Required(prefix + ".voice_id")
			} else if !allowedVoices[ch.VoiceID] {
				errs = errs.Invalid(prefix+".voice_id", "unknown voice \""+ch.VoiceID+"\"")
			}
		}

	case StepScenes:
		var s ScenesStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}
		if len(s.Scenes) == 0 {
			errs = errs.Required("scenes")
		}
		for i, sc := range s.Scenes {
			prefix := "scenes[" + strconv.Itoa(i) + "]"
			if sc.Title == "" {
				errs = errs.Required(prefix + ".title")
			}
			if sc.Summary == "" {
				errs = errs.Required(prefix + ".summary")
			}
		}

	case StepDialogue:
		var s DialogueStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}
		if len(s.Beats) == 0 {
			errs = errs.Required("beats")
		}
		for i, b := range s.Beats {
			prefix := "beats[" + strconv.Itoa(i) + "]"
			if b.Speaker == "" {
				errs = errs.Required(prefix + ".speaker")
			}
			if b.Text == "" {
				errs = errs.Required(prefix + ".text")
			}
			if b.ImagePrompt == "" {
				errs = errs.Required(prefix + ".image_prompt")
			}
		}

	case StepAudio:
		var s AudioStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}
		if s.BGMVolume < 0 || s.BGMVolume > 1 {
			errs = errs.Invalid("bgm_volume", "bgm_volume must be between 0 and 1")
		}

	case StepConfirm:
		var s ConfirmStep
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Invalid("input", err.Error())
		}

	default:
		errs = errs.OutOfRange("step", StepStoryInput, StepConfirm)
	}

	return errs
}

// decodeStep unmarshals a stored step blob into the typed shape.
func decodeStep(outputs datatypes.JSONMap, n int, out interface{}) bool {
	blob, ok := outputs[StepKey(n)]
	if !ok {
		return false
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
