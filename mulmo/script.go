// Package mulmo holds the MulmoScript format consumed by the external
// video renderer, plus its validation rules.
package mulmo

import (
	"encoding/json"
	"strconv"

	"github.com/akibsystems/showgeki2-sub004/pkg/validate"
)

// Version is the $mulmocast schema version this backend emits.
const Version = "1.0"

// Meta is the $mulmocast envelope marker.
type Meta struct {
	Version string `json:"version"`
}

// Speaker maps a character name to a TTS voice.
type Speaker struct {
	VoiceID string `json:"voiceId"`
}

// SpeechParams configures the renderer's TTS pass.
type SpeechParams struct {
	Provider string             `json:"provider"`
	Speakers map[string]Speaker `json:"speakers"`
}

// ImageParams configures the renderer's image-generation pass.
type ImageParams struct {
	Style string `json:"style"`
	Model string `json:"model,omitempty"`
}

// AudioParams configures BGM and caption rendering. Optional.
type AudioParams struct {
	BGM          string  `json:"bgm,omitempty"`
	BGMVolume    float64 `json:"bgmVolume,omitempty"`
	CaptionStyle string  `json:"captionStyle,omitempty"`
}

// Beat is one unit of the script: a speaker, a line of dialogue and an
// image-generation prompt.
type Beat struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	ImagePrompt string `json:"imagePrompt"`
}

// Script is the full MulmoScript document.
type Script struct {
	Mulmocast    Meta         `json:"$mulmocast"`
	Title        string       `json:"title"`
	Lang         string       `json:"lang"`
	SpeechParams SpeechParams `json:"speechParams"`
	ImageParams  ImageParams  `json:"imageParams"`
	AudioParams  *AudioParams `json:"audioParams,omitempty"`
	Beats        []Beat       `json:"beats"`
}

// Validate checks the script shape and cross-references beat speakers
// against the declared speaker map.
func Validate(s *Script) validate.Errors {
	var errs validate.Errors

	if s == nil {
		return errs.Required("script")
	}
	if s.Mulmocast.Version == "" {
		errs = errs.Required("$mulmocast.version")
	}
	if s.Title == "" {
		errs = errs.Required("title")
	}
	if s.Lang != "ja" && s.Lang != "en" {
		errs = errs.Invalid("lang", "lang must be \"ja\" or \"en\"")
	}
	if s.SpeechParams.Provider == "" {
		errs = errs.Required("speechParams.provider")
	}
	if len(s.SpeechParams.Speakers) == 0 {
		errs = errs.Required("speechParams.speakers")
	}
	if len(s.Beats) == 0 {
		errs = errs.Required("beats")
	}

	for i, b := range s.Beats {
		prefix := "beats[" + strconv.Itoa(i) + "]"
		if b.Speaker == "" {
			errs = errs.Required(prefix + ".speaker")
		} else if _, ok := s.SpeechParams.Speakers[b.Speaker]; !ok {
			errs = errs.Invalid(prefix+".speaker", "speaker \""+b.Speaker+"\" is not declared in speechParams.speakers")
		}
		if b.Text == "" {
			errs = errs.Required(prefix + ".text")
		}
		if b.ImagePrompt == "" {
			errs = errs.Required(prefix + ".imagePrompt")
		}
	}

	return errs
}

// Parse decodes raw JSON into a Script and validates it.
func Parse(data []byte) (*Script, validate.Errors) {
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		var errs validate.Errors
		return nil, errs.Invalid("script", "malformed JSON: "+err.Error())
	}
	if errs := Validate(&s); errs.HasErrors() {
		return nil, errs
	}
	return &s, nil
}
