package generation

import (
	"fmt"
	"strings"
)

// Request carries everything the client needs to generate a script.
type Request struct {
	Text            string   `json:"text"`
	Style           string   `json:"style"`
	Language        string   `json:"language"`
	SceneCount      int      `json:"scene_count"`
	DurationSeconds int      `json:"duration_seconds"`
	SceneTitleHints []string `json:"scene_title_hints,omitempty"`
}

func languageName(code string) string {
	if code == "en" {
		return "English"
	}
	return "Japanese"
}

// buildScriptPrompt builds the single-shot script generation prompt.
func buildScriptPrompt(req Request) string {
	hints := "- None"
	if len(req.SceneTitleHints) > 0 {
		var lines []string
		for _, h := range req.SceneTitleHints {
			if h != "" {
				lines = append(lines, fmt.Sprintf("- %s", h))
			}
		}
		if len(lines) > 0 {
			hints = strings.Join(lines, "\n")
		}
	}

	return fmt.Sprintf(`You are a playwright in the style of Shakespeare, adapting a user's story into a short theatrical video script.

Story text:
%s

Requirements:
- Write all dialogue and titles in %s.
- The overall tone must be %s.
- Produce exactly %d beats (scenes). Each beat has one speaker, one line of dialogue or narration, and a detailed image-generation prompt for the scene's visual.
- Target total runtime is about %d seconds, so keep each line speakable within its share of that time.
- Introduce 2 to 6 named characters and assign each a voice.
- Every beat's speaker must be one of the declared characters.

Scene title hints from the user (use them if they fit):
%s`,
		req.Text, languageName(req.Language), req.Style, req.SceneCount, req.DurationSeconds, hints)
}

func buildTitlePrompt(req Request) string {
	return fmt.Sprintf(`You are naming a short theatrical video adapted from a user's story.

Story text:
%s

Write the title and a short synopsis in %s. The tone is %s.`,
		req.Text, languageName(req.Language), req.Style)
}

func buildCharactersPrompt(req Request, title string) string {
	return fmt.Sprintf(`You are casting a short theatrical video titled "%s".

Story text:
%s

List the main speaking characters (2 to 6) in %s, one sentence each, and assign every character a voice from: alloy, echo, fable, onyx, nova, shimmer.`,
		title, req.Text, languageName(req.Language))
}

func buildScenesPrompt(req Request, title string) string {
	return fmt.Sprintf(`You are structuring a short theatrical video titled "%s" into scenes.

Story text:
%s

Break the story into exactly %d scenes in %s. The tone is %s. For each scene give a short title and a one or two sentence summary.`,
		title, req.Text, req.SceneCount, languageName(req.Language), req.Style)
}

func buildDialoguePrompt(req Request, title string, characters, scenes string) string {
	return fmt.Sprintf(`You are writing the dialogue for a short theatrical video titled "%s".

Story text:
%s

Characters:
%s

Scene structure:
%s

Write exactly %d beats in %s, one per scene and in scene order. Each beat has a speaker (one of the characters above), a line of dialogue or narration, and a detailed image-generation prompt depicting the scene in a %s tone.`,
		title, req.Text, characters, scenes, req.SceneCount, languageName(req.Language), req.Style)
}

func buildAudioPrompt(title, style string) string {
	return fmt.Sprintf(`Suggest background music and a caption style for a short theatrical video titled "%s" with a %s tone.`,
		title, style)
}
