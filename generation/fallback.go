package generation

import (
	"fmt"
	"strings"

	"github.com/akibsystems/showgeki2-sub004/mulmo"
)

// FallbackScript fabricates a minimal schema-valid script directly from the
// raw story text. It is the guaranteed-success branch after LLM retries are
// exhausted: callers of GenerateScript always receive a valid script.
func FallbackScript(req Request) *mulmo.Script {
	sceneCount := req.SceneCount
	if sceneCount < 1 {
		sceneCount = 1
	}

	narrator := "Narrator"
	title := "Untitled Story"
	if req.Language != "en" {
		narrator = "ナレーター"
		title = "無題の物語"
	}

	// Empty or unsplittable text still has to produce speakable beats, so
	// the default title doubles as the narration line.
	sentences := splitSentences(req.Text)
	if len(sentences) == 0 {
		sentences = []string{title}
	} else {
		title = truncateRunes(firstSentence(sentences), 40)
	}

	style := req.Style
	if style == "" {
		style = "dramatic"
	}

	beats := make([]mulmo.Beat, 0, sceneCount)
	for i := 0; i < sceneCount; i++ {
		// Distribute sentences across the requested scene count, repeating
		// the last one when the text is shorter than the scene count.
		idx := i * len(sentences) / sceneCount
		if idx >= len(sentences) {
			idx = len(sentences) - 1
		}
		text := sentences[idx]
		beats = append(beats, mulmo.Beat{
			Speaker:     narrator,
			Text:        text,
			ImagePrompt: fmt.Sprintf("A %s illustrated scene: %s", style, truncateRunes(text, 120)),
		})
	}

	lang := req.Language
	if lang != "en" {
		lang = "ja"
	}

	return &mulmo.Script{
		Mulmocast: mulmo.Meta{Version: mulmo.Version},
		Title:     title,
		Lang:      lang,
		SpeechParams: mulmo.SpeechParams{
			Provider: "openai",
			Speakers: map[string]mulmo.Speaker{
				narrator: {VoiceID: "alloy"},
			},
		},
		ImageParams: mulmo.ImageParams{Style: style},
		Beats:       beats,
	}
}

// splitSentences splits story text on Japanese and Latin sentence breaks.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '。', '！', '？', '.', '!', '?', '\n':
			if r != '\n' {
				sb.WriteRune(r)
			}
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func firstSentence(sentences []string) string {
	for _, s := range sentences {
		if s != "" {
			return s
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
