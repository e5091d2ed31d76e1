package generation

import "github.com/invopop/jsonschema"

// GenerateSchema generates a JSON schema for structured outputs
func GenerateSchema[T any]() interface{} {
	// Structured Outputs uses a subset of JSON schema
	// These flags are necessary to comply with the subset
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// scriptResponse is the structured output for a full script generation call.
// Speakers come back as a list because strict structured outputs reject
// free-form object keys; the client folds them into the MulmoScript map.
type scriptResponse struct {
	Title      string              `json:"title" jsonschema_description:"A short, evocative title for the story"`
	Characters []characterResponse `json:"characters" jsonschema_description:"The speaking characters, each with a voice assignment"`
	Beats      []beatResponse      `json:"beats" jsonschema_description:"The scenes of the script, in playback order"`
}

type characterResponse struct {
	Name    string `json:"name" jsonschema_description:"The character's name as used in beat speaker fields"`
	VoiceID string `json:"voice_id" jsonschema_description:"One of: alloy, echo, fable, onyx, nova, shimmer"`
}

type beatResponse struct {
	Speaker     string `json:"speaker" jsonschema_description:"Name of the character delivering this line"`
	Text        string `json:"text" jsonschema_description:"The dialogue or narration for this scene"`
	ImagePrompt string `json:"image_prompt" jsonschema_description:"A detailed text-to-image prompt depicting this scene"`
}

// Per-step preview responses for the guided workflow.

type titlePreview struct {
	Title    string `json:"title" jsonschema_description:"A short, evocative title for the story"`
	Synopsis string `json:"synopsis" jsonschema_description:"A two or three sentence synopsis"`
}

type charactersPreview struct {
	Characters []characterDetail `json:"characters" jsonschema_description:"The main characters of the story, 2 to 6 entries"`
}

type characterDetail struct {
	Name        string `json:"name" jsonschema_description:"The character's name"`
	Description string `json:"description" jsonschema_description:"One sentence describing the character"`
	VoiceID     string `json:"voice_id" jsonschema_description:"One of: alloy, echo, fable, onyx, nova, shimmer"`
}

type scenesPreview struct {
	Scenes []sceneDetail `json:"scenes" jsonschema_description:"The acts/scenes of the story in order"`
}

type sceneDetail struct {
	Title   string `json:"title" jsonschema_description:"A short scene title"`
	Summary string `json:"summary" jsonschema_description:"What happens in this scene, one or two sentences"`
}

type dialoguePreview struct {
	Beats []beatResponse `json:"beats" jsonschema_description:"One beat per scene: speaker, dialogue and image prompt"`
}

type audioPreview struct {
	BGM          string `json:"bgm" jsonschema_description:"A suggested background music mood, e.g. 'strings, melancholic'"`
	CaptionStyle string `json:"caption_style" jsonschema_description:"A suggested caption style, e.g. 'bottom, serif, white'"`
}

// Cached schemas, reflected once at init time.
var (
	scriptResponseSchema    = GenerateSchema[scriptResponse]()
	titlePreviewSchema      = GenerateSchema[titlePreview]()
	charactersPreviewSchema = GenerateSchema[charactersPreview]()
	scenesPreviewSchema     = GenerateSchema[scenesPreview]()
	dialoguePreviewSchema   = GenerateSchema[dialoguePreview]()
	audioPreviewSchema      = GenerateSchema[audioPreview]()
)
