package mulmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScript() *Script {
	return &Script{
		Mulmocast: Meta{Version: Version},
		Title:     "夏の夜の夢",
		Lang:      "ja",
		SpeechParams: SpeechParams{
			Provider: "openai",
			Speakers: map[string]Speaker{
				"パック": {VoiceID: "nova"},
			},
		},
		ImageParams: ImageParams{Style: "dramatic"},
		Beats: []Beat{
			{Speaker: "パック", Text: "人間どもはなんと愚かな", ImagePrompt: "a mischievous fairy over a sleeping forest"},
		},
	}
}

func TestValidateOK(t *testing.T) {
	assert.False(t, Validate(validScript()).HasErrors())
}

func TestValidateNil(t *testing.T) {
	errs := Validate(nil)
	require.True(t, errs.HasErrors())
	assert.Equal(t, "script", errs[0].Field)
}

func TestValidateMissingFields(t *testing.T) {
	s := validScript()
	s.Mulmocast.Version = ""
	s.Title = ""
	s.Beats = nil

	errs := Validate(s)
	require.Len(t, errs, 3)

	fields := []string{errs[0].Field, errs[1].Field, errs[2].Field}
	assert.Contains(t, fields, "$mulmocast.version")
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "beats")
}

func TestValidateLang(t *testing.T) {
	s := validScript()
	s.Lang = "fr"
	errs := Validate(s)
	require.True(t, errs.HasErrors())
	assert.Equal(t, "lang", errs[0].Field)
	assert.Equal(t, "invalid", errs[0].Code)
}

func TestValidateUndeclaredSpeaker(t *testing.T) {
	s := validScript()
	s.Beats = append(s.Beats, Beat{Speaker: "オベロン", Text: "静まれ", ImagePrompt: "a fairy king"})

	errs := Validate(s)
	require.Len(t, errs, 1)
	assert.Equal(t, "beats[1].speaker", errs[0].Field)
	assert.Equal(t, "invalid", errs[0].Code)
}

func TestValidateEmptyBeatFields(t *testing.T) {
	s := validScript()
	s.Beats[0].Text = ""
	s.Beats[0].ImagePrompt = ""

	errs := Validate(s)
	require.Len(t, errs, 2)
	assert.Equal(t, "beats[0].text", errs[0].Field)
	assert.Equal(t, "beats[0].imagePrompt", errs[1].Field)
}

func TestParse(t *testing.T) {
	raw := `{
		"$mulmocast": {"version": "1.0"},
		"title": "テスト",
		"lang": "ja",
		"speechParams": {"provider": "openai", "speakers": {"N": {"voiceId": "alloy"}}},
		"imageParams": {"style": "anime"},
		"beats": [{"speaker": "N", "text": "こんにちは", "imagePrompt": "a greeting"}]
	}`

	s, errs := Parse([]byte(raw))
	require.False(t, errs.HasErrors())
	require.NotNil(t, s)
	assert.Equal(t, "テスト", s.Title)
	assert.Equal(t, "alloy", s.SpeechParams.Speakers["N"].VoiceID)
}

func TestParseMalformed(t *testing.T) {
	s, errs := Parse([]byte("{not json"))
	assert.Nil(t, s)
	require.True(t, errs.HasErrors())
	assert.Equal(t, "script", errs[0].Field)
}

func TestParseInvalid(t *testing.T) {
	s, errs := Parse([]byte(`{"title": "no beats"}`))
	assert.Nil(t, s)
	assert.True(t, errs.HasErrors())
}
