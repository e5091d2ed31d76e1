package stories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStoryRequestNormalize(t *testing.T) {
	req := CreateStoryRequest{TextRaw: "a story"}
	req.normalize()

	assert.Equal(t, "ja", req.Language)
	assert.Equal(t, "dramatic", req.Style)
	assert.Equal(t, 5, req.SceneCount)
	assert.Equal(t, 60, req.DurationSeconds)
}

func TestCreateStoryRequestValidate(t *testing.T) {
	req := CreateStoryRequest{TextRaw: "a story"}
	req.normalize()
	assert.False(t, req.validate(MaxSceneCount).HasErrors())

	empty := CreateStoryRequest{}
	empty.normalize()
	errs := empty.validate(MaxSceneCount)
	require.True(t, errs.HasErrors())
	assert.Equal(t, "text_raw", errs[0].Field)
}

func TestCreateStoryRequestSceneCountCap(t *testing.T) {
	req := CreateStoryRequest{TextRaw: "a story", SceneCount: 10}
	req.normalize()

	// fine for subscribers, over the free cap
	assert.False(t, req.validate(MaxSceneCount).HasErrors())

	errs := req.validate(FreeMaxSceneCount)
	require.True(t, errs.HasErrors())
	assert.Equal(t, "scene_count", errs[0].Field)
	assert.Equal(t, "out_of_range", errs[0].Code)
}

func TestCreateStoryRequestRejectsBadValues(t *testing.T) {
	req := CreateStoryRequest{
		TextRaw:         "a story",
		Language:        "fr",
		Style:           "vaporwave",
		SceneCount:      3,
		DurationSeconds: 5,
	}
	errs := req.validate(MaxSceneCount)
	require.Len(t, errs, 3)
	assert.Equal(t, "language", errs[0].Field)
	assert.Equal(t, "style", errs[1].Field)
	assert.Equal(t, "duration_seconds", errs[2].Field)
}
