package stories

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akibsystems/showgeki2-sub004/models"
)

func TestStatusMessageCoversAllStatuses(t *testing.T) {
	statuses := []string{
		models.VideoStatusQueued,
		models.VideoStatusProcessing,
		models.VideoStatusCompleted,
		models.VideoStatusFailed,
		models.VideoStatusError,
	}
	for _, s := range statuses {
		assert.NotEmpty(t, StatusMessage(s), s)
	}

	// unknown statuses still get a generic message
	assert.NotEmpty(t, StatusMessage("something_new"))
}
