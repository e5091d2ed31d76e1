package stories

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/auth"
	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/tasks"
)

const testScript = `{"$mulmocast":{"version":"1.0"},"title":"T","lang":"ja",` +
	`"speechParams":{"provider":"openai","speakers":{"N":{"voiceId":"alloy"}}},` +
	`"imageParams":{"style":"dramatic"},` +
	`"beats":[{"speaker":"N","text":"line","imagePrompt":"a scene"}]}`

func newTestEnv(t *testing.T) (*gorm.DB, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Story{}, &models.Workflow{}, &models.Video{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return db, rdb, mr
}

func newStoriesRouter(db *gorm.DB, rdb *redis.Client, direct bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{AuthBypass: true, DirectScriptGeneration: direct}

	h := NewHandler(db, rdb, nil, cfg)
	r := gin.New()
	api := r.Group("/api", auth.Middleware(db, cfg))
	{
		api.GET("/stories/:id", h.GetStory)
		api.PUT("/stories/:id", h.UpdateStory)
		api.POST("/stories/:id/generate-script", h.GenerateScript)
		api.POST("/stories/:id/generate-video", h.GenerateVideo)
	}
	return r
}

func doJSON(r *gin.Engine, method, path string, uid uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-User-UID", uid.String())
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createStory(t *testing.T, db *gorm.DB, uid uuid.UUID, withScript bool) *models.Story {
	t.Helper()
	story := models.Story{
		UID:     uid,
		Title:   "A Tale",
		TextRaw: "once upon a time",
	}
	if withScript {
		story.Script = datatypes.JSON([]byte(testScript))
		story.Status = models.StoryStatusScriptGenerated
	}
	require.NoError(t, db.Create(&story).Error)
	return &story
}

func TestGenerateVideoIdempotentForCompletedVideo(t *testing.T) {
	db, rdb, _ := newTestEnv(t)
	uid := uuid.New()
	story := createStory(t, db, uid, true)

	existing := models.Video{StoryID: story.ID, UID: uid, Status: models.VideoStatusCompleted}
	require.NoError(t, db.Create(&existing).Error)

	r := newStoriesRouter(db, rdb, true)
	w := doJSON(r, http.MethodPost, "/api/stories/"+story.ID.String()+"/generate-video", uid, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, existing.ID.String(), resp["video_id"])
	assert.Equal(t, true, resp["existing"])

	// no duplicate row was created
	var count int64
	db.Model(&models.Video{}).Where("story_id = ?", story.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGenerateVideoCreatesAndQueues(t *testing.T) {
	db, rdb, mr := newTestEnv(t)
	uid := uuid.New()
	story := createStory(t, db, uid, true)

	r := newStoriesRouter(db, rdb, true)
	w := doJSON(r, http.MethodPost, "/api/stories/"+story.ID.String()+"/generate-video", uid, nil)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var video models.Video
	require.NoError(t, db.First(&video, "story_id = ?", story.ID).Error)
	assert.Equal(t, models.VideoStatusQueued, video.Status)

	queued, err := mr.List(tasks.QueueRenderDispatch)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	var task tasks.RenderTaskPayload
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &task))
	assert.Equal(t, video.ID, task.VideoID)
}

func TestGenerateVideoFreePlanPendingCap(t *testing.T) {
	db, rdb, _ := newTestEnv(t)
	uid := uuid.New()

	busy := createStory(t, db, uid, true)
	pending := models.Video{StoryID: busy.ID, UID: uid, Status: models.VideoStatusProcessing}
	require.NoError(t, db.Create(&pending).Error)

	next := createStory(t, db, uid, true)
	r := newStoriesRouter(db, rdb, true)
	w := doJSON(r, http.MethodPost, "/api/stories/"+next.ID.String()+"/generate-video", uid, nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
}

func TestCrossUserAccessIs404(t *testing.T) {
	db, rdb, _ := newTestEnv(t)
	owner := uuid.New()
	intruder := uuid.New()
	story := createStory(t, db, owner, true)

	r := newStoriesRouter(db, rdb, true)
	path := "/api/stories/" + story.ID.String()

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, path, intruder, nil).Code)
	assert.Equal(t, http.StatusNotFound,
		doJSON(r, http.MethodPut, path, intruder, map[string]string{"title": "mine now"}).Code)
	assert.Equal(t, http.StatusNotFound,
		doJSON(r, http.MethodPost, path+"/generate-video", intruder, nil).Code)

	// the owner still sees it
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, path, owner, nil).Code)

	// and the row is untouched
	var fresh models.Story
	require.NoError(t, db.First(&fresh, "id = ?", story.ID).Error)
	assert.Equal(t, "A Tale", fresh.Title)
}

func TestGenerateScriptQueuedWhenDirectDisabled(t *testing.T) {
	db, rdb, mr := newTestEnv(t)
	uid := uuid.New()
	story := createStory(t, db, uid, false)

	r := newStoriesRouter(db, rdb, false)
	w := doJSON(r, http.MethodPost, "/api/stories/"+story.ID.String()+"/generate-script", uid,
		map[string]interface{}{"scene_title_hints": []string{"The Crossing"}})

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	queued, err := mr.List(tasks.QueueScriptGeneration)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	var task tasks.ScriptTaskPayload
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &task))
	assert.Equal(t, story.ID, task.StoryID)
	assert.Equal(t, []string{"The Crossing"}, task.SceneTitleHints)
}
