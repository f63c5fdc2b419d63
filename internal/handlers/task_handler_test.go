package handlers

import (
	"net/http"
	"sync/atomic"
	"testing"

	"cached-task-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTask(t *testing.T, env *testEnv, task models.Task) models.Task {
	t.Helper()
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	if task.TaskType == "" {
		task.TaskType = models.TypeStory
	}
	require.NoError(t, env.db.Create(&task).Error)
	return task
}

func storyPayload(title, assigneeID string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "Desc",
		"assignee":    map[string]string{"id": assigneeID},
		"startDate":   "2025-01-01",
		"endDate":     "2025-01-03",
		"taskType":    "story",
	}
}

func TestCreateTask_Success(t *testing.T) {
	env := newTestEnv(t)

	// Seed a user to be the assignee
	assignee := models.User{ID: "u-2", Username: "bob", Password: "x"}
	require.NoError(t, env.db.Create(&assignee).Error)

	w := env.do(t, http.MethodPost, "/api/tasks", env.token(t, "u-1", "alice"), storyPayload("Test Task", assignee.ID))
	require.Equal(t, http.StatusCreated, w.Code)

	created := decode[models.Task](t, w)
	require.Equal(t, 2, created.Effort) // 2025-01-01 to 2025-01-03 => 2 days
	require.Equal(t, assignee.ID, created.Assignee.ID)
	require.Equal(t, models.StatusTodo, created.Status)
	require.Equal(t, models.PriorityMedium, created.Priority)
	require.Contains(t, created.ID, "task-")
}

func TestCreateTask_StorylineRules(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	seedTask(t, env, models.Task{ID: "story-1", Title: "Story", UserID: "u-1"})

	subtask := storyPayload("Sub", "u-1")
	subtask["taskType"] = "subtask"
	w := env.do(t, http.MethodPost, "/api/tasks", token, subtask)
	require.Equal(t, http.StatusBadRequest, w.Code, "subtask without projectId")

	subtask["projectId"] = "missing"
	w = env.do(t, http.MethodPost, "/api/tasks", token, subtask)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "parent story not found")

	subtask["projectId"] = "story-1"
	w = env.do(t, http.MethodPost, "/api/tasks", token, subtask)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "story-1", decode[models.Task](t, w).ProjectID)

	story := storyPayload("Story 2", "u-1")
	story["projectId"] = "story-1"
	w = env.do(t, http.MethodPost, "/api/tasks", token, story)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Empty(t, decode[models.Task](t, w).ProjectID, "stories are never linked")

	bad := storyPayload("Epic", "u-1")
	bad["taskType"] = "epic"
	w = env.do(t, http.MethodPost, "/api/tasks", token, bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTasks_ServedFromCacheUntilWrite(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	seedTask(t, env, models.Task{ID: "t-1", Title: "One", UserID: "u-1"})

	w := env.do(t, http.MethodGet, "/api/tasks?limit=10", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, decode[models.TaskPage](t, w).Total)

	// A row written behind the API is not visible until something invalidates.
	seedTask(t, env, models.Task{ID: "t-2", Title: "Two", UserID: "u-1"})
	w = env.do(t, http.MethodGet, "/api/tasks?limit=10", token, nil)
	require.EqualValues(t, 1, decode[models.TaskPage](t, w).Total)

	w = env.do(t, http.MethodPost, "/api/tasks", token, storyPayload("Three", "u-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/tasks?limit=10", token, nil)
	page := decode[models.TaskPage](t, w)
	require.EqualValues(t, 3, page.Total)
	require.Equal(t, 3, page.Count)
	require.Equal(t, "desc", page.Sort)
}

func TestGetTasks_PaginationAndFilter(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	for _, id := range []string{"a", "b", "c"} {
		seedTask(t, env, models.Task{ID: id, Title: id, UserID: "u-1"})
	}
	seedTask(t, env, models.Task{ID: "d", Title: "d", UserID: "u-2"})

	w := env.do(t, http.MethodGet, "/api/tasks?page=2&limit=2&userId=u-1&sort=ASC", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.TaskPage](t, w)
	require.EqualValues(t, 3, page.Total)
	require.Equal(t, 1, page.Count)
	require.Equal(t, 2, page.Page)
	require.Equal(t, "asc", page.Sort)

	stats := env.h.Caches().TaskPages.Stats()
	require.Equal(t, []string{"tasks:list:u-1:2:2:asc"}, stats.Keys)
}

func TestGetTaskByID_NotFoundIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")

	w := env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	seedTask(t, env, models.Task{ID: "t-1", Title: "Late", UserID: "u-1"})
	w = env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Late", decode[models.Task](t, w).Title)
}

func TestGetTaskByID_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, models.Task{ID: "t-1", Title: "Mine", UserID: "u-1"})

	w := env.do(t, http.MethodGet, "/api/tasks/t-1", env.token(t, "u-2", "bob"), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTaskByID_RepeatedReadsQueryOnce(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, models.Task{ID: "t-1", Title: "Hot", UserID: "u-1"})

	var queries atomic.Int32
	require.NoError(t, env.db.Callback().Query().Before("gorm:query").Register("test:count", func(db *gorm.DB) {
		if db.Statement.Table == "tasks" {
			queries.Add(1)
		}
	}))

	token := env.token(t, "u-1", "alice")
	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.EqualValues(t, 1, queries.Load())
}

func TestUpdateTask_InvalidatesCachedTask(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	seedTask(t, env, models.Task{ID: "t-1", Title: "Before", UserID: "u-1", StartDate: "2025-01-01", EndDate: "2025-01-02"})

	w := env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
	require.Equal(t, "Before", decode[models.Task](t, w).Title)

	w = env.do(t, http.MethodPut, "/api/tasks/t-1", token, map[string]any{"title": "After", "endDate": "2025-01-11"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 10, decode[models.Task](t, w).Effort)

	w = env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
	require.Equal(t, "After", decode[models.Task](t, w).Title)

	w = env.do(t, http.MethodPut, "/api/tasks/t-1", env.token(t, "u-2", "bob"), map[string]any{"title": "Hijack"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTaskStatus_RefreshesStats(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	seedTask(t, env, models.Task{ID: "t-1", Title: "One", UserID: "u-1", AssigneeID: "u-2"})
	seedTask(t, env, models.Task{ID: "t-2", Title: "Two", UserID: "u-1", AssigneeID: "u-2", Status: models.StatusInProgress})

	w := env.do(t, http.MethodGet, "/api/stats/u-2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.StatusCounts{Todo: 1, InProgress: 1, Total: 2}, decode[models.StatusCounts](t, w))

	w = env.do(t, http.MethodPatch, "/api/tasks/t-1/status", token, map[string]any{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.StatusDone, decode[models.Task](t, w).Status)

	w = env.do(t, http.MethodGet, "/api/stats/u-2", token, nil)
	require.Equal(t, models.StatusCounts{InProgress: 1, Done: 1, Total: 2}, decode[models.StatusCounts](t, w))

	w = env.do(t, http.MethodPatch, "/api/tasks/t-1/status", token, map[string]any{"status": "archived"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStatsByUser_SurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	seedTask(t, env, models.Task{ID: "t-1", Title: "One", UserID: "u-1", AssigneeID: "u-2"})

	w := env.do(t, http.MethodGet, "/api/stats/u-2", token, nil)
	require.Equal(t, models.StatusCounts{Todo: 1, Total: 1}, decode[models.StatusCounts](t, w))

	var rec models.CacheRecord
	require.NoError(t, env.db.Where("storage_key = ?", testStatsKey).First(&rec).Error)
	require.Contains(t, rec.Value, `"stats:u-2"`)

	// A fresh cache set over the same database starts with the persisted tally.
	restarted := newTestCaches(env.db)
	counts, ok := restarted.Stats.Get("stats:u-2")
	require.True(t, ok)
	require.Equal(t, models.StatusCounts{Todo: 1, Total: 1}, counts)
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u-1", "alice")
	seedTask(t, env, models.Task{ID: "t-1", Title: "Doomed", UserID: "u-1"})

	w := env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/tasks/t-1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "t-1", decode[gin.H](t, w)["id"])

	w = env.do(t, http.MethodGet, "/api/tasks/t-1", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/tasks/t-1", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTaskWrites_PublishEvents(t *testing.T) {
	env := newTestEnv(t)
	client := &recordingClient{}
	env.hub.Register("u-1", client)

	w := env.do(t, http.MethodPost, "/api/tasks", env.token(t, "u-1", "alice"), storyPayload("Evented", "u-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, client.messages(), 1)
	require.Contains(t, string(client.messages()[0]), `"type":"task_created"`)
}

func TestCalculateEffortDays(t *testing.T) {
	require.Equal(t, 2, calculateEffortDays("2025-01-01", "2025-01-03"))
	require.Equal(t, 2, calculateEffortDays("2025-01-03", "2025-01-01"))
	require.Equal(t, 1, calculateEffortDays("2025-01-01", "2025-01-01"))
	require.Equal(t, 29, calculateEffortDays("1 Oct 2025", "30 Oct 2025"))
	require.Equal(t, 1, calculateEffortDays("", "2025-01-01"))
}
