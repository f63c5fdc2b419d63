package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cached-task-api/internal/models"
	"cached-task-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description" binding:"required"`
	Status      models.TaskStatus   `json:"status"`
	ProjectID   string              `json:"projectId"`
	Assignee    models.Assignee     `json:"assignee" binding:"required"`
	StartDate   string              `json:"startDate" binding:"required"`
	EndDate     string              `json:"endDate" binding:"required"`
	Effort      int                 `json:"effort"`
	Priority    models.TaskPriority `json:"priority"`
	TaskType    models.TaskType     `json:"taskType" binding:"required"`
}

// UpdateTaskRequest represents the request payload for updating a task
type UpdateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *models.TaskStatus   `json:"status"`
	ProjectID   *string              `json:"projectId"`
	Assignee    *models.Assignee     `json:"assignee"`
	StartDate   *string              `json:"startDate"`
	EndDate     *string              `json:"endDate"`
	Effort      *int                 `json:"effort"`
	Priority    *models.TaskPriority `json:"priority"`
	TaskType    *models.TaskType     `json:"taskType"`
}

// UpdateTaskStatusRequest represents a minimal request to change status
type UpdateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required"`
}

func parseDateFlexible(dateStr string) (time.Time, bool) {
	if dateStr == "" {
		return time.Time{}, false
	}
	layouts := []string{
		"2006-01-02",  // ISO date
		"2 Jan 2006",  // e.g., 30 Oct 2025
		time.RFC3339,  // full RFC3339
		"02 Jan 2006", // zero-padded day
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func calculateEffortDays(startDateStr, endDateStr string) int {
	start, okStart := parseDateFlexible(startDateStr)
	end, okEnd := parseDateFlexible(endDateStr)
	if !okStart || !okEnd {
		// Minimum effort when dates are invalid or missing
		return 1
	}
	// Normalize to midnight to avoid partial-day rounding issues
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	if end.Before(start) {
		start, end = end, start
	}
	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// checkProjectLink enforces the storyline rules: a story has no projectId,
// a defect or subtask must reference an existing story. On failure it returns
// the HTTP status and a client-facing message.
func (h *Handler) checkProjectLink(taskType models.TaskType, projectID string) (string, int, error) {
	projectID = strings.TrimSpace(projectID)
	switch taskType {
	case models.TypeStory:
		return "", 0, nil
	case models.TypeDefect, models.TypeSubtask:
		if projectID == "" {
			return "", http.StatusBadRequest, errors.New("projectId is required for subtask/defect and must reference a story id")
		}
		var parent models.Task
		err := h.db.Where("id = ? AND task_type = ?", projectID, models.TypeStory).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", http.StatusBadRequest, errors.New("Invalid projectId: parent story not found")
		}
		if err != nil {
			return "", http.StatusInternalServerError, errors.New("Failed to validate projectId")
		}
		return projectID, 0, nil
	default:
		return "", http.StatusBadRequest, errors.New("Invalid taskType")
	}
}

// enrichAssignee fills the assignee display name from the users table.
func (h *Handler) enrichAssignee(task *models.Task) {
	if task.AssigneeID == "" {
		return
	}
	var u models.User
	if err := h.db.Where("id = ?", task.AssigneeID).First(&u).Error; err == nil {
		task.Assignee = models.Assignee{ID: u.ID, Name: u.Username}
	}
}

// loadTaskPage runs the paginated listing query.
func (h *Handler) loadTaskPage(creator string, page, limit int, sort string) (models.TaskPage, error) {
	order := "created_at desc"
	if sort == "asc" {
		order = "created_at asc"
	}

	query := h.db.Model(&models.Task{})
	if creator != "" {
		query = query.Where("user_id = ?", creator)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return models.TaskPage{}, err
	}

	var tasks []models.Task
	if err := query.Session(&gorm.Session{}).Order(order).Limit(limit).Offset((page - 1) * limit).Find(&tasks).Error; err != nil {
		return models.TaskPage{}, err
	}

	var users []models.User
	if err := h.db.Find(&users).Error; err == nil {
		userByID := make(map[string]models.User, len(users))
		for _, u := range users {
			userByID[u.ID] = u
		}
		for i := range tasks {
			if u, ok := userByID[tasks[i].AssigneeID]; ok {
				tasks[i].Assignee = models.Assignee{ID: u.ID, Name: u.Username}
			}
		}
	}

	if tasks == nil {
		tasks = []models.Task{}
	}
	return models.TaskPage{
		Tasks: tasks,
		Count: len(tasks),
		Total: total,
		Page:  page,
		Limit: limit,
		Sort:  sort,
	}, nil
}

// ownedTask loads a task owned by userID without going through the cache.
func (h *Handler) ownedTask(taskID, userID string) (models.Task, error) {
	var task models.Task
	err := h.db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error
	return task, err
}

/*
*
GetTasks handles GET /api/tasks
Returns all tasks (team-wide) for authenticated users.
Optional query param: userId to filter tasks created by a specific user.
Pages are served from the task page cache.
*/
func (h *Handler) GetTasks(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	// Query params: page (default 1), limit (default 5), sort (asc|desc on created_at, default desc)
	sortParam := strings.ToLower(c.DefaultQuery("sort", "desc"))
	if sortParam != "asc" {
		sortParam = "desc"
	}
	filterUserID := c.Query("userId")

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 1 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	result, err := h.caches.TaskPages.GetOrCompute(taskPageKey(filterUserID, page, limit, sortParam), func() (models.TaskPage, error) {
		return h.loadTaskPage(filterUserID, page, limit, sortParam)
	}, 0)
	if err != nil {
		h.lookupFailed(c, err, "Tasks not found", "Failed to fetch tasks")
		return
	}

	c.JSON(http.StatusOK, result)
}

/*
*
CreateTask handles POST /api/tasks
Creates a new task for the authenticated user
*/
func (h *Handler) CreateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	projectID, code, err := h.checkProjectLink(req.TaskType, req.ProjectID)
	if err != nil {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}

	task := models.Task{
		ID:          "task-" + uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		ProjectID:   projectID,
		AssigneeID:  req.Assignee.ID,
		Assignee:    req.Assignee,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		// Effort is derived from the dates; the client value is ignored
		Effort:   calculateEffortDays(req.StartDate, req.EndDate),
		Priority: priority,
		TaskType: req.TaskType,
		UserID:   userID,
	}

	if err := h.db.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create task",
		})
		return
	}

	h.caches.InvalidateTask(task.ID)
	h.publish(userID, realtime.Event{Type: realtime.TaskCreated, TaskID: task.ID, UserID: userID, Version: 1})

	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PUT /api/tasks/:id
// Updates a task owned by the authenticated user
func (h *Handler) UpdateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	existingTask, err := h.ownedTask(taskID, userID)
	if err != nil {
		h.lookupFailed(c, err, "Task not found", "Failed to fetch task")
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if req.Title != nil {
		existingTask.Title = *req.Title
	}
	if req.Description != nil {
		existingTask.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		existingTask.Status = *req.Status
	}
	if req.ProjectID != nil {
		existingTask.ProjectID = *req.ProjectID
	}
	if req.Assignee != nil {
		existingTask.AssigneeID = req.Assignee.ID
		existingTask.Assignee = *req.Assignee
	}
	if req.StartDate != nil {
		existingTask.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		existingTask.EndDate = *req.EndDate
	}
	// Effort follows the dates whenever either one changes
	if req.StartDate != nil || req.EndDate != nil {
		existingTask.Effort = calculateEffortDays(existingTask.StartDate, existingTask.EndDate)
	}
	if req.Priority != nil {
		existingTask.Priority = *req.Priority
	}
	if req.TaskType != nil {
		existingTask.TaskType = *req.TaskType
	}

	projectID, code, err := h.checkProjectLink(existingTask.TaskType, existingTask.ProjectID)
	if err != nil {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	existingTask.ProjectID = projectID

	if err := h.db.Save(&existingTask).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update task",
		})
		return
	}

	h.caches.InvalidateTask(existingTask.ID)
	h.enrichAssignee(&existingTask)
	h.publish(userID, realtime.Event{Type: realtime.TaskUpdated, TaskID: existingTask.ID, UserID: userID, Version: 1})

	c.JSON(http.StatusOK, existingTask)
}

// GetTaskByID handles GET /api/tasks/:id
// Returns a single task owned by the authenticated user, served from the task cache
func (h *Handler) GetTaskByID(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	task, err := h.caches.Tasks.GetOrCompute(taskKey(taskID, userID), func() (models.Task, error) {
		task, err := h.ownedTask(taskID, userID)
		if err != nil {
			return models.Task{}, err
		}
		h.enrichAssignee(&task)
		return task, nil
	}, 0)
	if err != nil {
		h.lookupFailed(c, err, "Task not found", "Failed to fetch task")
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus handles PATCH /api/tasks/:id/status
// Updates only the status of a task owned by the authenticated user
func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	var req UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	task, err := h.ownedTask(taskID, userID)
	if err != nil {
		h.lookupFailed(c, err, "Task not found", "Failed to fetch task")
		return
	}

	// Update only the status column
	task.Status = req.Status
	if err := h.db.Model(&task).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	h.caches.InvalidateTask(task.ID)
	h.enrichAssignee(&task)
	h.publish(userID, realtime.Event{Type: realtime.TaskStatusChanged, TaskID: task.ID, UserID: userID, Version: 1})

	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:id
// Deletes a task owned by the authenticated user
func (h *Handler) DeleteTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	task, err := h.ownedTask(taskID, userID)
	if err != nil {
		h.lookupFailed(c, err, "Task not found", "Failed to fetch task")
		return
	}

	if err := h.db.Delete(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete task",
		})
		return
	}

	h.caches.InvalidateTask(taskID)
	h.publish(userID, realtime.Event{Type: realtime.TaskDeleted, TaskID: taskID, UserID: userID, Version: 1})

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
		"id":      taskID,
	})
}

// countByStatus tallies the tasks assigned to assigneeID.
func (h *Handler) countByStatus(assigneeID string) (models.StatusCounts, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	if err := h.db.Model(&models.Task{}).
		Select("status, COUNT(*) as count").
		Where("assignee_id = ?", assigneeID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return models.StatusCounts{}, err
	}

	var counts models.StatusCounts
	for _, r := range rows {
		switch models.TaskStatus(r.Status) {
		case models.StatusTodo:
			counts.Todo = r.Count
		case models.StatusInProgress:
			counts.InProgress = r.Count
		case models.StatusDone:
			counts.Done = r.Count
		}
		counts.Total += r.Count
	}
	return counts, nil
}

// GetStatsByUser handles GET /api/stats/:userid
// Returns counts of tasks by status where the assignee matches :userid.
// Counts are kept in the durable stats cache.
func (h *Handler) GetStatsByUser(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	targetUserID := strings.TrimSpace(c.Param("userid"))
	if targetUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userid is required"})
		return
	}

	counts, err := h.caches.Stats.GetOrCompute(statsKey(targetUserID), func() (models.StatusCounts, error) {
		return h.countByStatus(targetUserID)
	}, 0)
	if err != nil {
		h.lookupFailed(c, err, "Stats not found", "Failed to compute stats")
		return
	}

	c.JSON(http.StatusOK, counts)
}
