package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/records-explorer-go/internal/models"
	"github.com/jengzang/records-explorer-go/internal/service"
	"github.com/jengzang/records-explorer-go/pkg/response"
)

// ActivityHandler handles HTTP requests for activities
type ActivityHandler struct {
	activityService *service.ActivityService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
	}
}

// CreateActivity handles POST /api/v1/activities
func (h *ActivityHandler) CreateActivity(c *gin.Context) {
	var req models.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	activity, err := h.activityService.CreateActivity(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Created(c, activity)
}

// GetActivities handles GET /api/v1/activities
func (h *ActivityHandler) GetActivities(c *gin.Context) {
	var filter models.ActivityFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	result, err := h.activityService.ListActivities(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// GetActivity handles GET /api/v1/activities/:id
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	id, ok := parseActivityID(c)
	if !ok {
		return
	}

	activity, err := h.activityService.GetActivity(c.Request.Context(), id)
	if err != nil {
		writeActivityError(c, err)
		return
	}

	response.Success(c, activity)
}

// DeleteActivity handles DELETE /api/v1/activities/:id
func (h *ActivityHandler) DeleteActivity(c *gin.Context) {
	id, ok := parseActivityID(c)
	if !ok {
		return
	}

	if err := h.activityService.DeleteActivity(c.Request.Context(), id); err != nil {
		writeActivityError(c, err)
		return
	}

	response.Success(c, gin.H{"id": id, "deleted": true})
}

func parseActivityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid activity ID")
		return 0, false
	}
	return id, true
}

func writeActivityError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrActivityNotFound) {
		response.NotFound(c, "Activity not found")
		return
	}
	response.InternalError(c, err.Error())
}
