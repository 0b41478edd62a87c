package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/codehive/backend/internal/middleware"
	"github.com/codehive/backend/internal/services"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

type ChangeHandler struct {
	changeService *services.ChangeService
	mergeService  *services.MergeService
}

func NewChangeHandler(db *gorm.DB, store *storage.Store) *ChangeHandler {
	return &ChangeHandler{
		changeService: services.NewChangeService(db, store),
		mergeService:  services.NewMergeService(db, store),
	}
}

// List returns a branch's changes, optionally filtered by status
// GET /api/changes/:projectId/:branch
func (h *ChangeHandler) List(c *gin.Context) {
	projectID, ok := parseID(c, "projectId")
	if !ok {
		return
	}

	var req services.ChangeListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	changes, err := h.changeService.List(projectID, c.Param("branch"), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"changes": changes})
}

// Submit records a proposed edit; owner submissions are applied
// immediately
// POST /api/changes
func (h *ChangeHandler) Submit(c *gin.Context) {
	var req services.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.changeService.Submit(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"change": change})
}

type reviewRequest struct {
	Comment string `json:"comment"`
}

// Approve applies a pending change and marks it approved
// POST /api/changes/:changeId/approve
func (h *ChangeHandler) Approve(c *gin.Context) {
	changeID, ok := parseID(c, "changeId")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.changeService.Approve(changeID, middleware.GetUserID(c), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"change": change})
}

// Reject marks a pending change rejected
// POST /api/changes/:changeId/reject
func (h *ChangeHandler) Reject(c *gin.Context) {
	changeID, ok := parseID(c, "changeId")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.changeService.Reject(changeID, middleware.GetUserID(c), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"change": change})
}

type mergeRequest struct {
	TargetBranch string `json:"target_branch"`
}

// Merge copies a fully reviewed branch onto the target branch
// POST /api/projects/:id/merge/:branch
func (h *ChangeHandler) Merge(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.mergeService.Merge(projectID, c.Param("branch"), req.TargetBranch, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "branch merged successfully", "project": project})
}
