package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/codehive/backend/internal/middleware"
	"github.com/codehive/backend/internal/services"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	projectService *services.ProjectService
	taskQueue      services.TaskQueue
}

func NewProjectHandler(db *gorm.DB, store *storage.Store, queue services.TaskQueue) *ProjectHandler {
	return &ProjectHandler{
		projectService: services.NewProjectService(db, store),
		taskQueue:      queue,
	}
}

// List returns the caller's owned and collaborating projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	resp, err := h.projectService.List(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// GetByID returns a project with members and branches populated
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(projectID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Create creates a new project with a materialized main branch
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

type cloneProjectRequest struct {
	RepoURL     string `json:"repo_url" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Clone creates a project and imports a remote repository into its main
// branch through the task queue
// POST /api/projects/clone
func (h *ProjectHandler) Clone(c *gin.Context) {
	var req cloneProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	project, err := h.projectService.Create(&services.CreateProjectRequest{
		Name:        req.Name,
		Description: req.Description,
	}, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	err = h.taskQueue.Enqueue(&services.ImportTask{
		ProjectID:   project.ID,
		RepoURL:     req.RepoURL,
		Branch:      project.MainBranch,
		RequestedBy: userID,
	})
	if err != nil {
		response.Error(c, response.NewServerError("failed to queue repository import: "+err.Error()))
		return
	}

	response.Created(c, gin.H{
		"project": project,
		"queued":  h.taskQueue.IsAsync(),
	})
}

// AddCollaborator grants a user access to the project
// POST /api/projects/:id/collaborators
func (h *ProjectHandler) AddCollaborator(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.AddCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.AddCollaborator(projectID, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// CreateBranch creates a branch from a base branch
// POST /api/projects/:id/branches
func (h *ProjectHandler) CreateBranch(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.CreateBranch(projectID, middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// parseID reads a uint path parameter, replying 400 on failure.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
