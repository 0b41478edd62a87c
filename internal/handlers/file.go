package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/codehive/backend/internal/middleware"
	"github.com/codehive/backend/internal/services"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

type FileHandler struct {
	fileService *services.FileService
}

func NewFileHandler(db *gorm.DB, store *storage.Store) *FileHandler {
	return &FileHandler{
		fileService: services.NewFileService(db, store),
	}
}

// Tree lists a branch's file tree
// GET /api/projects/:id/files/:branch
func (h *FileHandler) Tree(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	tree, err := h.fileService.Tree(projectID, middleware.GetUserID(c), c.Param("branch"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"file_tree": tree})
}

// Read returns a file's content
// GET /api/projects/:id/files/:branch/*path
func (h *FileHandler) Read(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	path := strings.TrimPrefix(c.Param("path"), "/")
	content, err := h.fileService.Read(projectID, middleware.GetUserID(c), c.Param("branch"), path)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, content)
}

// Create writes a new file directly, outside the review workflow
// POST /api/projects/:id/files/:branch/create
func (h *FileHandler) Create(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	content, err := h.fileService.Create(projectID, middleware.GetUserID(c), c.Param("branch"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, content)
}

// Rename moves a file
// PUT /api/projects/:id/files/:branch/rename
func (h *FileHandler) Rename(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.fileService.Rename(projectID, middleware.GetUserID(c), c.Param("branch"), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"old_path": req.OldPath, "new_path": req.NewPath})
}

// Delete removes a file or directory
// DELETE /api/projects/:id/files/:branch/*path
func (h *FileHandler) Delete(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	path := strings.TrimPrefix(c.Param("path"), "/")
	if err := h.fileService.Delete(projectID, middleware.GetUserID(c), c.Param("branch"), path); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": path})
}
