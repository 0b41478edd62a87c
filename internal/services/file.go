package services

import (
	"errors"
	"fmt"

	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

// FileService is the direct file surface: tree listing, content reads,
// and immediate create/rename/delete for members with write access.
// These operations bypass the review workflow; reviewable edits go
// through ChangeService instead.
type FileService struct {
	db    *gorm.DB
	store *storage.Store
}

func NewFileService(db *gorm.DB, store *storage.Store) *FileService {
	return &FileService{db: db, store: store}
}

type CreateFileRequest struct {
	FilePath string `json:"file_path" binding:"required"`
	Content  string `json:"content"`
}

type RenameFileRequest struct {
	OldPath string `json:"old_path" binding:"required"`
	NewPath string `json:"new_path" binding:"required"`
}

type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Tree lists a branch's file tree. Read access suffices.
func (s *FileService) Tree(projectID, userID uint, branch string) ([]storage.TreeEntry, error) {
	if _, err := s.requireAccess(projectID, userID, false); err != nil {
		return nil, err
	}
	tree, err := s.store.Tree(projectID, branch)
	if err != nil {
		return nil, response.NewServerError(fmt.Sprintf("failed to list files: %v", err))
	}
	return tree, nil
}

// Read returns a file's content. Read access suffices.
func (s *FileService) Read(projectID, userID uint, branch, path string) (*FileContent, error) {
	if _, err := s.requireAccess(projectID, userID, false); err != nil {
		return nil, err
	}
	data, err := s.store.Read(projectID, branch, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, response.NewNotFound("file not found")
		}
		if errors.Is(err, storage.ErrInvalidPath) {
			return nil, response.NewBadRequest("invalid file path")
		}
		return nil, response.NewServerError(err.Error())
	}
	return &FileContent{Path: path, Content: string(data)}, nil
}

// Create writes a new file directly. Requires write access; fails with
// Conflict if the path already exists.
func (s *FileService) Create(projectID, userID uint, branch string, req *CreateFileRequest) (*FileContent, error) {
	if _, err := s.requireAccess(projectID, userID, true); err != nil {
		return nil, err
	}
	if s.store.Exists(projectID, branch, req.FilePath) {
		return nil, response.NewConflict("file already exists")
	}
	if err := s.store.Write(projectID, branch, req.FilePath, []byte(req.Content)); err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return nil, response.NewBadRequest("invalid file path")
		}
		return nil, response.NewServerError(err.Error())
	}
	return &FileContent{Path: req.FilePath, Content: req.Content}, nil
}

// Rename moves a file. Requires write access; fails with Conflict if
// the destination already exists.
func (s *FileService) Rename(projectID, userID uint, branch string, req *RenameFileRequest) error {
	if _, err := s.requireAccess(projectID, userID, true); err != nil {
		return err
	}
	if s.store.Exists(projectID, branch, req.NewPath) {
		return response.NewConflict("destination already exists")
	}
	err := s.store.Rename(projectID, branch, req.OldPath, req.NewPath)
	if errors.Is(err, storage.ErrNotFound) {
		return response.NewNotFound("file not found")
	}
	if errors.Is(err, storage.ErrInvalidPath) {
		return response.NewBadRequest("invalid file path")
	}
	if err != nil {
		return response.NewServerError(err.Error())
	}
	return nil
}

// Delete removes a file or directory. Requires write access.
func (s *FileService) Delete(projectID, userID uint, branch, path string) error {
	if _, err := s.requireAccess(projectID, userID, true); err != nil {
		return err
	}
	err := s.store.Delete(projectID, branch, path)
	if errors.Is(err, storage.ErrNotFound) {
		return response.NewNotFound("file not found")
	}
	if errors.Is(err, storage.ErrInvalidPath) {
		return response.NewBadRequest("invalid file path")
	}
	if err != nil {
		return response.NewServerError(err.Error())
	}
	return nil
}

func (s *FileService) requireAccess(projectID, userID uint, write bool) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Collaborators").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}
	if write {
		if !project.HasWriteAccess(userID) {
			return nil, response.NewForbidden("write access denied")
		}
	} else if !project.HasAccess(userID) {
		return nil, response.NewForbidden("access denied")
	}
	return &project, nil
}
