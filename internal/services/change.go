package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/codehive/backend/internal/diffutil"
	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

// ChangeService drives the review lifecycle of proposed edits:
// submit -> pending -> approved/rejected, with owner submissions
// approved and materialized synchronously. The change record is the
// single source of truth for review status; files are only mutated
// here and in MergeService.
type ChangeService struct {
	db    *gorm.DB
	store *storage.Store
}

func NewChangeService(db *gorm.DB, store *storage.Store) *ChangeService {
	return &ChangeService{db: db, store: store}
}

type SubmitChangeRequest struct {
	ProjectID  uint              `json:"project_id" binding:"required"`
	Branch     string            `json:"branch" binding:"required"`
	FilePath   string            `json:"file_path" binding:"required"`
	OldPath    string            `json:"old_path"` // required for renames
	ChangeType models.ChangeType `json:"change_type" binding:"required"`
	NewContent string            `json:"new_content"`
}

type ChangeListRequest struct {
	Status models.ChangeStatus `form:"status"`
}

// List returns the changes recorded for a project branch, newest first,
// optionally filtered by status. Caller must have project access.
func (s *ChangeService) List(projectID uint, branch string, userID uint, req *ChangeListRequest) ([]models.Change, error) {
	project, err := s.loadProject(projectID)
	if err != nil {
		return nil, err
	}
	if !project.HasAccess(userID) {
		return nil, response.NewForbidden("access denied")
	}

	query := s.db.Where("project_id = ? AND branch = ?", projectID, branch).
		Preload("Author").
		Preload("ReviewedBy").
		Order("created_at DESC")
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var changes []models.Change
	if err := query.Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// Get returns one change with author and reviewer populated.
func (s *ChangeService) Get(changeID uint) (*models.Change, error) {
	var change models.Change
	if err := s.db.Preload("Author").Preload("ReviewedBy").First(&change, changeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("change not found")
		}
		return nil, err
	}
	return &change, nil
}

// Submit records a proposed edit. Any collaborator may submit; the
// write/admin distinction only gates direct file mutation outside this
// flow. Owner submissions are approved and applied immediately, but
// still logged like reviewed changes. If the owner's apply fails the
// record is left pending and the failure is reported, so an approved
// status always implies a materialized file.
func (s *ChangeService) Submit(req *SubmitChangeRequest, authorID uint) (*models.Change, error) {
	if !req.ChangeType.Valid() {
		return nil, response.NewBadRequest(fmt.Sprintf("unknown change type %q", req.ChangeType))
	}
	if req.ChangeType == models.ChangeRename && req.OldPath == "" {
		return nil, response.NewBadRequest("rename requires old_path")
	}

	project, err := s.loadProject(req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.HasAccess(authorID) {
		return nil, response.NewForbidden("access denied")
	}

	oldContent := s.currentContent(req)

	change := models.Change{
		ProjectID:  req.ProjectID,
		Branch:     req.Branch,
		AuthorID:   authorID,
		FilePath:   req.FilePath,
		OldPath:    req.OldPath,
		ChangeType: req.ChangeType,
		OldContent: oldContent,
		NewContent: req.NewContent,
		Diff:       diffutil.Patch(req.FilePath, oldContent, req.NewContent),
		Status:     models.ChangePending,
	}
	if err := s.db.Create(&change).Error; err != nil {
		return nil, err
	}

	if project.IsOwner(authorID) {
		if err := s.apply(&change); err != nil {
			// Record stays pending so status never claims a write that
			// did not happen.
			return nil, response.NewServerError(fmt.Sprintf("change recorded but apply failed: %v", err))
		}
		now := time.Now()
		updates := map[string]interface{}{
			"status":         models.ChangeApproved,
			"reviewed_by_id": authorID,
			"reviewed_at":    now,
		}
		if err := s.db.Model(&change).Updates(updates).Error; err != nil {
			return nil, err
		}
		change.Status = models.ChangeApproved
		change.ReviewedByID = &authorID
		change.ReviewedAt = &now
	}

	s.db.Preload("Author").Preload("ReviewedBy").First(&change, change.ID)
	logReview(&change, "submit")
	return &change, nil
}

// Approve applies a pending change to the branch file tree and marks it
// approved. Only the project owner may review. The status transition is
// committed only after the file write succeeds.
func (s *ChangeService) Approve(changeID, reviewerID uint, comment string) (*models.Change, error) {
	return s.review(changeID, reviewerID, comment, true)
}

// Reject marks a pending change rejected without touching files.
func (s *ChangeService) Reject(changeID, reviewerID uint, comment string) (*models.Change, error) {
	return s.review(changeID, reviewerID, comment, false)
}

func (s *ChangeService) review(changeID, reviewerID uint, comment string, approve bool) (*models.Change, error) {
	var change models.Change
	if err := s.db.First(&change, changeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("change not found")
		}
		return nil, err
	}

	project, err := s.loadProject(change.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsOwner(reviewerID) {
		return nil, response.NewForbidden("only project owner can review changes")
	}
	if change.Status != models.ChangePending {
		return nil, response.NewInvalidState("change is not pending")
	}

	status := models.ChangeRejected
	action := "reject"
	if approve {
		if err := s.apply(&change); err != nil {
			return nil, response.NewServerError(fmt.Sprintf("failed to apply change: %v", err))
		}
		status = models.ChangeApproved
		action = "approve"
	}

	now := time.Now()
	// The pending guard doubles as an optimistic lock: a concurrent
	// reviewer whose update matched no rows gets InvalidState.
	result := s.db.Model(&models.Change{}).
		Where("id = ? AND status = ?", change.ID, models.ChangePending).
		Updates(map[string]interface{}{
			"status":         status,
			"reviewed_by_id": reviewerID,
			"reviewed_at":    now,
			"review_comment": comment,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, response.NewInvalidState("change is not pending")
	}

	s.db.Preload("Author").Preload("ReviewedBy").First(&change, change.ID)
	logReview(&change, action)
	return &change, nil
}

// CountPending reports the number of unreviewed changes on a branch.
func (s *ChangeService) CountPending(projectID uint, branch string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Change{}).
		Where("project_id = ? AND branch = ? AND status = ?", projectID, branch, models.ChangePending).
		Count(&count).Error
	return count, err
}

// apply materializes a change in the branch file store.
func (s *ChangeService) apply(change *models.Change) error {
	switch change.ChangeType {
	case models.ChangeCreate, models.ChangeModify:
		return s.store.Write(change.ProjectID, change.Branch, change.FilePath, []byte(change.NewContent))
	case models.ChangeDelete:
		err := s.store.Delete(change.ProjectID, change.Branch, change.FilePath)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	case models.ChangeRename:
		// FilePath is the destination; OldPath is the path being vacated.
		if err := s.store.Write(change.ProjectID, change.Branch, change.FilePath, []byte(change.NewContent)); err != nil {
			return err
		}
		if change.OldPath == "" || change.OldPath == change.FilePath {
			return nil
		}
		err := s.store.Delete(change.ProjectID, change.Branch, change.OldPath)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown change type %q", change.ChangeType)
}

// currentContent reads the file content the change is based on.
func (s *ChangeService) currentContent(req *SubmitChangeRequest) string {
	if req.ChangeType == models.ChangeCreate {
		return ""
	}
	path := req.FilePath
	if req.ChangeType == models.ChangeRename {
		path = req.OldPath
	}
	data, err := s.store.Read(req.ProjectID, req.Branch, path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (s *ChangeService) loadProject(projectID uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.Preload("Collaborators").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}
	return &project, nil
}

func logReview(change *models.Change, action string) {
	LogInfo("change", action,
		fmt.Sprintf("change %d on %s (%s) now %s", change.ID, change.FilePath, change.Branch, change.Status),
		&change.AuthorID, &change.ProjectID, map[string]interface{}{
			"branch": change.Branch,
			"status": change.Status,
		})
}
