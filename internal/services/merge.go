package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

// MergeService gates branch-to-branch merges on the change ledger: a
// branch may only be merged once every proposed edit on it has been
// reviewed. A merge is a one-directional bulk copy, not a three-way
// merge; colliding paths are replaced by the source version.
type MergeService struct {
	db      *gorm.DB
	store   *storage.Store
	changes *ChangeService
}

func NewMergeService(db *gorm.DB, store *storage.Store) *MergeService {
	return &MergeService{
		db:      db,
		store:   store,
		changes: NewChangeService(db, store),
	}
}

// Merge copies sourceBranch's materialized tree onto targetBranch and
// marks the source branch merged. Only the project owner may merge.
// The source branch and its change history are kept.
func (s *MergeService) Merge(projectID uint, sourceBranch, targetBranch string, requesterID uint) (*models.Project, error) {
	var project models.Project
	err := s.db.Preload("Collaborators").Preload("Branches").Preload("Branches.CreatedBy").
		First(&project, projectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	if !project.IsOwner(requesterID) {
		return nil, response.NewForbidden("only project owner can merge branches")
	}

	if targetBranch == "" {
		targetBranch = project.MainBranch
	}

	branch := project.FindBranch(sourceBranch)
	if branch == nil {
		return nil, response.NewNotFound("branch not found")
	}

	pending, err := s.changes.CountPending(projectID, sourceBranch)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, response.NewInvalidState(
			fmt.Sprintf("cannot merge: %d pending changes must be reviewed first", pending))
	}

	if err := s.store.CopyTree(projectID, sourceBranch, targetBranch); err != nil {
		return nil, response.NewServerError(fmt.Sprintf("failed to copy branch files: %v", err))
	}

	now := time.Now()
	err = s.db.Model(&models.Branch{}).
		Where("project_id = ? AND name = ?", projectID, sourceBranch).
		Updates(map[string]interface{}{
			"status":    models.BranchMerged,
			"merged_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	branch.Status = models.BranchMerged
	branch.MergedAt = &now

	LogInfo("merge", "merge",
		fmt.Sprintf("branch %s merged into %s", sourceBranch, targetBranch),
		&requesterID, &projectID, map[string]interface{}{
			"source": sourceBranch,
			"target": targetBranch,
		})

	return &project, nil
}
