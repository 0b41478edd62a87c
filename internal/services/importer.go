package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/logger"
	"gorm.io/gorm"
)

// ImportService populates a project branch's file tree by cloning a
// remote Git repository. Only the resulting working tree is kept; the
// clone's .git directory is discarded because branch versioning is
// handled by the store, not by Git.
type ImportService struct {
	db    *gorm.DB
	store *storage.Store
}

func NewImportService(db *gorm.DB, store *storage.Store) *ImportService {
	return &ImportService{db: db, store: store}
}

// ProcessImportTask clones the repository into the target branch
// directory. It is wired as the task queue processor.
func (s *ImportService) ProcessImportTask(ctx context.Context, task *ImportTask) error {
	dir, err := s.store.BranchDir(task.ProjectID, task.Branch)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	logger.Info().
		Uint("project_id", task.ProjectID).
		Str("repo_url", task.RepoURL).
		Str("branch", task.Branch).
		Msg("importing repository")

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   task.RepoURL,
		Depth: 1,
	})
	if err != nil {
		// Leave no partial tree behind
		os.RemoveAll(dir)
		LogError("import", "clone",
			fmt.Sprintf("failed to clone %s: %v", task.RepoURL, err),
			&task.RequestedBy, &task.ProjectID, nil)
		return err
	}

	// Only the working tree is wanted
	if err := os.RemoveAll(filepath.Join(dir, ".git")); err != nil {
		return err
	}

	s.db.Model(&models.Project{}).
		Where("id = ?", task.ProjectID).
		Update("repo_url", task.RepoURL)

	LogInfo("import", "clone",
		fmt.Sprintf("repository %s imported into branch %s", task.RepoURL, task.Branch),
		&task.RequestedBy, &task.ProjectID, nil)
	return nil
}
