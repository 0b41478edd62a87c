package services

import (
	"errors"
	"fmt"

	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db    *gorm.DB
	store *storage.Store
}

func NewProjectService(db *gorm.DB, store *storage.Store) *ProjectService {
	return &ProjectService{db: db, store: store}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description"`
}

type ProjectListResponse struct {
	Owned         []models.Project `json:"owned_projects"`
	Collaborating []models.Project `json:"collaborating_projects"`
}

type AddCollaboratorRequest struct {
	Username string                  `json:"username" binding:"required"`
	Role     models.CollaboratorRole `json:"role"`
}

type CreateBranchRequest struct {
	BranchName string `json:"branch_name" binding:"required,max=200"`
	BaseBranch string `json:"base_branch"`
}

// Create registers a project owned by userID and materializes its main
// branch directory.
func (s *ProjectService) Create(req *CreateProjectRequest, userID uint) (*models.Project, error) {
	project := models.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
		MainBranch:  "main",
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		branch := models.Branch{
			ProjectID:   project.ID,
			Name:        "main",
			CreatedByID: userID,
			Status:      models.BranchActive,
		}
		return tx.Create(&branch).Error
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.EnsureBranchDir(project.ID, "main"); err != nil {
		return nil, response.NewServerError(fmt.Sprintf("failed to create project directory: %v", err))
	}

	LogInfo("project", "create", "project "+project.Name+" created", &userID, &project.ID, nil)

	var created models.Project
	s.db.Preload("Owner").Preload("Branches").First(&created, project.ID)
	return &created, nil
}

// List returns the projects the user owns and the ones they
// collaborate on.
func (s *ProjectService) List(userID uint) (*ProjectListResponse, error) {
	var owned []models.Project
	err := s.db.Where("owner_id = ?", userID).
		Preload("Owner").
		Preload("Collaborators.User").
		Find(&owned).Error
	if err != nil {
		return nil, err
	}

	var collaborating []models.Project
	err = s.db.
		Joins("JOIN collaborators ON collaborators.project_id = projects.id AND collaborators.user_id = ?", userID).
		Preload("Owner").
		Preload("Collaborators.User").
		Find(&collaborating).Error
	if err != nil {
		return nil, err
	}

	return &ProjectListResponse{Owned: owned, Collaborating: collaborating}, nil
}

// Get returns a project with members and branches populated. The caller
// must be the owner or a collaborator.
func (s *ProjectService) Get(projectID, userID uint) (*models.Project, error) {
	var project models.Project
	err := s.db.
		Preload("Owner").
		Preload("Collaborators.User").
		Preload("Branches").
		Preload("Branches.CreatedBy").
		First(&project, projectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("project not found")
		}
		return nil, err
	}

	if !project.HasAccess(userID) {
		return nil, response.NewForbidden("access denied")
	}
	return &project, nil
}

// AddCollaborator grants another user access to the project. Owner only.
func (s *ProjectService) AddCollaborator(projectID, ownerID uint, req *AddCollaboratorRequest) (*models.Project, error) {
	project, err := s.Get(projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if !project.IsOwner(ownerID) {
		return nil, response.NewForbidden("only project owner can add collaborators")
	}

	role := req.Role
	if role == "" {
		role = models.RoleWrite
	}
	if !role.Valid() {
		return nil, response.NewBadRequest(fmt.Sprintf("unknown role %q", role))
	}

	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("user not found")
		}
		return nil, err
	}

	for _, c := range project.Collaborators {
		if c.UserID == user.ID {
			return nil, response.NewConflict("user is already a collaborator")
		}
	}
	if user.ID == project.OwnerID {
		return nil, response.NewConflict("owner is already a member")
	}

	collab := models.Collaborator{
		ProjectID: projectID,
		UserID:    user.ID,
		Role:      role,
	}
	if err := s.db.Create(&collab).Error; err != nil {
		return nil, err
	}

	LogInfo("project", "add_collaborator",
		fmt.Sprintf("user %s added as %s", user.Username, role), &ownerID, &projectID, nil)

	return s.Get(projectID, ownerID)
}

// CreateBranch records a new branch and materializes it by copying the
// base branch's file tree. Branch names are unique per project; any
// project member may create branches.
func (s *ProjectService) CreateBranch(projectID, userID uint, req *CreateBranchRequest) (*models.Project, error) {
	project, err := s.Get(projectID, userID)
	if err != nil {
		return nil, err
	}

	baseBranch := req.BaseBranch
	if baseBranch == "" {
		baseBranch = project.MainBranch
	}

	if project.FindBranch(req.BranchName) != nil {
		return nil, response.NewConflict("branch already exists")
	}

	branch := models.Branch{
		ProjectID:   projectID,
		Name:        req.BranchName,
		CreatedByID: userID,
		BaseBranch:  baseBranch,
		Status:      models.BranchActive,
	}
	if err := s.db.Create(&branch).Error; err != nil {
		return nil, err
	}

	if err := s.store.CopyTree(projectID, baseBranch, req.BranchName); err != nil {
		return nil, response.NewServerError(fmt.Sprintf("failed to copy base branch files: %v", err))
	}

	LogInfo("project", "create_branch",
		fmt.Sprintf("branch %s created from %s", req.BranchName, baseBranch), &userID, &projectID, nil)

	return s.Get(projectID, userID)
}
