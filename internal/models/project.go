package models

import (
	"time"

	"gorm.io/gorm"
)

// CollaboratorRole controls what a collaborator may do inside a project.
type CollaboratorRole string

const (
	RoleRead  CollaboratorRole = "read"
	RoleWrite CollaboratorRole = "write"
	RoleAdmin CollaboratorRole = "admin"
)

// Valid reports whether the role is one of the known values.
func (r CollaboratorRole) Valid() bool {
	switch r {
	case RoleRead, RoleWrite, RoleAdmin:
		return true
	}
	return false
}

// CanWrite reports whether the role permits direct file mutation.
func (r CollaboratorRole) CanWrite() bool {
	return r == RoleWrite || r == RoleAdmin
}

// BranchStatus is the lifecycle state of a branch record.
type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchMerged   BranchStatus = "merged"
	BranchRejected BranchStatus = "rejected"
)

// Project represents a collaboratively edited, branch-versioned codebase.
// The owner always has implicit admin rights regardless of the
// collaborator list.
type Project struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:200;not null" json:"name"`
	Description   string         `gorm:"size:1000" json:"description"`
	OwnerID       uint           `gorm:"index;not null" json:"owner_id"`
	Owner         *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	MainBranch    string         `gorm:"size:200;default:main" json:"main_branch"`
	RepoURL       string         `gorm:"size:500" json:"repo_url"` // set when imported from a remote repository
	Collaborators []Collaborator `gorm:"foreignKey:ProjectID" json:"collaborators,omitempty"`
	Branches      []Branch       `gorm:"foreignKey:ProjectID" json:"branches,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

// IsOwner reports whether the given user owns the project.
func (p *Project) IsOwner(userID uint) bool {
	return p.OwnerID == userID
}

// HasAccess reports whether the user is the owner or a listed collaborator.
// Collaborators must be preloaded.
func (p *Project) HasAccess(userID uint) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, c := range p.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// HasWriteAccess reports whether the user may mutate files directly,
// outside the review workflow.
func (p *Project) HasWriteAccess(userID uint) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, c := range p.Collaborators {
		if c.UserID == userID && c.Role.CanWrite() {
			return true
		}
	}
	return false
}

// FindBranch returns the branch record with the given name, or nil.
// Branches must be preloaded.
func (p *Project) FindBranch(name string) *Branch {
	for i := range p.Branches {
		if p.Branches[i].Name == name {
			return &p.Branches[i]
		}
	}
	return nil
}

// Collaborator links a user to a project with a role.
type Collaborator struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	ProjectID uint             `gorm:"uniqueIndex:idx_project_user;not null" json:"project_id"`
	UserID    uint             `gorm:"uniqueIndex:idx_project_user;not null" json:"user_id"`
	User      *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      CollaboratorRole `gorm:"size:20;default:write" json:"role"`
	CreatedAt time.Time        `json:"added_at"`
}

func (Collaborator) TableName() string { return "collaborators" }

// Branch is a named, independently materialized snapshot of a project's
// file tree. Branch names are unique within a project.
type Branch struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ProjectID   uint         `gorm:"uniqueIndex:idx_project_branch;not null" json:"project_id"`
	Name        string       `gorm:"uniqueIndex:idx_project_branch;size:200;not null" json:"name"`
	CreatedByID uint         `json:"created_by_id"`
	CreatedBy   *User        `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	BaseBranch  string       `gorm:"size:200" json:"base_branch"`
	Status      BranchStatus `gorm:"size:20;default:active" json:"status"`
	MergedAt    *time.Time   `json:"merged_at"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (Branch) TableName() string { return "branches" }
