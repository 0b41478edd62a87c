package models

import (
	"time"
)

// ChangeStatus is the review state of a change. Transitions are monotonic:
// once approved or rejected a change never moves again.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeApproved ChangeStatus = "approved"
	ChangeRejected ChangeStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s ChangeStatus) Terminal() bool {
	return s == ChangeApproved || s == ChangeRejected
}

// ChangeType describes what a change does to its file.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
	ChangeRename ChangeType = "rename"
)

// Valid reports whether the change type is one of the known values.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeCreate, ChangeModify, ChangeDelete, ChangeRename:
		return true
	}
	return false
}

// Change is a proposed, reviewable edit to one file within one branch.
// Records are never deleted; status and reviewer fields mutate exactly
// once, at review time (or immediately for owner submissions).
type Change struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ProjectID  uint       `gorm:"index:idx_change_lookup;not null" json:"project_id"`
	Project    *Project   `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Branch     string     `gorm:"index:idx_change_lookup;size:200;not null" json:"branch"`
	AuthorID   uint       `gorm:"index;not null" json:"author_id"`
	Author     *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	FilePath   string     `gorm:"size:500;not null" json:"file_path"`
	OldPath    string     `gorm:"size:500" json:"old_path"` // set for renames: the path being moved away from
	ChangeType ChangeType `gorm:"size:20;not null" json:"change_type"`
	OldContent string     `gorm:"type:text" json:"old_content"`
	NewContent string     `gorm:"type:text" json:"new_content"`
	Diff       string     `gorm:"type:text" json:"diff"` // derived, immutable once computed

	Status        ChangeStatus `gorm:"index:idx_change_lookup;size:20;default:pending" json:"status"`
	ReviewedByID  *uint        `json:"reviewed_by_id"`
	ReviewedBy    *User        `gorm:"foreignKey:ReviewedByID" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time   `json:"reviewed_at"`
	ReviewComment string       `gorm:"size:2000" json:"review_comment"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Change) TableName() string { return "changes" }
