package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/pkg/response"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestEnv(t *testing.T) (*gorm.DB, *storage.Store) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Project{}, &models.Collaborator{},
		&models.Branch{}, &models.Change{}, &models.ActivityLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return db, store
}

type testProject struct {
	project  *models.Project
	owner    *models.User
	member   *models.User
	outsider *models.User
}

func seedProject(t *testing.T, db *gorm.DB) *testProject {
	t.Helper()

	owner := &models.User{Username: "owner", Email: "owner@example.com", Password: "x"}
	member := &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	outsider := &models.User{Username: "mallory", Email: "mallory@example.com", Password: "x"}
	for _, u := range []*models.User{owner, member, outsider} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("failed to create user %s: %v", u.Username, err)
		}
	}

	project := &models.Project{Name: "demo", OwnerID: owner.ID, MainBranch: "main"}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	branch := &models.Branch{ProjectID: project.ID, Name: "main", CreatedByID: owner.ID, Status: models.BranchActive}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("failed to create branch: %v", err)
	}
	collab := &models.Collaborator{ProjectID: project.ID, UserID: member.ID, Role: models.RoleWrite}
	if err := db.Create(collab).Error; err != nil {
		t.Fatalf("failed to create collaborator: %v", err)
	}

	return &testProject{project: project, owner: owner, member: member, outsider: outsider}
}

func appErrStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *response.AppError, got %T: %v", err, err)
	}
	return appErr.HTTPStatus
}

func appErrCode(t *testing.T, err error) int {
	t.Helper()
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *response.AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestSubmit_CollaboratorChangeStaysPending(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	change, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "main.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package main\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if change.Status != models.ChangePending {
		t.Errorf("expected status pending, got %s", change.Status)
	}
	if change.ReviewedByID != nil {
		t.Error("pending change should have no reviewer")
	}
	if _, err := store.Read(env.project.ID, "main", "main.go"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("pending change must not touch files, Read err = %v", err)
	}
	if !strings.Contains(change.Diff, "package main") {
		t.Errorf("diff should contain the new content, got %q", change.Diff)
	}
}

func TestSubmit_OwnerAutoApproved(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	change, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "README.md",
		ChangeType: models.ChangeCreate,
		NewContent: "# Demo\n",
	}, env.owner.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if change.Status != models.ChangeApproved {
		t.Errorf("owner submission should be approved, got %s", change.Status)
	}
	if change.ReviewedByID == nil || *change.ReviewedByID != env.owner.ID {
		t.Error("owner submission should record the owner as reviewer")
	}
	if change.ReviewedAt == nil {
		t.Error("owner submission should record a review time")
	}

	data, err := store.Read(env.project.ID, "main", "README.md")
	if err != nil {
		t.Fatalf("approved change should be materialized: %v", err)
	}
	if string(data) != "# Demo\n" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestSubmit_Validation(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	tests := []struct {
		name       string
		req        *SubmitChangeRequest
		authorID   uint
		wantStatus int
	}{
		{
			name: "unknown change type",
			req: &SubmitChangeRequest{
				ProjectID: env.project.ID, Branch: "main",
				FilePath: "a.go", ChangeType: "replace",
			},
			authorID:   env.member.ID,
			wantStatus: 400,
		},
		{
			name: "rename without old path",
			req: &SubmitChangeRequest{
				ProjectID: env.project.ID, Branch: "main",
				FilePath: "b.go", ChangeType: models.ChangeRename,
			},
			authorID:   env.member.ID,
			wantStatus: 400,
		},
		{
			name: "outsider denied",
			req: &SubmitChangeRequest{
				ProjectID: env.project.ID, Branch: "main",
				FilePath: "c.go", ChangeType: models.ChangeCreate,
			},
			authorID:   env.outsider.ID,
			wantStatus: 403,
		},
		{
			name: "unknown project",
			req: &SubmitChangeRequest{
				ProjectID: 9999, Branch: "main",
				FilePath: "d.go", ChangeType: models.ChangeCreate,
			},
			authorID:   env.member.ID,
			wantStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(tt.req, tt.authorID)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := appErrStatus(t, err); got != tt.wantStatus {
				t.Errorf("expected HTTP status %d, got %d", tt.wantStatus, got)
			}
		})
	}
}

func TestApprove_MaterializesFile(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "util.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package util\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	approved, err := svc.Approve(submitted.ID, env.owner.ID, "looks good")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != models.ChangeApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.ReviewComment != "looks good" {
		t.Errorf("expected review comment to be stored, got %q", approved.ReviewComment)
	}

	data, err := store.Read(env.project.ID, "main", "util.go")
	if err != nil {
		t.Fatalf("approved change should be materialized: %v", err)
	}
	if string(data) != "package util\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestReject_LeavesFilesUntouched(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "bad.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package bad\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rejected, err := svc.Reject(submitted.ID, env.owner.ID, "not needed")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.ChangeRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
	if _, err := store.Read(env.project.ID, "main", "bad.go"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("rejected change must not touch files, Read err = %v", err)
	}
}

func TestReview_NonOwnerForbidden(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "x.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package x\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := svc.Approve(submitted.ID, env.member.ID, ""); appErrStatus(t, err) != 403 {
		t.Errorf("collaborator approve should be forbidden, got %v", err)
	}
	if _, err := svc.Reject(submitted.ID, env.outsider.ID, ""); appErrStatus(t, err) != 403 {
		t.Errorf("outsider reject should be forbidden, got %v", err)
	}
}

func TestReview_TerminalChangeInvalidState(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "y.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package y\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := svc.Approve(submitted.ID, env.owner.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	_, err = svc.Approve(submitted.ID, env.owner.ID, "")
	if err == nil {
		t.Fatal("second review should fail")
	}
	if got := appErrCode(t, err); got != 4090 {
		t.Errorf("expected invalid-state code 4090, got %d", got)
	}

	_, err = svc.Reject(submitted.ID, env.owner.ID, "")
	if err == nil {
		t.Fatal("reject after approve should fail")
	}
	if got := appErrCode(t, err); got != 4090 {
		t.Errorf("expected invalid-state code 4090, got %d", got)
	}
}

func TestApprove_DeleteRemovesFile(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	if err := store.Write(env.project.ID, "main", "old.go", []byte("package old\n")); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "old.go",
		ChangeType: models.ChangeDelete,
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.OldContent != "package old\n" {
		t.Errorf("delete change should capture current content, got %q", submitted.OldContent)
	}

	if _, err := svc.Approve(submitted.ID, env.owner.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := store.Read(env.project.ID, "main", "old.go"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("approved delete should remove the file, Read err = %v", err)
	}
}

func TestApprove_RenameMovesContent(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	if err := store.Write(env.project.ID, "main", "a/src.go", []byte("package a\n")); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "b/dst.go",
		OldPath:    "a/src.go",
		ChangeType: models.ChangeRename,
		NewContent: "package b\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.OldContent != "package a\n" {
		t.Errorf("rename change should capture content at the old path, got %q", submitted.OldContent)
	}

	if _, err := svc.Approve(submitted.ID, env.owner.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	data, err := store.Read(env.project.ID, "main", "b/dst.go")
	if err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
	if string(data) != "package b\n" {
		t.Errorf("unexpected content %q", data)
	}
	if _, err := store.Read(env.project.ID, "main", "a/src.go"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("old path should be vacated, Read err = %v", err)
	}
}

func TestCountPending(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	for _, path := range []string{"one.go", "two.go"} {
		_, err := svc.Submit(&SubmitChangeRequest{
			ProjectID:  env.project.ID,
			Branch:     "main",
			FilePath:   path,
			ChangeType: models.ChangeCreate,
			NewContent: "package p\n",
		}, env.member.ID)
		if err != nil {
			t.Fatalf("Submit %s failed: %v", path, err)
		}
	}
	// Other branch must not count.
	other, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "feature",
		FilePath:   "three.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package p\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit on feature failed: %v", err)
	}
	_ = other

	count, err := svc.CountPending(env.project.ID, "main")
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 pending on main, got %d", count)
	}

	var first models.Change
	if err := db.Where("branch = ? AND file_path = ?", "main", "one.go").First(&first).Error; err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, err := svc.Approve(first.ID, env.owner.ID, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	count, err = svc.CountPending(env.project.ID, "main")
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 pending after approve, got %d", count)
	}
}

func TestList_FiltersByStatusAndAccess(t *testing.T) {
	db, store := newTestEnv(t)
	env := seedProject(t, db)
	svc := NewChangeService(db, store)

	submitted, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "f.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package f\n",
	}, env.member.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := svc.Reject(submitted.ID, env.owner.ID, "no"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if _, err := svc.Submit(&SubmitChangeRequest{
		ProjectID:  env.project.ID,
		Branch:     "main",
		FilePath:   "g.go",
		ChangeType: models.ChangeCreate,
		NewContent: "package g\n",
	}, env.member.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	all, err := svc.List(env.project.ID, "main", env.member.ID, &ChangeListRequest{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(all))
	}
	if all[0].Author == nil || all[0].Author.Username != "alice" {
		t.Error("expected author to be preloaded")
	}

	pending, err := svc.List(env.project.ID, "main", env.member.ID, &ChangeListRequest{Status: models.ChangePending})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].FilePath != "g.go" {
		t.Errorf("expected only the pending change, got %+v", pending)
	}

	if _, err := svc.List(env.project.ID, "main", env.outsider.ID, &ChangeListRequest{}); appErrStatus(t, err) != 403 {
		t.Errorf("outsider list should be forbidden, got %v", err)
	}
}
