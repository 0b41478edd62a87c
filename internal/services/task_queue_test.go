package services

import (
	"context"
	"errors"
	"testing"
)

func TestSyncQueue_ProcessesInline(t *testing.T) {
	q := NewSyncQueue()

	var got *ImportTask
	q.SetProcessor(func(ctx context.Context, task *ImportTask) error {
		got = task
		return nil
	})

	task := &ImportTask{ProjectID: 7, RepoURL: "https://example.com/repo.git", Branch: "main", RequestedBy: 1}
	if err := q.Enqueue(task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if got == nil || got.ProjectID != 7 || got.RepoURL != "https://example.com/repo.git" {
		t.Errorf("processor should run inline with the enqueued task, got %+v", got)
	}
	if q.IsAsync() {
		t.Error("SyncQueue must report IsAsync() == false")
	}
}

func TestSyncQueue_ProcessorErrorPropagates(t *testing.T) {
	q := NewSyncQueue()
	boom := errors.New("clone failed")
	q.SetProcessor(func(ctx context.Context, task *ImportTask) error {
		return boom
	})

	if err := q.Enqueue(&ImportTask{ProjectID: 1}); !errors.Is(err, boom) {
		t.Errorf("expected processor error, got %v", err)
	}
}

func TestSyncQueue_NoProcessorDropsTask(t *testing.T) {
	q := NewSyncQueue()
	if err := q.Enqueue(&ImportTask{ProjectID: 1}); err != nil {
		t.Errorf("enqueue without processor should not fail, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("Close should be a no-op, got %v", err)
	}
}
