package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/codehive/backend/internal/config"
	"github.com/codehive/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeImport = "repository:import"
)

// ImportTask is a repository import job: clone a remote repository into
// a project branch's file tree.
type ImportTask struct {
	ProjectID   uint   `json:"project_id"`
	RepoURL     string `json:"repo_url"`
	Branch      string `json:"branch"`
	RequestedBy uint   `json:"requested_by"`
}

// TaskQueue defines the interface for import task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *ImportTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalTaskQueue = NewSyncQueue()
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
			globalTaskQueue = NewSyncQueue()
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	// Verify connectivity before committing to async mode
	if err := client.Ping(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *ImportTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeImport, payload)
	info, err := q.client.Enqueue(t, asynq.MaxRetry(3))
	if err != nil {
		return err
	}

	logger.Infof("[TaskQueue] Enqueued import task id=%s project=%d", info.ID, task.ProjectID)
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue by processing tasks inline. Used when
// Redis is disabled or unreachable.
type SyncQueue struct {
	processor func(context.Context, *ImportTask) error
}

// NewSyncQueue creates a queue that runs tasks synchronously
func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function used to process tasks inline
func (q *SyncQueue) SetProcessor(processor func(context.Context, *ImportTask) error) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *ImportTask) error {
	if q.processor == nil {
		logger.Warnf("[TaskQueue] No processor configured, dropping import task for project %d", task.ProjectID)
		return nil
	}
	return q.processor(context.Background(), task)
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
