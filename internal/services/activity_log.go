package services

import (
	"encoding/json"
	"time"

	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

var activityDB *gorm.DB

// InitActivityLogger wires the audit trail to the database. Logging is
// best-effort: before initialization (and on write failure) records are
// silently dropped rather than failing the triggering request.
func InitActivityLogger(db *gorm.DB) {
	activityDB = db
}

func LogInfo(module, action, message string, userID, projectID *uint, extra interface{}) {
	writeActivity("info", module, action, message, userID, projectID, extra)
}

func LogWarning(module, action, message string, userID, projectID *uint, extra interface{}) {
	writeActivity("warning", module, action, message, userID, projectID, extra)
}

func LogError(module, action, message string, userID, projectID *uint, extra interface{}) {
	writeActivity("error", module, action, message, userID, projectID, extra)
}

func writeActivity(level, module, action, message string, userID, projectID *uint, extra interface{}) {
	if activityDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	rec := &models.ActivityLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		ProjectID: projectID,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	activityDB.Create(rec)
}

type ActivityLogService struct {
	db *gorm.DB
}

func NewActivityLogService(db *gorm.DB) *ActivityLogService {
	return &ActivityLogService{db: db}
}

type ActivityLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	ProjectID *uint  `form:"project_id"`
}

type ActivityLogListResponse struct {
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Items    []models.ActivityLog `json:"items"`
}

func (s *ActivityLogService) List(req *ActivityLogListRequest) (*ActivityLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.ActivityLog
	var total int64

	query := s.db.Model(&models.ActivityLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.ProjectID != nil {
		query = query.Where("project_id = ?", *req.ProjectID)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &ActivityLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes audit records older than retentionDays.
// Returns the number of deleted records.
func (s *ActivityLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

const defaultLogRetentionDays = 90

var retentionCron *cron.Cron

// StartRetentionScheduler prunes old audit records nightly.
func StartRetentionScheduler(db *gorm.DB) {
	service := NewActivityLogService(db)

	retentionCron = cron.New()
	_, err := retentionCron.AddFunc("0 3 * * *", func() {
		deleted, err := service.CleanupOldLogs(defaultLogRetentionDays)
		if err != nil {
			logger.Error().Err(err).Msg("activity log cleanup failed")
			return
		}
		if deleted > 0 {
			logger.Infof("[ActivityLog] Cleaned up %d records older than %d days", deleted, defaultLogRetentionDays)
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to schedule activity log cleanup")
		return
	}
	retentionCron.Start()
}

// StopRetentionScheduler stops the nightly cleanup job.
func StopRetentionScheduler() {
	if retentionCron != nil {
		retentionCron.Stop()
	}
}
