package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"gorm.io/gorm"
)

// LogService stores and queries update history and user activity.
type LogService struct {
	db *gorm.DB
}

func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// Page pagination and time window shared by the list queries
type Page struct {
	Page      int
	PageSize  int
	StartTime *time.Time
	EndTime   *time.Time
}

// Normalize applies the default page size and clamps it to 100.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	return p
}

func (p Page) window(query *gorm.DB) *gorm.DB {
	if p.StartTime != nil {
		query = query.Where("created_at >= ?", *p.StartTime)
	}
	if p.EndTime != nil {
		query = query.Where("created_at <= ?", *p.EndTime)
	}
	return query
}

func (p Page) fetch(query *gorm.DB, dest interface{}) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	offset := (p.Page - 1) * p.PageSize
	err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(p.PageSize).Find(dest).Error
	return total, err
}

// CreateUpdateLog records a completed cycle.
func (s *LogService) CreateUpdateLog(c ddns.Cycle) error {
	trigger := TriggerTimer
	if c.Manual {
		trigger = TriggerManual
	}
	entry := &UpdateLog{
		Domain:          c.Domain,
		Status:          string(c.Status),
		Address:         c.Address,
		PreviousAddress: c.PreviousAddress,
		Published:       c.Published,
		Success:         c.Status == ddns.StatusSuccess || c.Status == ddns.StatusNoChange,
		ErrorCode:       c.ErrorCode,
		Error:           c.Error,
		Duration:        c.Duration.Milliseconds(),
		StartedAt:       c.StartedAt,
		Trigger:         trigger,
	}
	return s.db.Create(entry).Error
}

// UpdateLogFilter narrows GetUpdateLogs.
type UpdateLogFilter struct {
	Page
	Domain  string
	Status  string
	Success *bool
}

func (s *LogService) GetUpdateLogs(f UpdateLogFilter) ([]UpdateLog, int64, error) {
	f.Page = f.Page.Normalize()

	query := f.window(s.db.Model(&UpdateLog{}))
	if f.Domain != "" {
		query = query.Where("domain = ?", f.Domain)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Success != nil {
		query = query.Where("success = ?", *f.Success)
	}

	var logs []UpdateLog
	total, err := f.fetch(query, &logs)
	return logs, total, err
}

// UpdateStats summarizes the update history.
type UpdateStats struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	SuccessRate   float64          `json:"success_rate"`
	AvgDuration   float64          `json:"avg_duration"`
	LastSuccessAt *time.Time       `json:"last_success_at,omitempty"`
	LastAddress   string           `json:"last_address,omitempty"`
}

func (s *LogService) GetUpdateStats(startTime, endTime *time.Time) (*UpdateStats, error) {
	scope := Page{StartTime: startTime, EndTime: endTime}
	stats := &UpdateStats{ByStatus: make(map[string]int64)}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := scope.window(s.db.Model(&UpdateLog{})).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	var ok int64
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.Total += r.Count
		if r.Status == string(ddns.StatusSuccess) || r.Status == string(ddns.StatusNoChange) {
			ok += r.Count
		}
	}
	if stats.Total == 0 {
		return stats, nil
	}
	stats.SuccessRate = float64(ok) / float64(stats.Total) * 100

	var avg *float64
	if err := scope.window(s.db.Model(&UpdateLog{})).Select("AVG(duration)").Row().Scan(&avg); err != nil {
		return nil, err
	}
	if avg != nil {
		stats.AvgDuration = *avg
	}

	var last UpdateLog
	err := scope.window(s.db.Model(&UpdateLog{})).
		Where("status = ?", string(ddns.StatusSuccess)).
		Order("created_at DESC").Order("id DESC").Limit(1).Find(&last).Error
	if err != nil {
		return nil, err
	}
	if last.ID != 0 {
		at := last.CreatedAt
		stats.LastSuccessAt = &at
		stats.LastAddress = last.Address
	}
	return stats, nil
}

func (s *LogService) CreateUserActivity(username, action, resource, description,
	ipAddress, userAgent string, success bool, details interface{}) error {

	var detailsJSON string
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal activity details: %w", err)
		}
		detailsJSON = string(b)
	}

	activity := &UserActivity{
		Username:    username,
		Action:      action,
		Resource:    resource,
		Description: description,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Success:     success,
		Details:     detailsJSON,
	}
	return s.db.Create(activity).Error
}

// ActivityFilter narrows GetUserActivities.
type ActivityFilter struct {
	Page
	Username string
	Action   string
	Success  *bool
}

func (s *LogService) GetUserActivities(f ActivityFilter) ([]UserActivity, int64, error) {
	f.Page = f.Page.Normalize()

	query := f.window(s.db.Model(&UserActivity{}))
	if f.Username != "" {
		query = query.Where("username = ?", f.Username)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Success != nil {
		query = query.Where("success = ?", *f.Success)
	}

	var activities []UserActivity
	total, err := f.fetch(query, &activities)
	return activities, total, err
}

// CleanOldLogs hard-deletes history older than days.
func (s *LogService) CleanOldLogs(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	res := s.db.Unscoped().Where("created_at < ?", cutoff).Delete(&UpdateLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean update logs: %w", res.Error)
	}
	removed := res.RowsAffected

	res = s.db.Unscoped().Where("created_at < ?", cutoff).Delete(&UserActivity{})
	if res.Error != nil {
		return removed, fmt.Errorf("failed to clean user activities: %w", res.Error)
	}
	return removed + res.RowsAffected, nil
}
