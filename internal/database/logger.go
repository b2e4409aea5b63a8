package database

import (
	"context"
	"log"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
)

var globalLogService *LogService

// InitLogService binds the global log service to DB. With no DB it unbinds it.
func InitLogService() {
	if DB == nil {
		globalLogService = nil
		return
	}
	globalLogService = NewLogService(DB)
}

// GetLogService returns the global log service, creating it on first use.
func GetLogService() *LogService {
	if globalLogService == nil && DB != nil {
		InitLogService()
	}
	return globalLogService
}

// LogUpdateCycle records a cycle through the global service.
func LogUpdateCycle(c ddns.Cycle) {
	svc := GetLogService()
	if svc == nil {
		return
	}
	if err := svc.CreateUpdateLog(c); err != nil {
		log.Printf("Failed to log update cycle: %v", err)
	}
}

// LogUserAction records a user activity through the global service.
func LogUserAction(username, action, resource, description,
	ipAddress, userAgent string, success bool, details interface{}) {

	svc := GetLogService()
	if svc == nil {
		return
	}
	if err := svc.CreateUserActivity(username, action, resource, description,
		ipAddress, userAgent, success, details); err != nil {
		log.Printf("Failed to log user activity: %v", err)
	}
}

// ScheduleLogCleanup prunes history once at start and then daily until ctx is done.
func ScheduleLogCleanup(ctx context.Context, retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = 30
	}

	clean := func() {
		svc := GetLogService()
		if svc == nil {
			return
		}
		removed, err := svc.CleanOldLogs(retentionDays)
		if err != nil {
			log.Printf("Failed to clean old logs: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("Cleaned %d log entries older than %d days", removed, retentionDays)
		}
	}

	go func() {
		clean()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				clean()
			}
		}
	}()

	log.Printf("Started automatic log cleanup task (retention: %d days)", retentionDays)
}
