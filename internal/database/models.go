package database

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel base model, contains common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Setting persisted agent setting, one row per key
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;size:64"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateLog one completed update cycle
type UpdateLog struct {
	BaseModel
	Domain          string    `json:"domain" gorm:"size:255;index"`
	Status          string    `json:"status" gorm:"size:32;index"`
	Address         string    `json:"address" gorm:"size:45"`
	PreviousAddress string    `json:"previous_address" gorm:"size:45"`
	Published       bool      `json:"published"`
	Success         bool      `json:"success" gorm:"index"`
	ErrorCode       string    `json:"error_code" gorm:"size:32"`
	Error           string    `json:"error" gorm:"type:text"`
	Duration        int64     `json:"duration"` // milliseconds
	StartedAt       time.Time `json:"started_at"`
	Trigger         string    `json:"trigger" gorm:"size:16"` // timer, manual
}

// UserActivity user activity record
type UserActivity struct {
	BaseModel
	Username    string `json:"username" gorm:"size:100;index"`
	Action      string `json:"action" gorm:"size:100;index"`
	Resource    string `json:"resource" gorm:"size:200"`
	Description string `json:"description" gorm:"type:text"`
	IPAddress   string `json:"ip_address" gorm:"size:45"`
	UserAgent   string `json:"user_agent" gorm:"size:500"`
	Success     bool   `json:"success" gorm:"index"`
	Details     string `json:"details" gorm:"type:text"`
}

// UserAction user action constant
const (
	UserActionLogin         = "LOGIN"
	UserActionLogout        = "LOGOUT"
	UserActionChangePasswd  = "CHANGE_PASSWORD"
	UserActionStartAgent    = "START_AGENT"
	UserActionStopAgent     = "STOP_AGENT"
	UserActionForceUpdate   = "FORCE_UPDATE"
	UserActionUpdateConfig  = "UPDATE_DDNS_CONFIG"
	UserActionReloadConfig  = "RELOAD_CONFIG"
	UserActionCleanupLogs   = "CLEANUP_LOGS"
	UserActionDeleteSession = "DELETE_SESSION"
)

// update trigger constant
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)
