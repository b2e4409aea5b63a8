package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, dbType string) *gorm.DB {
	t.Helper()
	db, err := Open(types.DatabaseConfig{
		Type:     dbType,
		Database: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpen_RejectsUnknownType(t *testing.T) {
	_, err := Open(types.DatabaseConfig{Type: "postgres", Database: "x"})
	assert.Error(t, err)
}

func TestSettingsStore_Drivers(t *testing.T) {
	for _, dbType := range []string{"sqlite", "sqlite-pure"} {
		t.Run(dbType, func(t *testing.T) {
			store := NewSettingsStore(openTestDB(t, dbType))

			_, err := store.Load()
			assert.True(t, errors.Is(err, settings.ErrNotFound))

			want := ddns.Config{Domain: "home", Token: "secret", Interval: 10 * time.Minute}
			require.NoError(t, settings.SaveConfig(store, want))

			want.Domain = "cabin"
			require.NoError(t, settings.SaveConfig(store, want))

			got, err := settings.LoadConfig(store, ddns.Config{})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLogService_UpdateLogs(t *testing.T) {
	svc := NewLogService(openTestDB(t, "sqlite-pure"))
	start := time.Now()

	cycles := []ddns.Cycle{
		{Domain: "home", Status: ddns.StatusSuccess, Address: "1.2.3.4", Published: true, StartedAt: start, Duration: 40 * time.Millisecond},
		{Domain: "home", Status: ddns.StatusNoChange, Address: "1.2.3.4", PreviousAddress: "1.2.3.4", StartedAt: start, Duration: 20 * time.Millisecond},
		{Domain: "home", Status: ddns.StatusFailedDetection, ErrorCode: "DETECTION", Error: "all endpoints failed", StartedAt: start},
		{Domain: "cabin", Status: ddns.StatusFailedUpdate, Address: "5.6.7.8", ErrorCode: "BAD_RESPONSE", StartedAt: start},
	}
	for _, c := range cycles {
		require.NoError(t, svc.CreateUpdateLog(c))
	}

	logs, total, err := svc.GetUpdateLogs(UpdateLogFilter{Domain: "home"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, logs, 3)
	assert.Equal(t, string(ddns.StatusFailedDetection), logs[0].Status, "newest first")

	failed := false
	logs, total, err = svc.GetUpdateLogs(UpdateLogFilter{Success: &failed})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, l := range logs {
		assert.False(t, l.Success)
	}

	logs, _, err = svc.GetUpdateLogs(UpdateLogFilter{Page: Page{Page: 2, PageSize: 3}})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	stats, err := svc.GetUpdateStats(nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Total)
	assert.EqualValues(t, 1, stats.ByStatus[string(ddns.StatusSuccess)])
	assert.InDelta(t, 50.0, stats.SuccessRate, 0.001)
	assert.Equal(t, "1.2.3.4", stats.LastAddress)
	assert.NotNil(t, stats.LastSuccessAt)
}

func TestLogService_EmptyStats(t *testing.T) {
	svc := NewLogService(openTestDB(t, "sqlite"))
	stats, err := svc.GetUpdateStats(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.LastSuccessAt)
}

func TestLogService_ActivitiesAndCleanup(t *testing.T) {
	db := openTestDB(t, "sqlite-pure")
	svc := NewLogService(db)

	require.NoError(t, svc.CreateUserActivity("admin", UserActionStartAgent, "ddns", "agent started",
		"10.0.0.2", "curl", true, map[string]string{"domain": "home"}))
	require.NoError(t, svc.CreateUserActivity("admin", UserActionStopAgent, "ddns", "agent stopped",
		"10.0.0.2", "curl", true, nil))

	acts, total, err := svc.GetUserActivities(ActivityFilter{Action: UserActionStartAgent})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.JSONEq(t, `{"domain":"home"}`, acts[0].Details)

	old := time.Now().AddDate(0, 0, -45)
	require.NoError(t, db.Model(&UserActivity{}).Where("action = ?", UserActionStopAgent).
		Update("created_at", old).Error)
	require.NoError(t, svc.CreateUpdateLog(ddns.Cycle{Domain: "home", Status: ddns.StatusSuccess, Manual: true}))
	require.NoError(t, db.Model(&UpdateLog{}).Where("1 = 1").Update("created_at", old).Error)

	removed, err := svc.CleanOldLogs(30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	_, total, err = svc.GetUserActivities(ActivityFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
