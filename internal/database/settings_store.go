package database

import (
	"github.com/fluhartyml/NightGardDDNS/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsStore keeps agent settings in the settings table.
type SettingsStore struct {
	db *gorm.DB
}

var _ settings.Store = (*SettingsStore)(nil)

func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Load() (map[string]string, error) {
	var rows []Setting
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, settings.ErrNotFound
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return values, nil
}

// Save upserts every key in one transaction. Keys absent from values are kept.
func (s *SettingsStore) Save(values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]Setting, 0, len(values))
	for k, v := range values {
		rows = append(rows, Setting{Key: k, Value: v})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}
