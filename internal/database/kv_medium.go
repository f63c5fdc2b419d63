package database

import (
	"errors"

	"cached-task-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVMedium stores cache snapshots as rows of the cache_records table.
type KVMedium struct {
	db *gorm.DB
}

// NewKVMedium returns a medium backed by db. The cache_records table must already be migrated.
func NewKVMedium(db *gorm.DB) *KVMedium {
	return &KVMedium{db: db}
}

// Read returns the stored value for key, or ok=false when no row exists.
func (m *KVMedium) Read(key string) (string, bool, error) {
	var rec models.CacheRecord
	err := m.db.Where("storage_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

// Write upserts the value stored under key.
func (m *KVMedium) Write(key, value string) error {
	rec := models.CacheRecord{Key: key, Value: value}
	return m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

// Remove deletes the row for key. Removing a missing key is not an error.
func (m *KVMedium) Remove(key string) error {
	return m.db.Where("storage_key = ?", key).Delete(&models.CacheRecord{}).Error
}
