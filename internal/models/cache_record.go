package models

import "time"

// CacheRecord holds one serialized cache snapshot keyed by its storage key.
type CacheRecord struct {
	Key       string    `gorm:"column:storage_key;primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for CacheRecord Model
func (CacheRecord) TableName() string {
	return "cache_records"
}
