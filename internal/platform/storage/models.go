package storage

import "time"

// TokenEntry is one persisted session key (access_token, refresh_token, user)
// scoped by namespace so several profiles can share one database file.
type TokenEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Namespace string    `gorm:"not null;uniqueIndex:idx_token_entries_ns_key"`
	Key       string    `gorm:"not null;uniqueIndex:idx_token_entries_ns_key"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (TokenEntry) TableName() string {
	return "token_entries"
}
