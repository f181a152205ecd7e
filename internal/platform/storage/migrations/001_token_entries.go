package migrations

import (
	"gorm.io/gorm"
)

// Migration001TokenEntries 创建会话令牌表
type Migration001TokenEntries struct{}

func (m *Migration001TokenEntries) Version() string {
	return "001_token_entries"
}

func (m *Migration001TokenEntries) Description() string {
	return "Create token_entries table for persisted session credentials"
}

func (m *Migration001TokenEntries) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS token_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace VARCHAR(255) NOT NULL,
			key VARCHAR(255) NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_token_entries_ns_key ON token_entries(namespace, key)`).Error
}
