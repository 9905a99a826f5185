package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PersistedEntry is one key of one remembered session, stored in MySQL.
type PersistedEntry struct {
	SessionID string    `gorm:"primaryKey;size:64"`
	EntryKey  string    `gorm:"primaryKey;size:32"`
	Value     []byte    `gorm:"type:blob"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table aligned with the portal naming scheme.
func (PersistedEntry) TableName() string {
	return "persisted_sessions"
}

// MySQLVault is the durable tier: entries survive portal restarts and back
// the "remember me" login path.
type MySQLVault struct {
	db        *gorm.DB
	sessionID string
}

// NewMySQLVault builds the durable vault for one browser session.
func NewMySQLVault(db *gorm.DB, sessionID string) *MySQLVault {
	return &MySQLVault{db: db, sessionID: sessionID}
}

// Get returns the stored value, or nil when the row is absent.
func (v *MySQLVault) Get(ctx context.Context, key string) ([]byte, error) {
	var entry PersistedEntry
	err := v.db.WithContext(ctx).
		Where("session_id = ? AND entry_key = ?", v.sessionID, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// Set upserts the value for key.
func (v *MySQLVault) Set(ctx context.Context, key string, value []byte) error {
	entry := PersistedEntry{SessionID: v.sessionID, EntryKey: key, Value: value}
	return v.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
}

// Delete removes the row if present.
func (v *MySQLVault) Delete(ctx context.Context, key string) error {
	return v.db.WithContext(ctx).
		Where("session_id = ? AND entry_key = ?", v.sessionID, key).
		Delete(&PersistedEntry{}).Error
}
