package models

import "time"

// ThreadContextEntry is one reply within the thread of a synced message,
// ordered by OrderIndex (zero-based, oldest first). Entries are bulk-inserted
// once after a successful sync and cascade-delete with their mapping.
type ThreadContextEntry struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	MappingID     uint   `gorm:"not null;index"`
	ReplyUserID   string `gorm:"size:32"`
	ReplyUserName string `gorm:"size:128"`
	ReplyText     string `gorm:"type:text"`
	ReplyTS       string `gorm:"size:32"`
	OrderIndex    int    `gorm:"not null"`
	CreatedAt     time.Time

	Mapping Mapping `gorm:"foreignKey:MappingID;constraint:OnDelete:CASCADE"`
}
