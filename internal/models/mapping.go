package models

import "time"

// Sync statuses for a Mapping.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Mapping records one attempt to synchronize a Slack message into a
// downstream task. The composite unique index on (slack_message_ts,
// workspace_id) is the idempotency guarantee: at most one mapping per
// source message per workspace, enforced by the database rather than
// in-process locking.
type Mapping struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	SlackMessageTS string `gorm:"size:32;not null;uniqueIndex:idx_message_workspace"`
	WorkspaceID    uint   `gorm:"not null;uniqueIndex:idx_message_workspace"`
	SlackChannelID string `gorm:"size:32;not null"`
	SlackUserID    string `gorm:"size:32;not null"`
	SlackTeamID    string `gorm:"size:32;index"`
	ThreadTS       string `gorm:"size:32"`
	MessageText    string `gorm:"type:text"`
	Permalink      string `gorm:"size:512"`
	TaskID         string `gorm:"size:64"`
	TaskURL        string `gorm:"size:512"`
	TaskName       string `gorm:"size:255"`
	ChannelName    string `gorm:"size:128"`
	UserName       string `gorm:"size:128"`
	SyncStatus     string `gorm:"size:16;default:pending;index"`
	ErrorMessage   string `gorm:"type:text"`
	RetryCount     int    `gorm:"default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Workspace     Workspace            `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE"`
	ThreadContext []ThreadContextEntry `gorm:"foreignKey:MappingID"`
}
