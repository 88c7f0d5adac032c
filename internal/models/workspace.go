package models

import "time"

// Tracker kinds selectable per workspace.
const (
	TrackerClickUp = "clickup"
	TrackerGitHub  = "github"
)

// Workspace is a tenant configuration: one Slack workspace wired to one
// downstream tracker. Managed by the workspace CLI commands; read-only to
// the sync pipeline.
type Workspace struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	SlackTeamID        string `gorm:"size:32;uniqueIndex;not null"`
	SlackBotToken      string `gorm:"size:255;not null"`
	TrackerKind        string `gorm:"size:16;default:clickup"`
	TrackerToken       string `gorm:"size:255;not null"`
	DefaultDestination string `gorm:"size:128;not null"`
	Active             bool   `gorm:"default:true;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Mappings []Mapping `gorm:"foreignKey:WorkspaceID"`
}
