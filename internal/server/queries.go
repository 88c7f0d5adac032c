package server

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// MappingRow holds mapping data for the list view.
type MappingRow struct {
	ID          uint      `json:"id"`
	MessageTS   string    `json:"message_ts"`
	ChannelName string    `json:"channel_name"`
	UserName    string    `json:"user_name"`
	TeamID      string    `json:"team_id"`
	SyncStatus  string    `json:"sync_status"`
	TaskID      string    `json:"task_id,omitempty"`
	TaskURL     string    `json:"task_url,omitempty"`
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MappingList returns mappings, newest first, optionally filtered by status.
func MappingList(db *gorm.DB, status string) ([]MappingRow, error) {
	q := db.Model(&models.Mapping{})
	if status != "" {
		q = q.Where("sync_status = ?", status)
	}

	var mappings []models.Mapping
	if err := q.Order("created_at DESC").Limit(200).Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("server: list mappings: %w", err)
	}

	rows := make([]MappingRow, len(mappings))
	for i, m := range mappings {
		rows[i] = mappingRow(m)
	}
	return rows, nil
}

// FailedMappings returns all failed mappings, newest first.
func FailedMappings(db *gorm.DB) ([]MappingRow, error) {
	rows, err := MappingList(db, models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("server: list failed mappings: %w", err)
	}
	return rows, nil
}

// ThreadEntryRow holds one thread reply for the detail view.
type ThreadEntryRow struct {
	OrderIndex int    `json:"order_index"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"`
}

// MappingDetail holds full mapping data, including thread context and the
// owning workspace.
type MappingDetail struct {
	MappingRow
	MessageText   string           `json:"message_text"`
	Permalink     string           `json:"permalink,omitempty"`
	TaskName      string           `json:"task_name,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	ThreadTS      string           `json:"thread_ts,omitempty"`
	WorkspaceTeam string           `json:"workspace_team"`
	TrackerKind   string           `json:"tracker_kind"`
	ThreadContext []ThreadEntryRow `json:"thread_context"`
}

// GetMappingDetail returns full mapping data for the detail endpoint.
func GetMappingDetail(db *gorm.DB, id uint) (*MappingDetail, error) {
	var m models.Mapping
	err := db.Preload("Workspace").
		Preload("ThreadContext", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("order_index ASC")
		}).
		First(&m, id).Error
	if err != nil {
		return nil, fmt.Errorf("server: mapping detail %d: %w", id, err)
	}

	detail := &MappingDetail{
		MappingRow:    mappingRow(m),
		MessageText:   m.MessageText,
		Permalink:     m.Permalink,
		TaskName:      m.TaskName,
		ErrorMessage:  m.ErrorMessage,
		ThreadTS:      m.ThreadTS,
		WorkspaceTeam: m.Workspace.SlackTeamID,
		TrackerKind:   m.Workspace.TrackerKind,
		ThreadContext: make([]ThreadEntryRow, len(m.ThreadContext)),
	}
	for i, e := range m.ThreadContext {
		detail.ThreadContext[i] = ThreadEntryRow{
			OrderIndex: e.OrderIndex,
			UserID:     e.ReplyUserID,
			UserName:   e.ReplyUserName,
			Text:       e.ReplyText,
			Timestamp:  e.ReplyTS,
		}
	}
	return detail, nil
}

func mappingRow(m models.Mapping) MappingRow {
	return MappingRow{
		ID:          m.ID,
		MessageTS:   m.SlackMessageTS,
		ChannelName: m.ChannelName,
		UserName:    m.UserName,
		TeamID:      m.SlackTeamID,
		SyncStatus:  m.SyncStatus,
		TaskID:      m.TaskID,
		TaskURL:     m.TaskURL,
		RetryCount:  m.RetryCount,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
