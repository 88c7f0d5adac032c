// Package mapping owns the Mapping state machine and its persistence.
package mapping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// ErrDuplicateMapping signals that a mapping for the same (message, workspace)
// pair already exists. Callers must treat this as "already being handled",
// not retry blindly.
var ErrDuplicateMapping = errors.New("mapping: duplicate for message and workspace")

// ErrInvalidTransition signals a status change outside the allowed table.
var ErrInvalidTransition = errors.New("mapping: invalid status transition")

// allowedTransitions is the full set of legal status changes. failed→pending
// is reachable only through Retry, which applies its own guarded update.
var allowedTransitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing},
	models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
}

// Fields is the subset of result fields a transition may set alongside the
// status. Nil-valued entries are left untouched.
type Fields struct {
	TaskID       string
	TaskURL      string
	TaskName     string
	ChannelName  string
	UserName     string
	ErrorMessage string
}

// Manager persists Mapping rows and enforces their lifecycle. The composite
// unique index on (slack_message_ts, workspace_id) is the only cross-request
// coordination point; all other operations assume a single writer per mapping.
type Manager struct {
	db *gorm.DB
}

// NewManager returns a Manager backed by the given database handle.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Create inserts a new mapping in pending state. Returns ErrDuplicateMapping
// when a row for the same (message, workspace) pair already exists.
func (m *Manager) Create(draft *models.Mapping) error {
	draft.SyncStatus = models.StatusPending
	if err := m.db.Create(draft).Error; err != nil {
		if isDuplicateErr(err) {
			return ErrDuplicateMapping
		}
		return fmt.Errorf("mapping: create: %w", err)
	}
	return nil
}

// Transition moves a mapping to newStatus and writes any non-empty result
// fields. The move must appear in the allowed-transition table.
func (m *Manager) Transition(id uint, newStatus string, fields Fields) error {
	var current models.Mapping
	if err := m.db.Select("id, sync_status").First(&current, id).Error; err != nil {
		return fmt.Errorf("mapping: transition %d: %w", id, err)
	}
	if !transitionAllowed(current.SyncStatus, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.SyncStatus, newStatus)
	}

	updates := map[string]interface{}{
		"sync_status": newStatus,
		"updated_at":  time.Now(),
	}
	if fields.TaskID != "" {
		updates["task_id"] = fields.TaskID
	}
	if fields.TaskURL != "" {
		updates["task_url"] = fields.TaskURL
	}
	if fields.TaskName != "" {
		updates["task_name"] = fields.TaskName
	}
	if fields.ChannelName != "" {
		updates["channel_name"] = fields.ChannelName
	}
	if fields.UserName != "" {
		updates["user_name"] = fields.UserName
	}
	if fields.ErrorMessage != "" {
		updates["error_message"] = fields.ErrorMessage
	}

	if err := m.db.Model(&models.Mapping{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mapping: transition %d to %s: %w", id, newStatus, err)
	}
	return nil
}

// RecordFailure marks the mapping failed, stores the error message verbatim,
// and increments the retry count. Valid from any non-terminal state so the
// orchestrator's catch-all failure path can always land the row somewhere
// terminal.
func (m *Manager) RecordFailure(id uint, message string) error {
	result := m.db.Model(&models.Mapping{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_status":   models.StatusFailed,
			"error_message": message,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("mapping: record failure for %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mapping: record failure: mapping %d not found", id)
	}
	return nil
}

// Retry re-queues a failed mapping to pending and clears its result fields.
// The conditional WHERE means a retry can only act on a row already in a
// terminal failed state; it can never steal a mapping from a live attempt.
func (m *Manager) Retry(id uint) error {
	result := m.db.Model(&models.Mapping{}).
		Where("id = ? AND sync_status = ?", id, models.StatusFailed).
		Updates(map[string]interface{}{
			"sync_status":   models.StatusPending,
			"error_message": "",
			"task_id":       "",
			"task_url":      "",
			"task_name":     "",
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("mapping: retry %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("mapping: retry %d: not found or not failed", id)
	}
	return nil
}

// SetEnrichment persists enriched display names and the permalink onto the
// mapping without touching its status. Empty values are skipped so a failed
// fetch never blanks a previously stored name.
func (m *Manager) SetEnrichment(id uint, userName, channelName, permalink string) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if userName != "" {
		updates["user_name"] = userName
	}
	if channelName != "" {
		updates["channel_name"] = channelName
	}
	if permalink != "" {
		updates["permalink"] = permalink
	}
	if err := m.db.Model(&models.Mapping{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mapping: set enrichment for %d: %w", id, err)
	}
	return nil
}

// AttachThreadContext bulk-inserts thread reply rows for the mapping, in the
// given order. No-op when entries is empty.
func (m *Manager) AttachThreadContext(id uint, entries []models.ThreadContextEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].MappingID = id
		entries[i].OrderIndex = i
	}
	if err := m.db.Create(&entries).Error; err != nil {
		return fmt.Errorf("mapping: attach thread context for %d: %w", id, err)
	}
	return nil
}

// Get returns a single mapping by ID.
func (m *Manager) Get(id uint) (*models.Mapping, error) {
	var mp models.Mapping
	if err := m.db.First(&mp, id).Error; err != nil {
		return nil, fmt.Errorf("mapping: get %d: %w", id, err)
	}
	return &mp, nil
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// isDuplicateErr detects a unique-constraint violation across the drivers in
// use (MySQL in production, SQLite in tests).
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
