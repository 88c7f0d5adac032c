// Package sync sequences one message-action synchronization from start to
// terminal state.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"

	"github.com/zulandar/switchboard/internal/enrich"
	"github.com/zulandar/switchboard/internal/mapping"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/task"
	"gorm.io/gorm"
)

// ErrWorkspaceNotConfigured means no active workspace exists for the Slack
// team. This failure precedes mapping creation, so it is reported only
// through the callback URL.
var ErrWorkspaceNotConfigured = errors.New("sync: workspace not configured")

// Request is the distilled message-action payload the orchestrator works on.
type Request struct {
	TeamID      string
	ChannelID   string
	UserID      string
	MessageTS   string
	ThreadTS    string
	Text        string
	ResponseURL string
}

// Enricher is the context-enrichment surface the orchestrator depends on.
// Satisfied by *enrich.Client; tests substitute fakes.
type Enricher interface {
	UserName(ctx context.Context, userID string) string
	ChannelName(ctx context.Context, channelID string) string
	ThreadReplies(ctx context.Context, channelID, threadTS string) []enrich.Reply
	Permalink(ctx context.Context, channelID, messageTS string) string
}

// Notifier receives ops notifications for failed syncs. May be nil.
type Notifier interface {
	SyncFailed(mappingID uint, teamID, errMsg string)
}

// Orchestrator runs the sync pipeline. All collaborators are injected so
// every external service has a test double.
type Orchestrator struct {
	db          *gorm.DB
	mappings    *mapping.Manager
	newEnricher func(botToken string) Enricher
	trackers    map[string]task.Tracker
	callback    CallbackPoster
	notifier    Notifier
}

// Opts holds constructor parameters for an Orchestrator.
type Opts struct {
	DB          *gorm.DB
	NewEnricher func(botToken string) Enricher // defaults to enrich.New
	Trackers    map[string]task.Tracker        // defaults to clickup + github
	Callback    CallbackPoster                 // defaults to Slack webhook posting
	Notifier    Notifier                       // optional
}

// New creates an Orchestrator with production defaults for any collaborator
// not supplied.
func New(opts Opts) *Orchestrator {
	o := &Orchestrator{
		db:          opts.DB,
		mappings:    mapping.NewManager(opts.DB),
		newEnricher: opts.NewEnricher,
		trackers:    opts.Trackers,
		callback:    opts.Callback,
		notifier:    opts.Notifier,
	}
	if o.newEnricher == nil {
		o.newEnricher = func(botToken string) Enricher { return enrich.New(botToken) }
	}
	if o.trackers == nil {
		o.trackers = map[string]task.Tracker{
			models.TrackerClickUp: task.NewClickUp(),
			models.TrackerGitHub:  task.NewGitHub(),
		}
	}
	if o.callback == nil {
		o.callback = PostSlackWebhook
	}
	return o
}

// Run executes one synchronization to a terminal state. It is designed to be
// spawned as a goroutine after the HTTP boundary has already acknowledged;
// the returned error is for logging and tests, the user-facing outcome always
// travels through the callback URL.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	// Step 1: resolve the workspace. No mapping exists yet, so this failure
	// is callback-only.
	var ws models.Workspace
	err := o.db.Where("slack_team_id = ? AND active = ?", req.TeamID, true).First(&ws).Error
	if err != nil {
		o.postFailure(req.ResponseURL, fmt.Sprintf("No active workspace is configured for team %s. Ask an admin to run `swb workspace add`.", req.TeamID))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkspaceNotConfigured
		}
		return fmt.Errorf("sync: resolve workspace: %w", err)
	}

	// Step 2: create the mapping. A duplicate means another sync already
	// owns this message; tell the user and stop.
	draft := &models.Mapping{
		SlackMessageTS: req.MessageTS,
		WorkspaceID:    ws.ID,
		SlackChannelID: req.ChannelID,
		SlackUserID:    req.UserID,
		SlackTeamID:    req.TeamID,
		ThreadTS:       req.ThreadTS,
		MessageText:    req.Text,
	}
	if err := o.mappings.Create(draft); err != nil {
		if errors.Is(err, mapping.ErrDuplicateMapping) {
			o.postFailure(req.ResponseURL, "This message has already been synced (or a sync is in flight).")
			return err
		}
		o.postFailure(req.ResponseURL, "Could not record the sync attempt. Please try again.")
		return err
	}

	if err := o.mappings.Transition(draft.ID, models.StatusProcessing, mapping.Fields{}); err != nil {
		return o.fail(req, draft.ID, ws, fmt.Sprintf("advance to processing: %v", err))
	}

	// Everything past mapping creation funnels into the failure path; the
	// mapping must never be left in processing.
	defer func() {
		if r := recover(); r != nil {
			o.fail(req, draft.ID, ws, fmt.Sprintf("panic: %v", r))
		}
	}()

	ec := o.newEnricher(ws.SlackBotToken)

	// Steps 3-4: author and channel lookups are independent; fetch them
	// concurrently and join before proceeding.
	var userName, channelName string
	var wg gosync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		userName = ec.UserName(ctx, req.UserID)
	}()
	go func() {
		defer wg.Done()
		channelName = ec.ChannelName(ctx, req.ChannelID)
	}()
	wg.Wait()

	permalink := ec.Permalink(ctx, req.ChannelID, req.MessageTS)

	var thread []enrich.Reply
	if req.ThreadTS != "" {
		thread = ec.ThreadReplies(ctx, req.ChannelID, req.ThreadTS)
	}

	// Step 5: persist what enrichment found, best-effort.
	if err := o.mappings.SetEnrichment(draft.ID, userName, channelName, permalink); err != nil {
		log.Printf("sync: persist enrichment for mapping %d: %v", draft.ID, err)
	}

	// Step 6: render the description and build the payload.
	description := task.FormatDescription(task.Context{
		MessageText: req.Text,
		MessageTS:   req.MessageTS,
		AuthorName:  userName,
		ChannelName: channelName,
		Permalink:   permalink,
		Thread:      thread,
	})
	payload := task.BuildPayload(req.Text, description)

	tracker, ok := o.trackers[ws.TrackerKind]
	if !ok {
		return o.fail(req, draft.ID, ws, fmt.Sprintf("unknown tracker kind %q", ws.TrackerKind))
	}

	// Step 7: create the task, at most one attempt.
	created, err := tracker.CreateTask(ctx, ws.TrackerToken, ws.DefaultDestination, payload)
	if err != nil {
		return o.fail(req, draft.ID, ws, err.Error())
	}

	if err := o.mappings.Transition(draft.ID, models.StatusCompleted, mapping.Fields{
		TaskID:   created.ID,
		TaskURL:  created.URL,
		TaskName: created.Name,
	}); err != nil {
		return o.fail(req, draft.ID, ws, fmt.Sprintf("finalize mapping: %v", err))
	}

	if len(thread) > 1 {
		entries := make([]models.ThreadContextEntry, len(thread))
		for i, r := range thread {
			entries[i] = models.ThreadContextEntry{
				ReplyUserID:   r.UserID,
				ReplyUserName: r.UserName,
				ReplyText:     r.Text,
				ReplyTS:       r.Timestamp,
			}
		}
		if err := o.mappings.AttachThreadContext(draft.ID, entries); err != nil {
			log.Printf("sync: attach thread context for mapping %d: %v", draft.ID, err)
		}
	}

	// Step 8: report back.
	o.postSuccess(req.ResponseURL, created, ws.DefaultDestination)
	return nil
}

// fail lands the mapping in failed state, notifies ops, and reports through
// the callback. Returns an error carrying the original message for callers.
func (o *Orchestrator) fail(req Request, mappingID uint, ws models.Workspace, msg string) error {
	if err := o.mappings.RecordFailure(mappingID, msg); err != nil {
		log.Printf("sync: record failure for mapping %d: %v", mappingID, err)
	}
	if o.notifier != nil {
		o.notifier.SyncFailed(mappingID, ws.SlackTeamID, msg)
	}
	o.postFailure(req.ResponseURL, fmt.Sprintf("Task creation failed: %s. An operator can retry the sync.", msg))
	return fmt.Errorf("sync: mapping %d failed: %s", mappingID, msg)
}
