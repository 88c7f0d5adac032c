package sync

import (
	"log"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/switchboard/internal/task"
)

// Attachment sidebar colors, matching Slack conventions.
const (
	colorSuccess = "#36a64f"
	colorError   = "#e53935"
)

// CallbackPoster delivers a result message to the caller-supplied
// response_url. Best-effort: implementations log failures, never escalate.
type CallbackPoster func(responseURL string, msg *slackapi.WebhookMessage)

// PostSlackWebhook is the production CallbackPoster.
func PostSlackWebhook(responseURL string, msg *slackapi.WebhookMessage) {
	if responseURL == "" {
		return
	}
	if err := slackapi.PostWebhook(responseURL, msg); err != nil {
		log.Printf("sync: post callback to response_url: %v", err)
	}
}

// postSuccess reports a completed sync with a structured attachment.
func (o *Orchestrator) postSuccess(responseURL string, created task.Created, destination string) {
	o.callback(responseURL, &slackapi.WebhookMessage{
		Text: ":white_check_mark: Task created: " + created.Name,
		Attachments: []slackapi.Attachment{{
			Color:     colorSuccess,
			Title:     created.Name,
			TitleLink: created.URL,
			Fallback:  created.Name,
			Fields: []slackapi.AttachmentField{
				{Title: "Task ID", Value: created.ID, Short: true},
				{Title: "Destination", Value: destination, Short: true},
				{Title: "Status", Value: task.DefaultStatus, Short: true},
			},
		}},
	})
}

// postFailure reports a failed or rejected sync.
func (o *Orchestrator) postFailure(responseURL, message string) {
	o.callback(responseURL, &slackapi.WebhookMessage{
		Text: ":x: " + message,
		Attachments: []slackapi.Attachment{{
			Color:    colorError,
			Text:     message,
			Fallback: message,
		}},
	})
}
