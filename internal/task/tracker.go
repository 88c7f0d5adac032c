// Package task renders enriched message context into task descriptions and
// creates tasks in the downstream tracker.
package task

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Task defaults applied to every created task.
const (
	DefaultStatus   = "to do"
	DefaultPriority = 3 // normal
	maxTitleRunes   = 80
)

// DefaultTags classify tasks created from Slack.
var DefaultTags = []string{"slack", "switchboard"}

// Payload is the tracker-agnostic task to create.
type Payload struct {
	Name        string
	Description string
	Status      string
	Priority    int
	Tags        []string
}

// Created identifies the task the tracker created.
type Created struct {
	ID   string
	URL  string
	Name string
}

// Tracker creates tasks in a downstream tracker. Implementations do not
// retry; retry is the operator's decision via the mapping retry endpoint.
type Tracker interface {
	CreateTask(ctx context.Context, token, destination string, p Payload) (Created, error)
}

// APIError is a normalized downstream tracker error. Each client adapts its
// service's own error shape (varying field names, status conventions) into
// this one type, so callers never probe raw response bodies.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Service, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

// BuildTitle derives a task title from the message text: the first
// maxTitleRunes runes, with an ellipsis when truncated.
func BuildTitle(text string) string {
	if text == "" {
		return "Slack message"
	}
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxTitleRunes]) + "..."
}

// BuildPayload assembles the task payload with fixed defaults.
func BuildPayload(messageText, description string) Payload {
	return Payload{
		Name:        BuildTitle(messageText),
		Description: description,
		Status:      DefaultStatus,
		Priority:    DefaultPriority,
		Tags:        DefaultTags,
	}
}
