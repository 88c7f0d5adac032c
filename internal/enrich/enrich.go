// Package enrich fetches user, channel, and thread context from Slack.
//
// Enrichment is best-effort augmentation of the task description: every
// fetch degrades to a zero value on upstream error instead of failing the
// sync. Errors are logged, never returned.
package enrich

import (
	"context"
	"errors"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	GetUserInfo(userID string) (*slackapi.User, error)
	GetConversationInfo(input *slackapi.GetConversationInfoInput) (*slackapi.Channel, error)
	GetConversationReplies(params *slackapi.GetConversationRepliesParameters) ([]slackapi.Message, bool, string, error)
	GetPermalink(params *slackapi.PermalinkParameters) (string, error)
}

// Reply is one message within a thread, oldest first. The thread root is
// always element 0 of a non-empty fetch.
type Reply struct {
	UserID    string
	UserName  string
	Text      string
	Timestamp string
}

// Client wraps the Slack Web API for context enrichment.
type Client struct {
	api slackClient
}

// New creates a Client using the workspace's bot token.
func New(botToken string) *Client {
	return &Client{api: slackapi.New(botToken)}
}

// NewWithAPI creates a Client with an injected API, for tests.
func NewWithAPI(api slackClient) *Client {
	return &Client{api: api}
}

// UserName returns the user's display name, falling back to real name.
// Returns "" on any upstream error.
func (c *Client) UserName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	var user *slackapi.User
	err := retryOnRateLimit(ctx, func() error {
		var apiErr error
		user, apiErr = c.api.GetUserInfo(userID)
		return apiErr
	})
	if err != nil {
		log.Printf("enrich: user info for %s: %v", userID, err)
		return ""
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName
	}
	return user.RealName
}

// ChannelName returns the channel's name, or "" on any upstream error.
func (c *Client) ChannelName(ctx context.Context, channelID string) string {
	if channelID == "" {
		return ""
	}
	var channel *slackapi.Channel
	err := retryOnRateLimit(ctx, func() error {
		var apiErr error
		channel, apiErr = c.api.GetConversationInfo(&slackapi.GetConversationInfoInput{
			ChannelID: channelID,
		})
		return apiErr
	})
	if err != nil {
		log.Printf("enrich: channel info for %s: %v", channelID, err)
		return ""
	}
	return channel.Name
}

// ThreadReplies returns all messages in a thread, oldest first, with the
// root as element 0. Returns an empty slice on any upstream error.
func (c *Client) ThreadReplies(ctx context.Context, channelID, threadTS string) []Reply {
	if threadTS == "" {
		return nil
	}

	var all []Reply
	cursor := ""
	for {
		params := &slackapi.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: threadTS,
			Limit:     200,
			Cursor:    cursor,
		}

		var msgs []slackapi.Message
		var hasMore bool
		var nextCursor string
		err := retryOnRateLimit(ctx, func() error {
			var apiErr error
			msgs, hasMore, nextCursor, apiErr = c.api.GetConversationReplies(params)
			return apiErr
		})
		if err != nil {
			log.Printf("enrich: thread replies for %s/%s: %v", channelID, threadTS, err)
			return nil
		}

		for _, m := range msgs {
			all = append(all, Reply{
				UserID:    m.User,
				UserName:  c.UserName(ctx, m.User),
				Text:      m.Text,
				Timestamp: m.Timestamp,
			})
		}

		if !hasMore || nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return all
}

// Permalink returns a permalink to the message, or "" on any upstream error.
func (c *Client) Permalink(ctx context.Context, channelID, messageTS string) string {
	var link string
	err := retryOnRateLimit(ctx, func() error {
		var apiErr error
		link, apiErr = c.api.GetPermalink(&slackapi.PermalinkParameters{
			Channel: channelID,
			Ts:      messageTS,
		})
		return apiErr
	})
	if err != nil {
		log.Printf("enrich: permalink for %s/%s: %v", channelID, messageTS, err)
		return ""
	}
	return link
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors. It respects context cancellation and the RetryAfter duration
// from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}

		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}

// ParseTimestamp converts a Slack timestamp (e.g., "1234567890.123456")
// to a time.Time.
func ParseTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) == 0 {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
