// Package notify delivers ops notifications to a Discord channel.
// Best-effort: delivery failures are logged, never escalated.
package notify

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// Embed sidebar colors.
const (
	colorError = 0xe53935
	colorInfo  = 0x2196f3
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendEmbed(channelID, embed, options...)
}

// Discord posts embeds to a fixed ops channel. Send-only: no gateway
// connection is opened, the REST API is enough for notifications.
type Discord struct {
	sess      session
	channelID string
}

// NewDiscord creates a Discord notifier from a bot token and channel ID.
func NewDiscord(botToken, channelID string) (*Discord, error) {
	if botToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	dg, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: create discord session: %w", err)
	}
	return &Discord{sess: &realSession{s: dg}, channelID: channelID}, nil
}

// NewDiscordWithSession creates a Discord notifier with an injected session,
// for tests.
func NewDiscordWithSession(sess session, channelID string) *Discord {
	return &Discord{sess: sess, channelID: channelID}
}

// SyncFailed posts an embed for a failed sync.
func (d *Discord) SyncFailed(mappingID uint, teamID, errMsg string) {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Sync failed: mapping %d", mappingID),
		Description: errMsg,
		Color:       colorError,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Workspace", Value: teamID, Inline: true},
			{Name: "Mapping", Value: fmt.Sprintf("%d", mappingID), Inline: true},
		},
	}
	d.send(embed)
}

// Digest posts a daily digest embed.
func (d *Discord) Digest(title, body string) {
	d.send(&discordgo.MessageEmbed{
		Title:       title,
		Description: body,
		Color:       colorInfo,
	})
}

func (d *Discord) send(embed *discordgo.MessageEmbed) {
	if _, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		log.Printf("notify: discord send: %v", err)
	}
}
