// Package discord implements the notify.Notifier for Discord.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gramchat/gramchat/internal/notify"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts events to a Discord channel over the REST API.
type Notifier struct {
	session   discordSession
	channelID string
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// New creates a Discord Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	session := opts.Session
	if session == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		session = s
	}
	return &Notifier{session: session, channelID: opts.ChannelID}, nil
}

// Post sends the event as an embed with a severity color.
func (n *Notifier) Post(ctx context.Context, evt notify.Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       hexColor(notify.SeverityColor(evt.Severity)),
	}
	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: post %q: %w", evt.Title, err)
	}
	return nil
}

// hexColor converts "#rrggbb" to the integer form Discord embeds use.
func hexColor(s string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
