// Package slack implements the notify.Notifier for Slack.
package slack

import (
	"context"
	"fmt"

	"github.com/gramchat/gramchat/internal/notify"
	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts events to a Slack channel.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: client, channelID: opts.ChannelID}, nil
}

// Post sends the event as an attachment with a severity color bar.
func (n *Notifier) Post(ctx context.Context, evt notify.Event) error {
	attachment := slackapi.Attachment{
		Title: evt.Title,
		Text:  evt.Body,
		Color: notify.SeverityColor(evt.Severity),
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channelID, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post %q: %w", evt.Title, err)
	}
	return nil
}
