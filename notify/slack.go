package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackSink posts a short completion notice to the configured channel.
// The full document travels by email; Slack only announces it.
type SlackSink struct {
	client  *slack.Client
	channel string
	log     zerolog.Logger
}

func NewSlackSink(token, channel string, log zerolog.Logger) *SlackSink {
	return &SlackSink{
		client:  slack.New(token),
		channel: channel,
		log:     log,
	}
}

func (s *SlackSink) Deliver(ctx context.Context, d Delivery) Result {
	header := slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType,
			fmt.Sprintf("📋 %s tax documents sent", d.Month), false, false))
	body := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*%s*\nDelivered to %s.", d.Subject, d.Recipient), false, false),
		nil, nil)

	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionBlocks(header, body),
		slack.MsgOptionText(d.Subject, false),
	)
	if err != nil {
		s.log.Warn().Err(err).Str("channel", s.channel).Msg("slack delivery failed")
		return Result{Channel: "slack", Delivered: false, Detail: err.Error()}
	}

	s.log.Info().Str("channel", s.channel).Str("month", d.Month.String()).Msg("slack notice posted")
	return Result{Channel: "slack", Delivered: true, Detail: "posted to " + s.channel}
}
