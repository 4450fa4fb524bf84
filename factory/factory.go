/*
Package factory selects the live or deterministic implementation for
each external capability based on which credentials are configured.

PURPOSE:
  The rest of the system depends on interfaces (feed.Source,
  textgen.Generator, notify.Sink); this package is the only place that
  knows both implementations of each one. Missing credentials never
  break startup - the deterministic stand-in is wired instead, and the
  choice is logged once.

CAPABILITIES:
  feed     live bank gateway        / deterministic mock generator
  textgen  Gemini                   / rule-based templates
  notify   SMTP email + Slack       / nothing (noop)

USAGE:
  caps, err := factory.Build(ctx, cfg, log)
  if err != nil { ... }
  syncer := feed.NewSyncer(caps.Feed, store, feed.DefaultAccounts(), caps.Cipher, log)

SEE ALSO:
  - config/config.go: Which env vars gate which capability
*/
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lumo/taxdesk/config"
	"github.com/lumo/taxdesk/feed"
	"github.com/lumo/taxdesk/notify"
	"github.com/lumo/taxdesk/secret"
	"github.com/lumo/taxdesk/textgen"
)

// Capabilities is the resolved implementation of every external
// dependency.
type Capabilities struct {
	Feed    feed.Source
	TextGen textgen.Generator
	Sinks   notify.Fanout
	Cipher  *secret.Cipher

	// Mode strings for the health endpoint: "live" or "mock"/"template".
	FeedMode    string
	TextGenMode string
	Channels    []string
}

// Build resolves every capability from the settings.
func Build(ctx context.Context, cfg config.Settings, log zerolog.Logger) (*Capabilities, error) {
	cipher, err := secret.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	caps := &Capabilities{Cipher: cipher}

	if cfg.IsFeedConfigured() {
		caps.Feed = feed.NewClient(cfg.FeedBaseURL, cfg.FeedLinkID, cfg.FeedSecretKey, cfg.FeedCorpNum)
		caps.FeedMode = "live"
	} else {
		caps.Feed = feed.NewMockSource()
		caps.FeedMode = "mock"
	}

	if cfg.IsGeminiConfigured() {
		gen, err := textgen.NewGemini(ctx, cfg.GeminiAPIKey, log)
		if err != nil {
			// Degraded startup, not a fatal one
			log.Warn().Err(err).Msg("gemini unavailable, using template text generation")
			caps.TextGen = textgen.NewTemplate()
			caps.TextGenMode = "template"
		} else {
			caps.TextGen = gen
			caps.TextGenMode = "ai"
		}
	} else {
		caps.TextGen = textgen.NewTemplate()
		caps.TextGenMode = "template"
	}

	if cfg.IsSMTPConfigured() {
		caps.Sinks.Sinks = append(caps.Sinks.Sinks,
			notify.NewEmailSink(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, log))
		caps.Channels = append(caps.Channels, "email")
	}
	if cfg.IsSlackConfigured() {
		caps.Sinks.Sinks = append(caps.Sinks.Sinks,
			notify.NewSlackSink(cfg.SlackBotToken, cfg.SlackChannelID, log))
		caps.Channels = append(caps.Channels, "slack")
	}
	if len(caps.Channels) == 0 {
		caps.Channels = []string{"none"}
	}

	log.Info().
		Str("feed", caps.FeedMode).
		Str("textgen", caps.TextGenMode).
		Strs("channels", caps.Channels).
		Msg("capabilities resolved")
	return caps, nil
}
