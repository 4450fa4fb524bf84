/*
Package notify delivers finished monthly documents to the accountant.

PURPOSE:
  Wraps the outbound channels (email with an Excel attachment, Slack
  summary message) behind one Sink interface so the delivery flow does
  not care which channels are configured.

DEGRADED-CHANNEL CONTRACT:
  A channel failure must never fail the delivery operation itself; the
  document stays regenerable and the caller retries. Deliver therefore
  returns a Result value describing what happened instead of an error.

SEE ALSO:
  - notify/email.go: SMTP sink
  - notify/slack.go: Slack sink
  - document/service.go: Marks the document sent only when at least
    one channel succeeded
*/
package notify

import (
	"context"

	"github.com/lumo/taxdesk/ledger"
)

// Delivery is one outbound document.
type Delivery struct {
	Month          ledger.Month
	Subject        string
	Body           string // rendered document text
	AttachmentPath string // optional xlsx on disk
	Recipient      string // email address, ignored by non-email sinks
}

// Result reports the outcome on a single channel.
type Result struct {
	Channel   string // "email", "slack", "none"
	Delivered bool
	Detail    string // failure reason or delivery note
}

// Sink sends a document over one channel.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) Result
}

// Noop is the sink used when no channel is configured. It reports the
// document as undelivered so the caller can surface "nothing sent".
type Noop struct{}

func (Noop) Deliver(ctx context.Context, d Delivery) Result {
	return Result{Channel: "none", Delivered: false, Detail: "no delivery channel configured"}
}

// Fanout delivers over every configured channel and collects the
// per-channel results.
type Fanout struct {
	Sinks []Sink
}

func (f Fanout) DeliverAll(ctx context.Context, d Delivery) []Result {
	if len(f.Sinks) == 0 {
		return []Result{Noop{}.Deliver(ctx, d)}
	}
	results := make([]Result, 0, len(f.Sinks))
	for _, sink := range f.Sinks {
		results = append(results, sink.Deliver(ctx, d))
	}
	return results
}

// Delivered reports whether at least one channel succeeded.
func Delivered(results []Result) bool {
	for _, r := range results {
		if r.Delivered {
			return true
		}
	}
	return false
}
