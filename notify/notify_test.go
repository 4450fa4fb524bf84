package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lumo/taxdesk/ledger"
)

type stubSink struct {
	result Result
}

func (s stubSink) Deliver(ctx context.Context, d Delivery) Result {
	return s.result
}

func TestNoopReportsUndelivered(t *testing.T) {
	r := Noop{}.Deliver(context.Background(), Delivery{})

	assert.False(t, r.Delivered)
	assert.Equal(t, "none", r.Channel)
}

func TestFanoutEmptyFallsBackToNoop(t *testing.T) {
	results := Fanout{}.DeliverAll(context.Background(), Delivery{})

	assert.Len(t, results, 1)
	assert.False(t, Delivered(results))
}

func TestFanoutCollectsAllChannels(t *testing.T) {
	// GIVEN one failing and one succeeding channel
	f := Fanout{Sinks: []Sink{
		stubSink{Result{Channel: "email", Delivered: false, Detail: "dial tcp: refused"}},
		stubSink{Result{Channel: "slack", Delivered: true}},
	}}

	d := Delivery{Month: ledger.MonthOf(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))}
	results := f.DeliverAll(context.Background(), d)

	// THEN both outcomes are reported and the overall send counts as
	// delivered
	assert.Len(t, results, 2)
	assert.True(t, Delivered(results))
	assert.False(t, results[0].Delivered)
	assert.True(t, results[1].Delivered)
}
