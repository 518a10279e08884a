// Package pulse implements notify.Bus over goa.design/pulse streams, the
// Redis-backed pub/sub used for runtime events. Each conversation channel
// maps to one Pulse stream; publication is best-effort (Send errors are
// returned to the caller, who logs and continues — the orchestrator never
// fails a job over a notify error).
package pulse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/researchlab/orchestrator/internal/notify"
	clientspulse "github.com/researchlab/orchestrator/internal/notify/pulse/clients/pulse"
)

// Options configures the Pulse-backed bus.
type Options struct {
	// Client is the Pulse client used to publish/subscribe. Required.
	Client clientspulse.Client
	// SinkName identifies the Pulse consumer group used by Subscribe.
	// Defaults to "orchestrator_subscriber".
	SinkName string
}

// Bus publishes and subscribes notify.Events on Pulse streams keyed by
// conversation channel.
type Bus struct {
	client clientspulse.Client
	sink   string
}

// New constructs a Pulse-backed Bus.
func New(opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("pulse client is required")
	}
	sink := opts.SinkName
	if sink == "" {
		sink = "orchestrator_subscriber"
	}
	return &Bus{client: opts.Client, sink: sink}, nil
}

// Publish writes event onto the Pulse stream for channel.
func (b *Bus) Publish(ctx context.Context, channel string, event notify.Event) error {
	stream, err := b.client.Stream(channel)
	if err != nil {
		return fmt.Errorf("open pulse stream %q: %w", channel, err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = stream.Add(ctx, string(event.Type), payload)
	if err != nil {
		return fmt.Errorf("publish to %q: %w", channel, err)
	}
	return nil
}

// Subscribe opens a Pulse consumer-group sink on channel and decodes arriving
// entries into notify.Event values. The returned cancel function closes the
// sink and the event channel.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan notify.Event, func(), error) {
	stream, err := b.client.Stream(channel)
	if err != nil {
		return nil, nil, fmt.Errorf("open pulse stream %q: %w", channel, err)
	}
	sink, err := stream.NewSink(ctx, b.sink)
	if err != nil {
		return nil, nil, fmt.Errorf("create pulse sink on %q: %w", channel, err)
	}

	out := make(chan notify.Event, 64)
	runCtx, cancelRun := context.WithCancel(ctx)
	go func() {
		defer close(out)
		ch := sink.Subscribe()
		for {
			select {
			case <-runCtx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var event notify.Event
				if err := json.Unmarshal(raw.Payload, &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-runCtx.Done():
					return
				}
				_ = sink.Ack(runCtx, raw)
			}
		}
	}()

	cancel := func() {
		cancelRun()
		sink.Close(context.Background())
	}
	return out, cancel, nil
}
