// Package eventstream publishes per-turn telemetry from the relay.
package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnEvent) error
	Close() error
}
