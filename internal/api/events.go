package api

import (
	"github.com/rs/zerolog"
)

// Publisher fans domain events out to subscribers. *mqttclient.Client
// implements it.
type Publisher interface {
	Publish(event string, v any) error
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }

// publish sends an event and logs failures. Events are best-effort and never
// fail the request that produced them.
func publish(p Publisher, log zerolog.Logger, event string, v any) {
	if p == nil {
		return
	}
	if err := p.Publish(event, v); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("event publish failed")
	}
}
