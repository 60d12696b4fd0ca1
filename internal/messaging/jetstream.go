package messaging

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	commandsStream   = "COMMANDS"
	eventsStream     = "EVENTS"
	rejectionsStream = "REJECTIONS"

	// Rejections are transient feedback; callers re-read and retry, so the
	// stream does not need to keep them around.
	rejectionRetention = 24 * time.Hour
)

// EnsureStreams creates (or validates) the streams the engine requires:
// - app.command.>   commands awaiting a decision
// - app.event.>     accepted facts, replayable per entity
// - app.rejection.> refused commands, keyed by command id
func EnsureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      commandsStream,
			Subjects:  []string{"app.command.>"},
			Retention: nats.LimitsPolicy,
			Storage:   nats.FileStorage,
			Replicas:  1,
		},
		{
			Name:      eventsStream,
			Subjects:  []string{"app.event.>"},
			Retention: nats.LimitsPolicy,
			Storage:   nats.FileStorage,
			Replicas:  1,
		},
		{
			Name:      rejectionsStream,
			Subjects:  []string{"app.rejection.>"},
			Retention: nats.LimitsPolicy,
			Storage:   nats.FileStorage,
			MaxAge:    rejectionRetention,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.StreamInfo(cfg.Name); err != nil {
			if !errors.Is(err, nats.ErrStreamNotFound) {
				return err
			}
			if _, addErr := js.AddStream(&cfg); addErr != nil {
				return addErr
			}
		}
	}
	return nil
}
