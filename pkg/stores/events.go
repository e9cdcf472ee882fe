package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openfroyo/froyo-git/pkg/telemetry"
)

// EventSubscriber returns a subscriber persisting published events. Write
// failures are logged and dropped.
func EventSubscriber(s Store, logger *telemetry.Logger) telemetry.EventSubscriber {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	logger = logger.NewComponentLogger("stores")

	return func(ev telemetry.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.AppendEvent(ctx, FromTelemetry(ev)); err != nil {
			logger.WithError(err).Warnf("failed to store event %s", ev.Type)
		}
	}
}

// FromTelemetry converts a published event to its stored form.
func FromTelemetry(ev telemetry.Event) *Event {
	out := &Event{
		EventID:   ev.ID,
		Target:    ev.Target,
		Type:      ev.Type,
		Level:     ev.Level,
		Message:   ev.Message,
		Timestamp: ev.Timestamp,
	}
	if ev.RunID != "" {
		out.RunID = &ev.RunID
	}
	if ev.OperationID != "" {
		out.OperationID = &ev.OperationID
	}
	if len(ev.Data) > 0 {
		if data, err := json.Marshal(ev.Data); err == nil {
			details := string(data)
			out.Details = &details
		}
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	return out
}
