package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lifecycle event types published after media state changes.
const (
	TypeMediaIngested = "media.ingested"
	TypeMediaPurged   = "media.purged"
)

// Publisher is the messaging capability the service needs. A nil
// publisher disables lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// MediaEvent is emitted after an event's media is committed or purged.
// Consumers treat it as advisory; the store is the source of truth.
type MediaEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EventID    int64     `json:"event_id"`
	Variants   int       `json:"variants,omitempty"`
	Deleted    int       `json:"deleted,omitempty"`
	Errors     int       `json:"errors,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// publishMediaEvent sends a lifecycle message best-effort. The media is
// already committed (or purged) when this runs, so a publish failure is
// logged and swallowed.
func (s *Service) publishMediaEvent(ctx context.Context, evt MediaEvent) {
	if s.producer == nil {
		return
	}

	evt.ID = uuid.NewString()
	evt.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("marshal media event", zap.Error(err))
		return
	}

	headers := map[string]string{
		"media_event_id": evt.ID,
		"event_type":     evt.Type,
	}
	key := []byte(strconv.FormatInt(evt.EventID, 10))

	if err := s.producer.Publish(ctx, key, payload, headers); err != nil {
		s.logger.Warn("publish media event",
			zap.String("type", evt.Type),
			zap.Int64("event_id", evt.EventID),
			zap.Error(err))
	}
}
