package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/middleware"
)

// CompetitionEvent announces a lifecycle change of a competition.
type CompetitionEvent struct {
	Type          string                 `json:"type"`
	CompetitionID uint                   `json:"competition_id"`
	Status        string                 `json:"status"`
	ActorID       uint                   `json:"actor_id,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// CompetitionEventPublisher fans lifecycle events out to other services.
type CompetitionEventPublisher interface {
	Publish(ctx context.Context, event CompetitionEvent) error
}

type natsCompetitionEvents struct {
	conn    *nats.Conn
	subject string
}

// NewCompetitionEventPublisher publishes events on "<base>.<type>". A nil
// connection yields a publisher that drops events.
func NewCompetitionEventPublisher(conn *nats.Conn, subjectBase string) CompetitionEventPublisher {
	subjectBase = strings.Trim(strings.ReplaceAll(subjectBase, ":", "."), ".")
	if subjectBase == "" {
		subjectBase = "inklaunch.competitions"
	}
	return &natsCompetitionEvents{conn: conn, subject: subjectBase}
}

// Publish sends the event with the request's correlation id as a header.
func (p *natsCompetitionEvents) Publish(ctx context.Context, event CompetitionEvent) error {
	if p.conn == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.subject + "." + event.Type)
	msg.Data = payload
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(middleware.HeaderCorrelationID, id)
	}
	return p.conn.PublishMsg(msg)
}

func publishEvent(ctx context.Context, publisher CompetitionEventPublisher, logger zerolog.Logger, event CompetitionEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event", event.Type).Uint("competition_id", event.CompetitionID).Msg("failed to publish competition event")
	}
}
