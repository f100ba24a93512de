package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/observability"
)

const progressBufferSize = 64

// ProgressHub fans evaluation progress out to websocket subscribers. With a
// redis client it relays events between API nodes.
type ProgressHub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.EvaluationProgressEvent]struct{}
	redis       *redis.Client
	channel     string
	nodeID      string
	logger      zerolog.Logger
}

type progressEnvelope struct {
	Source string                      `json:"source"`
	Event  dto.EvaluationProgressEvent `json:"event"`
}

// NewProgressHub constructs a hub. redisClient may be nil.
func NewProgressHub(redisClient *redis.Client, channelBase string, logger zerolog.Logger) *ProgressHub {
	channel := ""
	if channelBase != "" {
		channel = channelBase + ":evaluation-progress"
	}
	return &ProgressHub{
		subscribers: make(map[uint]map[chan dto.EvaluationProgressEvent]struct{}),
		redis:       redisClient,
		channel:     channel,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "evaluation_progress").Logger(),
	}
}

// Start relays events published by other nodes until ctx is done.
func (h *ProgressHub) Start(ctx context.Context) {
	if h.redis == nil || h.channel == "" {
		return
	}
	go h.consume(ctx)
}

// Subscribe registers a listener for one competition.
func (h *ProgressHub) Subscribe(competitionID uint) (<-chan dto.EvaluationProgressEvent, func()) {
	ch := make(chan dto.EvaluationProgressEvent, progressBufferSize)

	h.mu.Lock()
	if _, ok := h.subscribers[competitionID]; !ok {
		h.subscribers[competitionID] = make(map[chan dto.EvaluationProgressEvent]struct{})
	}
	h.subscribers[competitionID][ch] = struct{}{}
	h.mu.Unlock()
	observability.ProgressSubscribersActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subscribers, ok := h.subscribers[competitionID]; ok {
				delete(subscribers, ch)
				close(ch)
				if len(subscribers) == 0 {
					delete(h.subscribers, competitionID)
				}
			}
			observability.ProgressSubscribersActive().Dec()
		})
	}
	return ch, cleanup
}

// Publish delivers the event locally and relays it to other nodes.
func (h *ProgressHub) Publish(ctx context.Context, event dto.EvaluationProgressEvent) {
	h.broadcast(event)

	if h.redis == nil || h.channel == "" {
		return
	}
	payload, err := json.Marshal(progressEnvelope{Source: h.nodeID, Event: event})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, h.channel, payload).Err(); err != nil {
		h.logger.Warn().Err(err).Uint("competition_id", event.CompetitionID).Msg("failed to relay evaluation progress")
	}
}

func (h *ProgressHub) broadcast(event dto.EvaluationProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.CompetitionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *ProgressHub) consume(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, h.channel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			h.logger.Error().Err(err).Msg("evaluation progress subscription closed")
			return
		}

		var envelope progressEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			h.logger.Warn().Err(err).Msg("invalid evaluation progress payload")
			continue
		}
		if envelope.Source == h.nodeID {
			continue
		}
		h.broadcast(envelope.Event)
	}
}
