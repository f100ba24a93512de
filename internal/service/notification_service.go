package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/dto"
	"github.com/noah-isme/inklaunch-api/internal/models"
	"github.com/noah-isme/inklaunch-api/internal/observability"
	"github.com/noah-isme/inklaunch-api/internal/repository"
)

const inboxStreamBuffer = 16

// ErrNotificationNotFound indicates the notification does not exist for the user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService keeps the author inbox and pushes new entries to open
// SSE streams on every API node.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	Inbox(ctx context.Context, userID uint, req dto.NotificationInboxRequest) (dto.NotificationInboxResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

// inboxRelay forwards freshly stored notifications to the other API nodes.
type inboxRelay interface {
	send(ctx context.Context, payload []byte) error
	listen(ctx context.Context, deliver func([]byte)) error
}

type notificationService struct {
	repo      repository.NotificationRepository
	relay     inboxRelay
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	streams   *inboxStreams
	nodeID    string
	now       func() time.Time
}

type relayEnvelope struct {
	Origin       string                   `json:"origin"`
	Notification dto.NotificationResponse `json:"notification"`
}

// NewNotificationService constructs the inbox service. Cross-node delivery uses
// NATS when connected, otherwise redis pub/sub, otherwise stays node-local.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	var relay inboxRelay
	switch {
	case channelBase == "":
	case natsConn != nil:
		relay = &natsInboxRelay{conn: natsConn, subject: strings.ReplaceAll(channelBase, ":", ".") + ".notifications"}
	case redisClient != nil:
		relay = &redisInboxRelay{client: redisClient, channel: channelBase + ":notifications"}
	}

	return &notificationService{
		repo:      repo,
		relay:     relay,
		validator: validate,
		logger:    logger.With().Str("component", "notification_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/inklaunch-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
		streams:   &inboxStreams{byUser: make(map[uint]map[chan dto.NotificationResponse]struct{})},
		nodeID:    uuid.NewString(),
		now:       time.Now,
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.relay == nil {
		return
	}
	go func() {
		if err := s.relay.listen(ctx, s.receive); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("notification relay stopped")
		}
	}()
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, validationFailure(err)
	}

	message := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if message == "" {
		return dto.NotificationResponse{}, &ValidationError{Fields: []FieldViolation{{Field: "message", Message: "is empty after sanitization"}}}
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.Int("notification.user_id", int(payload.UserID)),
		attribute.String("notification.kind", payload.Kind),
	))
	defer span.End()

	model := models.Notification{
		UserID:        payload.UserID,
		Kind:          payload.Kind,
		Title:         strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Message:       message,
		CompetitionID: payload.CompetitionID,
		SubmissionID:  payload.SubmissionID,
		Link:          strings.TrimSpace(payload.Link),
	}
	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	s.streams.deliver(response)
	s.forward(spanCtx, response)

	observability.NotificationsPublishedTotal().WithLabelValues(response.Kind).Inc()
	return response, nil
}

func (s *notificationService) Inbox(ctx context.Context, userID uint, req dto.NotificationInboxRequest) (dto.NotificationInboxResponse, error) {
	if userID == 0 {
		return dto.NotificationInboxResponse{}, ErrAuthorRequired
	}

	query := repository.InboxQuery{UserID: userID, UnreadOnly: req.UnreadOnly, Limit: req.Limit, Offset: req.Offset}.Normalize()
	items, err := s.repo.Inbox(ctx, query)
	if err != nil {
		return dto.NotificationInboxResponse{}, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationInboxResponse{}, err
	}

	return dto.NotificationInboxResponse{
		Items:  dto.NewNotificationResponseSlice(items),
		Unread: unread,
		Limit:  query.Limit,
		Offset: query.Offset,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(attribute.Int("notification.user_id", int(userID))))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}
	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrAuthorRequired
	}
	return s.repo.MarkAllRead(ctx, userID, s.now().UTC())
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	ch := make(chan dto.NotificationResponse, inboxStreamBuffer)
	s.streams.add(userID, ch)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.streams.remove(userID, ch)
			observability.SSEClientsActive().Dec()
		})
	}
}

func (s *notificationService) forward(ctx context.Context, notification dto.NotificationResponse) {
	if s.relay == nil {
		return
	}
	payload, err := json.Marshal(relayEnvelope{Origin: s.nodeID, Notification: notification})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode notification relay payload")
		return
	}
	if err := s.relay.send(ctx, payload); err != nil {
		s.logger.Warn().Err(err).Uint("notification_id", notification.ID).Msg("failed to relay notification")
	}
}

func (s *notificationService) receive(payload []byte) {
	var envelope relayEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification relay payload")
		return
	}
	if envelope.Origin == s.nodeID || envelope.Notification.UserID == 0 {
		return
	}
	s.streams.deliver(envelope.Notification)
}

type redisInboxRelay struct {
	client  *redis.Client
	channel string
}

func (r *redisInboxRelay) send(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, r.channel, payload).Err()
}

func (r *redisInboxRelay) listen(ctx context.Context, deliver func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		deliver([]byte(msg.Payload))
	}
}

type natsInboxRelay struct {
	conn    *nats.Conn
	subject string
}

func (r *natsInboxRelay) send(_ context.Context, payload []byte) error {
	return r.conn.Publish(r.subject, payload)
}

// listen uses a plain subscription: every node must see every entry to reach
// the SSE clients it holds.
func (r *natsInboxRelay) listen(ctx context.Context, deliver func([]byte)) error {
	sub, err := r.conn.Subscribe(r.subject, func(msg *nats.Msg) {
		deliver(msg.Data)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Drain()
}

// inboxStreams fans entries out to the SSE streams held by this node.
type inboxStreams struct {
	mu     sync.RWMutex
	byUser map[uint]map[chan dto.NotificationResponse]struct{}
}

func (b *inboxStreams) add(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.byUser[userID] == nil {
		b.byUser[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.byUser[userID][ch] = struct{}{}
}

func (b *inboxStreams) remove(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	streams, ok := b.byUser[userID]
	if !ok {
		return
	}
	if _, ok := streams[ch]; !ok {
		return
	}
	delete(streams, ch)
	close(ch)
	if len(streams) == 0 {
		delete(b.byUser, userID)
	}
}

// deliver drops the entry for streams whose buffer is full; the inbox still
// holds it.
func (b *inboxStreams) deliver(notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.byUser[notification.UserID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
