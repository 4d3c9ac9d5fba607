package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/opsdocs/signoff/internal/domain"
)

// SignalService fans workflow notifications out over redis pub/sub. Each
// recipient has a channel, and every event is mirrored on the document
// channel for realtime document watchers.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func userChannel(recipient string) string { return "signoff:user:" + recipient }
func docChannel(documentID string) string { return "signoff:document:" + documentID }

// Dispatch is fire and forget. A dead redis must never fail a sign or an
// invite, so errors are logged and swallowed.
func (s *SignalService) Dispatch(ctx context.Context, n domain.Notification) {
	jsonstr, err := json.Marshal(n)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal notification", slog.String("error", err.Error()))
		return
	}

	if err := s.rdb.Publish(ctx, userChannel(n.Recipient), jsonstr).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to publish notification",
			slog.String("recipient", n.Recipient),
			slog.String("error", err.Error()),
		)
	}

	if n.Event.DocumentID == "" {
		return
	}
	// The document channel never carries the invitation secret.
	public := n
	public.Secret = ""
	jsonstr, err = json.Marshal(public.Event)
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, docChannel(n.Event.DocumentID), jsonstr).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to publish document event",
			slog.String("document", n.Event.DocumentID),
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe opens a pub/sub subscription over the given document channels.
// The caller owns the returned PubSub and must close it.
func (s *SignalService) Subscribe(ctx context.Context, documents []string) *redis.PubSub {
	channels := make([]string, 0, len(documents))
	for _, id := range documents {
		channels = append(channels, docChannel(id))
	}
	return s.rdb.Subscribe(ctx, channels...)
}

// Realtime bridges pub/sub onto channels for a websocket session. Each
// receive on input replaces the watched document set; decoded events flow
// out until the context ends or input closes.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- domain.Event) {
	var pubsub *redis.PubSub
	var msgs <-chan *redis.Message
	defer func() {
		if pubsub != nil {
			pubsub.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case documents, ok := <-input:
			if !ok {
				return
			}
			if pubsub != nil {
				pubsub.Close()
			}
			pubsub = s.Subscribe(ctx, documents)
			msgs = pubsub.Channel()
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.ErrorContext(ctx, "failed to decode realtime event", slog.String("error", err.Error()))
				continue
			}
			select {
			case output <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
