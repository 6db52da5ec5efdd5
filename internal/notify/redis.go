package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type envelope struct {
	UserID int64           `json:"userId"`
	Kind   EventKind       `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// RedisPublisher hands events to whichever API instance holds the user's
// socket.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "notify_publisher").Logger(),
	}
}

func (p *RedisPublisher) Notify(ctx context.Context, userID int64, kind EventKind, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Error().Err(err).Str("event", string(kind)).Msg("marshal payload failed")
		return
	}
	raw, err := json.Marshal(envelope{UserID: userID, Kind: kind, Data: data})
	if err != nil {
		p.log.Error().Err(err).Str("event", string(kind)).Msg("marshal envelope failed")
		return
	}

	if err := p.client.Publish(context.WithoutCancel(ctx), p.channel, raw).Err(); err != nil {
		p.log.Warn().Err(err).Int64("user_id", userID).Str("event", string(kind)).Msg("publish event failed")
	}
}

// Relay forwards published events to the local hub.
type Relay struct {
	client  *redis.Client
	channel string
	target  Notifier
	log     zerolog.Logger
}

func NewRelay(client *redis.Client, channel string, target Notifier, log zerolog.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		target:  target,
		log:     log.With().Str("component", "notify_relay").Logger(),
	}
}

// Run blocks until ctx is done or the subscription breaks.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info().Str("channel", r.channel).Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn().Err(err).Msg("malformed notification envelope")
		return
	}
	r.target.Notify(ctx, env.UserID, env.Kind, env.Data)
}
