package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

// ProgressChannel is the pub/sub channel shared by every instance.
const ProgressChannel = "subquestion:progress"

// ProgressRelay carries progress events between instances so that an admin feed attached to
// one instance sees partial solves recorded by any other. Publish goes to Redis only; Run
// delivers every relayed event, including this instance's own, to the local hub.
type ProgressRelay struct {
	client *redis.Client
	hub    *app.ProgressHub
	log    *zap.Logger
}

var _ app.ProgressPublisher = (*ProgressRelay)(nil)

func NewProgressRelay(client *redis.Client, hub *app.ProgressHub, log *zap.Logger) *ProgressRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressRelay{client: client, hub: hub, log: log}
}

func (r *ProgressRelay) Publish(ev domain.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error("encode progress event", zap.Error(err))
		return
	}
	// best-effort: a lost event only delays the admin feed
	if err := r.client.Publish(context.Background(), ProgressChannel, payload).Err(); err != nil {
		r.log.Warn("publish progress event", zap.Int64("challenge_id", ev.ChallengeID), zap.Error(err))
	}
}

// Run subscribes to the channel and blocks until ctx is done. ready, when non-nil, is closed
// once the subscription is confirmed.
func (r *ProgressRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, ProgressChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.log.Warn("decode progress event", zap.Error(err))
				continue
			}
			r.hub.Publish(ev)
		}
	}
}
