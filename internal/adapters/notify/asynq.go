// Package notify enqueues push-notification tasks. Delivery is a
// separate worker's concern; from the engine's side this is strictly
// fire-and-forget.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/sarim-aliii/duet/internal/core"
	"github.com/sarim-aliii/duet/internal/domain"
)

const TaskPush = "notify:push"

type PushPayload struct {
	To    domain.UserID `json:"to"`
	Title string        `json:"title"`
	Body  string        `json:"body"`
}

type AsynqNotifier struct {
	client *asynq.Client
}

func NewAsynqNotifier(redisURL string) (*AsynqNotifier, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &AsynqNotifier{client: asynq.NewClient(opt)}, nil
}

var _ core.Notifier = (*AsynqNotifier)(nil)

func (n *AsynqNotifier) Push(ctx context.Context, to domain.UserID, title, body string) {
	payload, err := json.Marshal(PushPayload{To: to, Title: title, Body: body})
	if err != nil {
		log.Error().Err(err).Str("module", "notify").Msg("encode push payload")
		return
	}
	task := asynq.NewTask(TaskPush, payload)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue("notifications"), asynq.MaxRetry(3)); err != nil {
		log.Warn().Err(err).Str("module", "notify").Str("to", string(to)).Msg("push enqueue failed")
	}
}

func (n *AsynqNotifier) Close() error {
	return n.client.Close()
}

// Noop is used when no redis is configured; pushes are logged and
// dropped.
type Noop struct{}

var _ core.Notifier = Noop{}

func (Noop) Push(_ context.Context, to domain.UserID, title, _ string) {
	log.Debug().Str("module", "notify").Str("to", string(to)).Str("title", title).Msg("push skipped, notifier disabled")
}
