package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const outboxStream = "mail:outbox"

// Outbox is a Redis-stream queue of messages that failed to send
// synchronously. The job scheduler drains it periodically, so a
// transport outage never strands an account without an activation
// path.
type Outbox struct {
	client *redis.Client
}

func NewOutbox(client *redis.Client) *Outbox {
	return &Outbox{client: client}
}

func (o *Outbox) Enqueue(ctx context.Context, msg Message) error {
	err := o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: outboxStream,
		Values: map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
			"text":    msg.Text,
			"html":    msg.HTML,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// Drain attempts redelivery of up to batch queued messages and removes
// the ones that went through. Messages that fail again stay queued for
// the next run.
func (o *Outbox) Drain(ctx context.Context, sender Sender, batch int64) (int, error) {
	entries, err := o.client.XRangeN(ctx, outboxStream, "-", "+", batch).Result()
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}

	sent := 0
	for _, entry := range entries {
		msg := Message{
			To:      stringValue(entry.Values, "to"),
			Subject: stringValue(entry.Values, "subject"),
			Text:    stringValue(entry.Values, "text"),
			HTML:    stringValue(entry.Values, "html"),
		}

		if err := sender.Send(ctx, msg); err != nil {
			continue
		}
		if err := o.client.XDel(ctx, outboxStream, entry.ID).Err(); err != nil {
			return sent, fmt.Errorf("ack outbox entry: %w", err)
		}
		sent++
	}
	return sent, nil
}

func stringValue(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}
