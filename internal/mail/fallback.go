package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// FallbackSender tries the primary transport and parks the message in
// the outbox when that fails. It only errors when both paths fail, so
// a registration is never silently left without a deliverable
// activation email.
type FallbackSender struct {
	primary Sender
	outbox  *Outbox
	log     zerolog.Logger
}

func NewFallbackSender(primary Sender, outbox *Outbox, log zerolog.Logger) *FallbackSender {
	return &FallbackSender{primary: primary, outbox: outbox, log: log}
}

func (f *FallbackSender) Send(ctx context.Context, msg Message) error {
	err := f.primary.Send(ctx, msg)
	if err == nil {
		return nil
	}

	f.log.Warn().Err(err).Str("to", msg.To).Msg("mail send failed, queueing for retry")

	if qErr := f.outbox.Enqueue(ctx, msg); qErr != nil {
		f.log.Error().Err(qErr).Str("to", msg.To).Msg("mail outbox enqueue failed")
		return err
	}
	return nil
}
