package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"innovatech/accounts/internal/mail"
)

const outboxBatch = 100

// Scheduler periodically redelivers emails parked in the outbox after
// a transport failure.
type Scheduler struct {
	cron   *cron.Cron
	outbox *mail.Outbox
	sender mail.Sender
	log    zerolog.Logger
}

func NewScheduler(outbox *mail.Outbox, sender mail.Sender, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		outbox: outbox,
		sender: sender,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if s.outbox == nil {
		return nil
	}

	if _, err := s.cron.AddFunc("0 */1 * * * *", s.drainOutbox); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits briefly for a running drain to
// finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) drainOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent, err := s.outbox.Drain(ctx, s.sender, outboxBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("mail outbox drain failed")
		return
	}
	if sent > 0 {
		s.log.Info().Int("sent", sent).Msg("mail outbox drained")
	}
}
