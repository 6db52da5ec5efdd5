package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Scheduler struct {
	cron   *cron.Cron
	queue  *redis.Client
	stream string
	maxLen int64
	log    zerolog.Logger
}

func NewScheduler(queue *redis.Client, stream string, maxLen int64, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		queue:  queue,
		stream: stream,
		maxLen: maxLen,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || s.maxLen <= 0 {
		return nil
	}

	if _, err := s.cron.AddFunc("0 30 3 * * *", s.trimStream); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits up to five seconds for a running trim.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) trimStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.trim(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("stream", s.stream).Msg("trim stream failed")
		return
	}
	s.log.Info().Str("stream", s.stream).Int64("removed", removed).Msg("stream trimmed")
}

func (s *Scheduler) trim(ctx context.Context) (int64, error) {
	return s.queue.XTrimMaxLen(ctx, s.stream, s.maxLen).Result()
}
