package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clemensv/xregistry-package-registries-sub002/pkg/logging"
)

// Snapshotter copies a Memory store to a Badger database: Restore on start,
// Flush on an interval and once more on shutdown.
type Snapshotter struct {
	mem      *Memory
	durable  *Badger
	interval time.Duration
	logger   *zerolog.Logger
}

// NewSnapshotter creates a snapshotter. A nil logger uses the default.
func NewSnapshotter(mem *Memory, durable *Badger, interval time.Duration, logger *zerolog.Logger) *Snapshotter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Snapshotter{mem: mem, durable: durable, interval: interval, logger: logger}
}

// Restore loads every durable entry into memory. Restored entries are not
// dirty.
func (s *Snapshotter) Restore(_ context.Context) (int, error) {
	n := 0
	err := s.durable.Each(func(key string, value []byte) error {
		s.mem.load(key, value)
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	s.logger.Info().Int("entries", n).Msg("Restored store snapshot")
	return n, nil
}

// Flush writes the keys changed since the previous flush. Keys that fail to
// write are retried on the next flush.
func (s *Snapshotter) Flush(ctx context.Context) (int, error) {
	keys := s.mem.Dirty()
	if len(keys) == 0 {
		return 0, nil
	}
	batch := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok, _ := s.mem.Get(ctx, k); ok {
			batch[k] = v
		}
	}
	if err := s.durable.PutBatch(batch); err != nil {
		s.mem.markDirty(keys)
		return 0, err
	}
	s.logger.Debug().Int("entries", len(batch)).Msg("Flushed store snapshot")
	return len(batch), nil
}

// Run flushes on every tick until ctx is done, then flushes one final time.
func (s *Snapshotter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// the parent context is gone; the final flush still has to happen
			if _, err := s.Flush(context.WithoutCancel(ctx)); err != nil {
				s.logger.Error().Err(err).Msg("Final store snapshot failed")
			}
			return
		case <-ticker.C:
			if _, err := s.Flush(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Store snapshot failed")
			}
		}
	}
}
