package service

import (
	"context"
	"time"

	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/internal/repository/contract"
	"fbo-callrelay-be/pkg/metrics"
)

type IReaperService interface {
	Run(ctx context.Context)
	// Sweep completes every processing order silent since before now-silence
	// and returns their ids.
	Sweep(now time.Time) []string
}

type reaperService struct {
	orders   contract.OrderRepository
	interval time.Duration
	silence  time.Duration
	metrics  *metrics.Metrics
	logger   logger.ILogger
}

func NewReaperService(orders contract.OrderRepository, interval, silence time.Duration, m *metrics.Metrics, log logger.ILogger) IReaperService {
	return &reaperService{
		orders:   orders,
		interval: interval,
		silence:  silence,
		metrics:  m,
		logger:   log,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *reaperService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Reaper", "Stale order reaper started", map[string]interface{}{
		"interval": s.interval.String(),
		"silence":  s.silence.String(),
	})
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reaper", "Stale order reaper stopped", nil)
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

func (s *reaperService) Sweep(now time.Time) []string {
	completed := s.orders.CompleteStale(now.Add(-s.silence))

	ids := make([]string, 0, len(completed))
	for _, o := range completed {
		ids = append(ids, o.Id)
		s.metrics.OrdersCompleted.WithLabelValues("stale").Inc()
		s.logger.Info("Reaper", "Order completed after silence", map[string]interface{}{
			"order_id":   o.Id,
			"silent_for": now.Sub(o.UpdatedAt).String(),
		})
	}
	return ids
}
