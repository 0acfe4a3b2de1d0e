package service

import (
	"context"
	"testing"
	"time"

	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/internal/repository/contract"
	"fbo-callrelay-be/internal/repository/memory"
	"fbo-callrelay-be/pkg/aviation"
	"fbo-callrelay-be/pkg/events"
	"fbo-callrelay-be/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReaper(repo *memory.OrderRepository, silence time.Duration) IReaperService {
	return NewReaperService(repo, time.Millisecond, silence, metrics.NewMetrics("test", prometheus.NewRegistry()), logger.NewNopLogger())
}

func TestReaperSweep_CompletesSilentOrdersOnce(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := &recorder{}
	repo := memory.NewOrderRepository(rec, aviation.DefaultDirectory(), time.Minute).
		WithClock(func() time.Time { return base })
	reaper := newTestReaper(repo, 5*time.Minute)

	order := repo.GetOrCreateActiveOrder("")
	rec.clear()

	assert.Empty(t, reaper.Sweep(base.Add(5*time.Minute)), "exactly at the threshold is not stale yet")

	reaped := reaper.Sweep(base.Add(5*time.Minute + time.Second))
	assert.Equal(t, []string{order.Id}, reaped)
	assert.Equal(t, []string{events.TypeOrderUpdate}, rec.types())

	assert.Empty(t, reaper.Sweep(base.Add(time.Hour)))
	assert.Equal(t, []string{events.TypeOrderUpdate}, rec.types())
}

func TestReaperSweep_LeavesActiveOrdersAlone(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	rec := &recorder{}
	repo := memory.NewOrderRepository(rec, aviation.DefaultDirectory(), time.Minute).
		WithClock(func() time.Time { return now })
	reaper := newTestReaper(repo, 5*time.Minute)

	repo.GetOrCreateActiveOrder("")
	now = base.Add(4 * time.Minute)
	_, err := repo.Update("", touch)
	require.NoError(t, err)

	assert.Empty(t, reaper.Sweep(base.Add(6*time.Minute)))
	assert.Len(t, repo.ProcessingOrderIDs(), 1)
}

func TestReaperRun_StopsOnCancel(t *testing.T) {
	repo := memory.NewOrderRepository(&recorder{}, aviation.DefaultDirectory(), time.Minute)
	reaper := newTestReaper(repo, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}

func touch(o *entity.Order, emit contract.Emitter) bool {
	return true
}
