package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/domain/value"
)

type fakeDealLister struct {
	mu    sync.Mutex
	deals []entity.Deal
}

func (f *fakeDealLister) ListActive(_ context.Context) ([]entity.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deals := make([]entity.Deal, len(f.deals))
	copy(deals, f.deals)

	return deals, nil
}

func (f *fakeDealLister) setOccupied(count int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deals[0].OccupiedCount = count
}

// fakeDeduper повторяет семантику SETNX: первый вызов по ключу — true.
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: map[string]bool{}}
}

func (f *fakeDeduper) SetNX(_ context.Context, key string, _ any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	fresh := !f.seen[key]
	f.seen[key] = true

	return redis.NewBoolResult(fresh, nil)
}

func monitorDeal() entity.Deal {
	return entity.Deal{
		ID:            1,
		Kind:          value.DealKindRetail,
		Title:         "scanner deal",
		OriginalPrice: 4500,
		Tiers: value.MustTierTable([]value.Tier{
			{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 5},
			{MinParticipants: 21, MaxParticipants: 100, DiscountPercent: 18},
		}),
		TotalCapacity: 100,
		CurrentStage:  value.StagePreRegistration,
	}
}

func TestDealMonitorAlertsOncePerTier(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	repo := &fakeDealLister{deals: []entity.Deal{monitorDeal()}}
	alerts := make(chan TierAlert, 10)

	monitor := NewDealMonitor(repo, pricing.NewCalculator(10), newFakeDeduper(), alerts)

	// Пустая сделка не алертится.
	rq.NoError(monitor.scanOnce(ctx))
	rq.Empty(alerts)

	// Первый участник: один алерт по первому тиру.
	repo.setOccupied(1)
	rq.NoError(monitor.scanOnce(ctx))
	rq.Len(alerts, 1)

	alert := <-alerts
	rq.Equal(int64(1), alert.Deal.ID)
	rq.Equal(1, alert.Tier.MinParticipants)
	rq.Equal(int64(4275), alert.Pricing.AvgPrice) // 4500 − 5%

	// Тот же тир при повторном скане — дедупликация.
	repo.setOccupied(15)
	rq.NoError(monitor.scanOnce(ctx))
	rq.Empty(alerts)

	// Переход на следующий тир — новый алерт.
	repo.setOccupied(21)
	rq.NoError(monitor.scanOnce(ctx))
	rq.Len(alerts, 1)

	alert = <-alerts
	rq.Equal(21, alert.Tier.MinParticipants)
	rq.Equal(int64(3690), alert.Pricing.AvgPrice) // 4500 − 18%
}

func TestDealMonitorStartStop(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	repo := &fakeDealLister{deals: []entity.Deal{monitorDeal()}}
	alerts := make(chan TierAlert, 10)

	monitor := NewDealMonitor(repo, pricing.NewCalculator(10), newFakeDeduper(), alerts).
		WithScanInterval(time.Hour)

	rq.NoError(monitor.Start(ctx))
	rq.True(monitor.IsRunning())
	rq.Error(monitor.Start(ctx)) // повторный запуск запрещён

	monitor.Stop()
	rq.False(monitor.IsRunning())
}
