package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/domain/value"
)

const tierAlertDedupTTL = 24 * time.Hour

// TierAlert — событие перехода сделки на новый тир (цена упала).
type TierAlert struct {
	Deal    entity.Deal
	Tier    value.Tier
	Pricing pricing.TierPricing
}

type DealRepository interface {
	ListActive(ctx context.Context) ([]entity.Deal, error)
}

// alertDeduper — срез Redis-клиента, достаточный для дедупликации алертов.
type alertDeduper interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// DealMonitor периодически сканирует активные сделки и публикует события о
// переходе на новый тир. Дедупликация через Redis SETNX: один и тот же
// переход не алертится повторно после рестарта.
type DealMonitor struct {
	dealRepo DealRepository
	calc     pricing.Calculator
	redis    alertDeduper
	alerts   chan<- TierAlert

	scanInterval time.Duration

	// Control fields
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  bool
	wg         sync.WaitGroup
}

func NewDealMonitor(
	dealRepo DealRepository,
	calc pricing.Calculator,
	redisClient alertDeduper,
	alerts chan<- TierAlert,
) *DealMonitor {
	return &DealMonitor{
		dealRepo:     dealRepo,
		calc:         calc,
		redis:        redisClient,
		alerts:       alerts,
		scanInterval: 30 * time.Second,
	}
}

func (w *DealMonitor) WithScanInterval(interval time.Duration) *DealMonitor {
	if interval > 0 {
		w.scanInterval = interval
	}
	return w
}

func (w *DealMonitor) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("monitor is already running")
	}

	scanCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.isRunning = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.cancelFunc = nil
			w.mu.Unlock()
		}()

		if err := w.Run(scanCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger(scanCtx).Error("deal monitor stopped", "error", err)
		}
	}()

	return nil
}

func (w *DealMonitor) Stop() {
	w.mu.Lock()

	if !w.isRunning {
		w.mu.Unlock()
		return
	}

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// IsRunning возвращает текущий статус
func (w *DealMonitor) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *DealMonitor) Run(ctx context.Context) error {
	logger(ctx).Info("deal monitor started", "interval", w.scanInterval.String())

	ticker := time.NewTicker(w.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger(ctx).Info("deal monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.scanOnce(ctx); err != nil {
				logger(ctx).Error("deal monitor scan failed", "error", err)
			}
		}
	}
}

func (w *DealMonitor) scanOnce(ctx context.Context) error {
	deals, err := w.dealRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("dealRepo.ListActive: %w", err)
	}

	for _, deal := range deals {
		if deal.OccupiedCount == 0 {
			continue
		}

		tier := deal.Tiers.ActiveTier(deal.OccupiedCount)

		fresh, err := w.markSeen(ctx, deal.ID, tier)
		if err != nil {
			logger(ctx).Error("tier alert dedup failed", "deal_id", deal.ID, "error", err)
			continue
		}

		if !fresh {
			continue
		}

		alert := TierAlert{
			Deal:    deal,
			Tier:    tier,
			Pricing: w.calc.Summary(tier, deal.OriginalPrice),
		}

		select {
		case w.alerts <- alert:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// markSeen возвращает true, если переход сделки на тир ещё не алертился.
func (w *DealMonitor) markSeen(ctx context.Context, dealID int64, tier value.Tier) (bool, error) {
	key := fmt.Sprintf("tier-alert:%d:%d", dealID, tier.MinParticipants)

	return w.redis.SetNX(ctx, key, 1, tierAlertDedupTTL).Result()
}
