package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"groupbuy_market/internal/domain"
	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/funnel"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/errcodes"
)

const (
	pricingCacheTTL     = time.Minute
	pricingCacheCleanup = 5 * time.Minute
)

// JoinRequest — заявка на вступление в сделку.
type JoinRequest struct {
	DealID   int64
	UserID   int64
	Quantity int
}

// Result — исход допуска. Position заполнена для CONFIRMED и WAITING_LIST,
// Tier/Price/Commission — только для CONFIRMED.
type Result struct {
	Status              value.AdmissionStatus
	Reason              value.RejectReason
	Position            int
	WaitingListPosition int
	Tier                *value.Tier
	Price               int64
	Commission          pricing.Commission
	Registration        *entity.Registration
}

// DecideFunc вычисляет исход по заблокированному состоянию сделки. Ранг
// кандидата — deal.ParticipantSeq до инкремента. Репозиторий фиксирует
// инкремент и вставку регистрации только если Registration != nil; отказ
// откатывает транзакцию и не сжигает номер позиции.
type DecideFunc func(deal entity.Deal) (Result, error)

type DealRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Deal, error)
	// Admit выполняет decide под блокировкой строки сделки (FOR UPDATE).
	// Конфликт на уровне хранилища возвращается с кодом ConcurrencyConflict.
	Admit(ctx context.Context, dealID int64, decide DecideFunc) (Result, error)
}

type RegistrationRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Registration, error)
	Cancel(ctx context.Context, id int64, at time.Time) (*entity.Registration, error)
	PromoteEarliestWaiting(ctx context.Context, dealID int64, price int64, at time.Time) (*entity.Registration, error)
	ListByDeal(ctx context.Context, dealID int64, limit, offset int) ([]entity.Registration, error)
}

// TaskEnqueuer откладывает продвижение листа ожидания в очередь задач.
type TaskEnqueuer interface {
	EnqueueWaitlistPromotion(ctx context.Context, dealID int64) error
}

// Controller — единственный stateful-компонент движка: атомарный допуск,
// назначение позиций FIFO, отмены и продвижение листа ожидания.
type Controller struct {
	dealRepo     DealRepository
	regRepo      RegistrationRepository
	calc         pricing.Calculator
	funnel       funnel.Engine
	enqueuer     TaskEnqueuer
	now          func() time.Time
	pricingCache *cache.Cache
}

func NewController(
	dealRepo DealRepository,
	regRepo RegistrationRepository,
	calc pricing.Calculator,
	funnelEngine funnel.Engine,
	enqueuer TaskEnqueuer,
) *Controller {
	return &Controller{
		dealRepo:     dealRepo,
		regRepo:      regRepo,
		calc:         calc,
		funnel:       funnelEngine,
		enqueuer:     enqueuer,
		now:          time.Now,
		pricingCache: cache.New(pricingCacheTTL, pricingCacheCleanup),
	}
}

// WithClock подменяет источник времени (для тестов дедлайнов).
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Admit — операция допуска из §"движок": consult воронки, атомарный ранг,
// CONFIRMED / WAITING_LIST / REJECTED. Конфликт хранилища повторяется ровно
// один раз с той же заявкой; повторный конфликт уходит вызывающему.
func (c *Controller) Admit(ctx context.Context, req JoinRequest) (Result, error) {
	result, err := c.admitOnce(ctx, req)
	if err != nil && isConcurrencyConflict(err) {
		conflictRetries.Inc()
		logger(ctx).Warn("admission conflict, retrying once", "deal_id", req.DealID)

		result, err = c.admitOnce(ctx, req)
	}

	if err != nil {
		return Result{}, err
	}

	admissionsTotal.WithLabelValues(string(result.Status)).Inc()

	return result, nil
}

func (c *Controller) admitOnce(ctx context.Context, req JoinRequest) (Result, error) {
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	return c.dealRepo.Admit(ctx, req.DealID, func(deal entity.Deal) (Result, error) {
		now := c.now()

		if !c.funnel.IsRegistrationOpen(deal, now) {
			return Result{
				Status: value.AdmissionRejected,
				Reason: value.RejectStageClosed,
			}, nil
		}

		rank := deal.ParticipantSeq // нулевой ранг кандидата до инкремента
		position := rank + 1

		switch {
		case rank < deal.TotalCapacity:
			tier := deal.Tiers.ActiveTier(position)
			positionWithinTier := position - tier.MinParticipants + 1
			price := c.calc.PriceForPosition(tier, deal.OriginalPrice, positionWithinTier)

			return Result{
				Status:     value.AdmissionConfirmed,
				Position:   position,
				Tier:       &tier,
				Price:      price,
				Commission: c.calc.CommissionFor(tier, deal.CommissionPercent, price),
				Registration: &entity.Registration{
					DealID:    deal.ID,
					UserID:    req.UserID,
					Position:  position,
					PricePaid: price,
					Quantity:  quantity,
					Status:    value.RegistrationConfirmed,
					JoinedAt:  now,
				},
			}, nil

		case rank-deal.TotalCapacity < deal.WaitingListCapacity:
			return Result{
				Status:              value.AdmissionWaitingList,
				Position:            position,
				WaitingListPosition: position - deal.TotalCapacity,
				Registration: &entity.Registration{
					DealID:   deal.ID,
					UserID:   req.UserID,
					Position: position,
					Quantity: quantity,
					Status:   value.RegistrationWaitingList,
					JoinedAt: now,
				},
			}, nil

		default:
			return Result{
				Status: value.AdmissionRejected,
				Reason: value.RejectCapacityExceeded,
			}, nil
		}
	})
}

// Cancel отменяет регистрацию. Номер позиции не освобождается, уменьшается
// только эффективная занятость; для подтверждённой записи ставится задача
// продвижения листа ожидания.
func (c *Controller) Cancel(ctx context.Context, registrationID int64) (*entity.Registration, error) {
	reg, err := c.regRepo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("regRepo.GetByID: %w", err)
	}

	if reg.Status == value.RegistrationCancelled {
		return nil, domain.NewError(errcodes.RegistrationAlreadyCancelled, "registration already cancelled")
	}

	wasConfirmed := reg.Status == value.RegistrationConfirmed

	cancelled, err := c.regRepo.Cancel(ctx, registrationID, c.now())
	if err != nil {
		return nil, fmt.Errorf("regRepo.Cancel: %w", err)
	}

	cancellationsTotal.Inc()

	if wasConfirmed && c.enqueuer != nil {
		if err := c.enqueuer.EnqueueWaitlistPromotion(ctx, reg.DealID); err != nil {
			// Продвижение не критично для отмены: залогировать и отдать успех.
			logger(ctx).Error("enqueue waitlist promotion", "deal_id", reg.DealID, "error", err)
		}
	}

	return cancelled, nil
}

// PromoteFromWaitlist переводит самую раннюю запись листа ожидания в
// CONFIRMED. Позиция сохраняется; цена — по последнему слоту основной
// вместимости (участник занимает освободившееся место в финальном тире).
// Наличие свободного места решает репозиторий под блокировкой строки
// сделки: прочитанная здесь занятость — только для расчёта цены.
func (c *Controller) PromoteFromWaitlist(ctx context.Context, dealID int64) (*entity.Registration, error) {
	deal, err := c.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("dealRepo.GetByID: %w", err)
	}

	tier := deal.Tiers.ActiveTier(deal.TotalCapacity)
	price := c.calc.PriceForPosition(tier, deal.OriginalPrice, deal.TotalCapacity-tier.MinParticipants+1)

	promoted, err := c.regRepo.PromoteEarliestWaiting(ctx, dealID, price, c.now())
	if err != nil {
		if errors.Is(err, ErrNoWaiting) || errors.Is(err, ErrNoFreeSlot) {
			return nil, nil
		}

		return nil, fmt.Errorf("regRepo.PromoteEarliestWaiting: %w", err)
	}

	promotionsTotal.Inc()

	return promoted, nil
}

// PricingSummary — сводка цен по тирам с коротким TTL-кэшем для витрины.
func (c *Controller) PricingSummary(ctx context.Context, dealID int64) ([]pricing.TierPricing, error) {
	cacheKey := fmt.Sprintf("pricing:%d", dealID)

	if cached, ok := c.pricingCache.Get(cacheKey); ok {
		return cached.([]pricing.TierPricing), nil
	}

	deal, err := c.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("dealRepo.GetByID: %w", err)
	}

	summary := c.calc.DealSummary(*deal)
	c.pricingCache.SetDefault(cacheKey, summary)

	return summary, nil
}

// ListRegistrations — страница регистраций сделки по росту позиции.
func (c *Controller) ListRegistrations(ctx context.Context, dealID int64, limit, offset int) ([]entity.Registration, error) {
	return c.regRepo.ListByDeal(ctx, dealID, limit, offset)
}

// ErrNoWaiting возвращается репозиторием, когда лист ожидания пуст.
var ErrNoWaiting = errors.New("no waiting registrations")

// ErrNoFreeSlot возвращается репозиторием, когда вся основная вместимость
// занята и продвигать некуда.
var ErrNoFreeSlot = errors.New("no free capacity slot")

func isConcurrencyConflict(err error) bool {
	code, ok := domain.GetCode(err)
	return ok && code == errcodes.ConcurrencyConflict
}
