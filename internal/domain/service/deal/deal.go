package deal

import (
	"context"
	"fmt"
	"time"

	"groupbuy_market/internal/domain"
	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/funnel"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/contextx"
	"groupbuy_market/pkg/errcodes"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type Repository interface {
	Create(ctx context.Context, deal *entity.Deal) error
	GetByID(ctx context.Context, id int64) (*entity.Deal, error)
	List(ctx context.Context, limit, offset int) ([]entity.Deal, error)
	ListActive(ctx context.Context) ([]entity.Deal, error)
	UpdateStage(ctx context.Context, id int64, stage value.FunnelStage) error
	Close(ctx context.Context, id int64, at time.Time) error
}

// Service — жизненный цикл сделки: создание с жадной валидацией таблицы
// тиров, продвижение стадий воронки, закрытие. Изменение таблицы тиров у
// сделки с участниками сознательно не поддерживается: это отдельная
// миграция с пересчётом, не тихий re-price.
type Service struct {
	repo   Repository
	funnel funnel.Engine
	now    func() time.Time
}

func NewService(repo Repository, funnelEngine funnel.Engine) *Service {
	return &Service{
		repo:   repo,
		funnel: funnelEngine,
		now:    time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create валидирует и сохраняет сделку. Ошибки конфигурации (пустая таблица,
// пересечения, дыры) всплывают здесь и никогда — в момент вступления.
func (s *Service) Create(ctx context.Context, deal *entity.Deal) error {
	if deal.OriginalPrice <= 0 {
		return domain.NewError(errcodes.InvalidOriginalPrice, "original price must be positive")
	}

	if deal.TotalCapacity <= 0 {
		return domain.NewError(errcodes.InvalidCapacity, "total capacity must be positive")
	}

	if deal.WaitingListCapacity < 0 {
		return domain.NewError(errcodes.InvalidCapacity, "waiting list capacity must not be negative")
	}

	if deal.Tiers.Len() == 0 {
		return domain.NewError(errcodes.InvalidTierTable, "tier table is empty")
	}

	if deal.CurrentStage == "" {
		deal.CurrentStage = value.StagePreRegistration
	}

	deal.CreatedAt = s.now()
	deal.UpdatedAt = deal.CreatedAt

	if err := s.repo.Create(ctx, deal); err != nil {
		return fmt.Errorf("repo.Create: %w", err)
	}

	logger(ctx).Info("deal created",
		"deal_id", deal.ID,
		"kind", string(deal.Kind),
		"capacity", deal.TotalCapacity,
		"tiers", deal.Tiers.Len(),
	)

	return nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*entity.Deal, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]entity.Deal, error) {
	return s.repo.List(ctx, limit, offset)
}

// AdvanceStage — администраторский переход воронки, строго вперёд.
func (s *Service) AdvanceStage(ctx context.Context, id int64, next value.FunnelStage) (*entity.Deal, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("repo.GetByID: %w", err)
	}

	if d.Kind != value.DealKindRealEstate {
		return nil, domain.NewError(errcodes.InvalidStage, "retail deals have no funnel stages")
	}

	if d.Closed() {
		return nil, domain.NewError(errcodes.DealAlreadyClosed, "deal is closed")
	}

	stage, err := s.funnel.Advance(d.CurrentStage, next)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStage(ctx, id, stage); err != nil {
		return nil, fmt.Errorf("repo.UpdateStage: %w", err)
	}

	logger(ctx).Info("deal stage advanced", "deal_id", id, "from", d.CurrentStage.String(), "to", stage.String())

	d.CurrentStage = stage

	return d, nil
}

// Close закрывает сделку вручную.
func (s *Service) Close(ctx context.Context, id int64) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("repo.GetByID: %w", err)
	}

	if d.Closed() {
		return domain.NewError(errcodes.DealAlreadyClosed, "deal is already closed")
	}

	if err := s.repo.Close(ctx, id, s.now()); err != nil {
		return fmt.Errorf("repo.Close: %w", err)
	}

	logger(ctx).Info("deal closed", "deal_id", id)

	return nil
}
