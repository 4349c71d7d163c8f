package funnel

import (
	"fmt"
	"time"

	"groupbuy_market/internal/domain"
	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/errcodes"
)

// Engine — машина стадий воронки. Истечение дедлайна — производное свойство,
// вычисляемое при чтении; фоновые таймеры для закрытия стадий не нужны.
type Engine struct{}

func NewEngine() Engine {
	return Engine{}
}

// IsRegistrationOpen сообщает, принимает ли сделка заявки в момент now.
// Розничные сделки: открыты до EndTime либо ручного закрытия. Недвижимость:
// открыты только стадии PRE_REGISTRATION и FOMO_CONFIRMATION_WINDOW, и только
// пока их дедлайн (если задан) не прошёл. Стадия с прошедшим дедлайном
// считается закрытой независимо от сохранённого CurrentStage.
func (Engine) IsRegistrationOpen(deal entity.Deal, now time.Time) bool {
	if deal.ClosedAt != nil {
		return false
	}

	if deal.Kind == value.DealKindRetail {
		return deal.EndTime == nil || now.Before(*deal.EndTime)
	}

	stage := deal.CurrentStage
	if !stage.AcceptsRegistrations() {
		return false
	}

	return !deal.StageDeadlines.Expired(stage, now)
}

// EffectiveStage — стадия с учётом дедлайна: просроченная открытая стадия
// отображается как закрытая, даже если явного перехода не было.
func (Engine) EffectiveStage(deal entity.Deal, now time.Time) value.FunnelStage {
	stage := deal.CurrentStage

	if stage.AcceptsRegistrations() && deal.StageDeadlines.Expired(stage, now) {
		return value.StageRegistrationClosed
	}

	return stage
}

// Advance проверяет допустимость перехода current → next. Стадии идут строго
// вперёд; повтор текущей стадии и откат назад запрещены.
func (Engine) Advance(current, next value.FunnelStage) (value.FunnelStage, error) {
	if !current.Before(next) {
		return "", domain.NewError(errcodes.StageTransitionDenied,
			fmt.Sprintf("stage %s cannot advance to %s", current, next))
	}

	return next, nil
}
