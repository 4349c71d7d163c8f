package server

import (
	"fmt"
	"time"

	"git.appkode.ru/pub/go/failure"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/admission"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/errcodes"
	"groupbuy_market/pkg/lox"
	"groupbuy_market/pkg/rest"
)

func newDomainDeal(request rest.CreateDealRequest) (*entity.Deal, error) {
	kind, err := value.ParseDealKind(request.Kind)
	if err != nil {
		return nil, failure.NewInvalidArgumentErrorFromError(
			fmt.Errorf("value.ParseDealKind: %w", err),
			failure.WithCode(errcodes.ValidationError),
		)
	}

	tiers, err := value.NewTierTable(lox.Map(request.Tiers, newDomainTier))
	if err != nil {
		return nil, failure.NewInvalidArgumentErrorFromError(
			fmt.Errorf("value.NewTierTable: %w", err),
			failure.WithCode(errcodes.InvalidTierTable),
		)
	}

	deadlines := value.StageDeadlines{}
	for raw, deadline := range request.StageDeadlines {
		stage, err := value.ParseFunnelStage(raw)
		if err != nil {
			return nil, failure.NewInvalidArgumentErrorFromError(
				fmt.Errorf("value.ParseFunnelStage: %w", err),
				failure.WithCode(errcodes.InvalidStage),
			)
		}
		deadlines[stage] = deadline
	}

	return &entity.Deal{
		Kind:                kind,
		Title:               request.Title,
		SupplierID:          request.SupplierID,
		OriginalPrice:       request.OriginalPrice,
		Tiers:               tiers,
		TargetParticipants:  request.TargetParticipants,
		TotalCapacity:       request.TotalCapacity,
		WaitingListCapacity: request.WaitingListCapacity,
		CommissionPercent:   request.CommissionPercent,
		StageDeadlines:      deadlines,
		EndTime:             request.EndTime,
	}, nil
}

func newDomainTier(tier rest.Tier) value.Tier {
	return value.Tier{
		MinParticipants:   tier.MinParticipants,
		MaxParticipants:   tier.MaxParticipants,
		DiscountPercent:   tier.DiscountPercent,
		ExplicitPrice:     tier.ExplicitPrice,
		CommissionPercent: tier.CommissionPercent,
	}
}

func newRESTTier(tier value.Tier) rest.Tier {
	return rest.Tier{
		MinParticipants:   tier.MinParticipants,
		MaxParticipants:   tier.MaxParticipants,
		DiscountPercent:   tier.DiscountPercent,
		ExplicitPrice:     tier.ExplicitPrice,
		CommissionPercent: tier.CommissionPercent,
	}
}

func (s DealServer) newRESTDeal(deal entity.Deal) rest.Deal {
	now := s.now()

	response := rest.Deal{
		ID:                  deal.ID,
		Kind:                string(deal.Kind),
		Title:               deal.Title,
		SupplierID:          deal.SupplierID,
		OriginalPrice:       deal.OriginalPrice,
		Tiers:               lox.Map(deal.Tiers.Tiers(), newRESTTier),
		TargetParticipants:  deal.TargetParticipants,
		TotalCapacity:       deal.TotalCapacity,
		WaitingListCapacity: deal.WaitingListCapacity,
		OccupiedCount:       deal.OccupiedCount,
		CurrentStage:        deal.CurrentStage.String(),
		EffectiveStage:      s.funnel.EffectiveStage(deal, now).String(),
		RegistrationOpen:    s.funnel.IsRegistrationOpen(deal, now),
		EndTime:             deal.EndTime,
		ClosedAt:            deal.ClosedAt,
		CreatedAt:           deal.CreatedAt,
	}

	if deal.OccupiedCount > 0 {
		tier := deal.Tiers.ActiveTier(deal.OccupiedCount)
		restTier := newRESTTier(tier)
		response.CurrentTier = &restTier
	}

	if len(deal.StageDeadlines) > 0 {
		response.StageDeadlines = make(map[string]time.Time, len(deal.StageDeadlines))
		for stage, deadline := range deal.StageDeadlines {
			response.StageDeadlines[stage.String()] = deadline
		}
	}

	return response
}

func newRESTAdmissionResult(result admission.Result) rest.AdmissionResult {
	response := rest.AdmissionResult{
		Status:              string(result.Status),
		Reason:              string(result.Reason),
		Position:            result.Position,
		WaitingListPosition: result.WaitingListPosition,
		Price:               result.Price,
		PlatformCut:         result.Commission.PlatformCut,
		NetToSupplier:       result.Commission.NetToSupplier,
	}

	if result.Tier != nil {
		tier := newRESTTier(*result.Tier)
		response.Tier = &tier
	}

	if result.Registration != nil {
		response.RegistrationID = result.Registration.ID
	}

	return response
}

func newRESTTierPricing(tp pricing.TierPricing) rest.TierPricing {
	return rest.TierPricing{
		Tier:            newRESTTier(tp.Tier),
		FirstBuyerPrice: tp.FirstBuyerPrice,
		LastBuyerPrice:  tp.LastBuyerPrice,
		AvgPrice:        tp.AvgPrice,
	}
}

func newRESTRegistration(reg entity.Registration, totalCapacity int) rest.Registration {
	return rest.Registration{
		ID:                  reg.ID,
		DealID:              reg.DealID,
		UserID:              reg.UserID,
		Position:            reg.Position,
		WaitingListPosition: reg.WaitingListPosition(totalCapacity),
		PricePaid:           reg.PricePaid,
		Quantity:            reg.Quantity,
		Status:              string(reg.Status),
		JoinedAt:            reg.JoinedAt,
		CancelledAt:         reg.CancelledAt,
		PromotedAt:          reg.PromotedAt,
	}
}
