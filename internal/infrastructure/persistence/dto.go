package persistence

import (
	"database/sql"
	"encoding/json"
	"time"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/value"
)

// dealSchema — внутренняя структура для маппинга строки deals.
type dealSchema struct {
	ID                  int64           `db:"id"`
	Kind                string          `db:"kind"`
	Title               string          `db:"title"`
	SupplierID          int64           `db:"supplier_id"`
	OriginalPrice       int64           `db:"original_price"`
	Tiers               []byte          `db:"tiers"`
	TargetParticipants  int             `db:"target_participants"`
	TotalCapacity       int             `db:"total_capacity"`
	WaitingListCapacity int             `db:"waiting_list_capacity"`
	ParticipantSeq      int             `db:"participant_seq"`
	OccupiedCount       int             `db:"occupied_count"`
	CommissionPercent   sql.NullFloat64 `db:"commission_percent"`
	CurrentStage        string          `db:"current_stage"`
	StageDeadlines      []byte          `db:"stage_deadlines"`
	EndTime             sql.NullTime    `db:"end_time"`
	ClosedAt            sql.NullTime    `db:"closed_at"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

func (s *dealSchema) toDomain() (*entity.Deal, error) {
	var rawTiers []value.Tier
	if err := json.Unmarshal(s.Tiers, &rawTiers); err != nil {
		return nil, err
	}

	// Таблица в БД записана уже проверенной, но конструктор прогоняется
	// повторно: инварианты value-типа не обходятся через хранилище.
	tiers, err := value.NewTierTable(rawTiers)
	if err != nil {
		return nil, err
	}

	stage, err := value.ParseFunnelStage(s.CurrentStage)
	if err != nil {
		return nil, err
	}

	deadlines := value.StageDeadlines{}
	if len(s.StageDeadlines) > 0 {
		if err := json.Unmarshal(s.StageDeadlines, &deadlines); err != nil {
			return nil, err
		}
	}

	deal := &entity.Deal{
		ID:                  s.ID,
		Kind:                value.DealKind(s.Kind),
		Title:               s.Title,
		SupplierID:          s.SupplierID,
		OriginalPrice:       s.OriginalPrice,
		Tiers:               tiers,
		TargetParticipants:  s.TargetParticipants,
		TotalCapacity:       s.TotalCapacity,
		WaitingListCapacity: s.WaitingListCapacity,
		ParticipantSeq:      s.ParticipantSeq,
		OccupiedCount:       s.OccupiedCount,
		CurrentStage:        stage,
		StageDeadlines:      deadlines,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}

	if s.CommissionPercent.Valid {
		deal.CommissionPercent = &s.CommissionPercent.Float64
	}

	if s.EndTime.Valid {
		deal.EndTime = &s.EndTime.Time
	}

	if s.ClosedAt.Valid {
		deal.ClosedAt = &s.ClosedAt.Time
	}

	return deal, nil
}

// registrationSchema — маппинг строки registrations.
type registrationSchema struct {
	ID          int64        `db:"id"`
	DealID      int64        `db:"deal_id"`
	UserID      int64        `db:"user_id"`
	Position    int          `db:"position"`
	PricePaid   int64        `db:"price_paid"`
	Quantity    int          `db:"quantity"`
	Status      string       `db:"status"`
	JoinedAt    time.Time    `db:"joined_at"`
	CancelledAt sql.NullTime `db:"cancelled_at"`
	PromotedAt  sql.NullTime `db:"promoted_at"`
}

func (s *registrationSchema) toDomain() (*entity.Registration, error) {
	status, err := value.ParseRegistrationStatus(s.Status)
	if err != nil {
		return nil, err
	}

	reg := &entity.Registration{
		ID:        s.ID,
		DealID:    s.DealID,
		UserID:    s.UserID,
		Position:  s.Position,
		PricePaid: s.PricePaid,
		Quantity:  s.Quantity,
		Status:    status,
		JoinedAt:  s.JoinedAt,
	}

	if s.CancelledAt.Valid {
		reg.CancelledAt = &s.CancelledAt.Time
	}

	if s.PromotedAt.Valid {
		reg.PromotedAt = &s.PromotedAt.Time
	}

	return reg, nil
}
