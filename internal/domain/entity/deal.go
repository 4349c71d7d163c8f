package entity

import (
	"time"

	"groupbuy_market/internal/domain/value"
)

// Deal — групповая закупка: розничный лот или слот на недвижимость.
// Владеет своей таблицей тиров и регистрациями.
type Deal struct {
	ID            int64          `json:"id"`
	Kind          value.DealKind `json:"kind"`
	Title         string         `json:"title"`
	SupplierID    int64          `json:"supplier_id"`
	OriginalPrice int64          `json:"original_price"` // Рыночная цена до скидок, в целых единицах валюты

	Tiers value.TierTable `json:"tiers"`

	TargetParticipants  int `json:"target_participants"`
	TotalCapacity       int `json:"total_capacity"`
	WaitingListCapacity int `json:"waiting_list_capacity"`

	// Монотонный счётчик позиций. Источник истины — строка сделки в БД,
	// инкремент только через транзакционный nextPosition (см. persistence).
	ParticipantSeq int `json:"participant_seq"`

	// Для отображения: подтверждённые минус отменённые. Номера позиций при
	// отмене не переиспользуются.
	OccupiedCount int `json:"occupied_count"`

	CommissionPercent *float64 `json:"commission_percent,omitempty"` // Перекрывает платформенный дефолт

	CurrentStage   value.FunnelStage    `json:"current_stage"`
	StageDeadlines value.StageDeadlines `json:"stage_deadlines,omitempty"`
	EndTime        *time.Time           `json:"end_time,omitempty"` // Дедлайн розничной сделки
	ClosedAt       *time.Time           `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Closed — закрыта ли сделка явно или по достижении терминальной стадии.
func (d Deal) Closed() bool {
	return d.ClosedAt != nil || d.CurrentStage.Terminal()
}
