package entity

import (
	"time"

	"groupbuy_market/internal/domain/value"
)

// Registration — запись участника в сделке. Создаётся ровно один раз на
// неотклонённую попытку вступления; Position глобальна по сделке, строго
// растёт и никогда не переназначается.
type Registration struct {
	ID     int64 `json:"id"`
	DealID int64 `json:"deal_id"`
	UserID int64 `json:"user_id"`

	Position  int   `json:"position"`
	PricePaid int64 `json:"price_paid"`
	Quantity  int   `json:"quantity"`

	Status value.RegistrationStatus `json:"status"`

	JoinedAt    time.Time  `json:"joined_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	PromotedAt  *time.Time `json:"promoted_at,omitempty"` // Перевод из листа ожидания
}

// WaitingListPosition — позиция для отображения внутри листа ожидания.
// Нумерация позиций глобальная, поэтому вычитается основная вместимость.
func (r Registration) WaitingListPosition(totalCapacity int) int {
	if r.Status != value.RegistrationWaitingList {
		return 0
	}

	return r.Position - totalCapacity
}
