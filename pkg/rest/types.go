// Данный файл должен быть сгенерирован из openapi спецификации и называться types.gen.go
package rest

import "time"

type Tier struct {
	MinParticipants   int      `json:"minParticipants" validate:"gte=1"`
	MaxParticipants   int      `json:"maxParticipants" validate:"gte=1"`
	DiscountPercent   float64  `json:"discountPercent" validate:"gte=0,lte=100"`
	ExplicitPrice     *int64   `json:"explicitPrice,omitempty"`
	CommissionPercent *float64 `json:"commissionPercent,omitempty"`
}

type CreateDealRequest struct {
	Kind                string               `json:"kind" validate:"required,oneof=retail real_estate"`
	Title               string               `json:"title" validate:"required"`
	SupplierID          int64                `json:"supplierId" validate:"required"`
	OriginalPrice       int64                `json:"originalPrice" validate:"required,gt=0"`
	Tiers               []Tier               `json:"tiers" validate:"required,min=1,dive"`
	TargetParticipants  int                  `json:"targetParticipants" validate:"gte=0"`
	TotalCapacity       int                  `json:"totalCapacity" validate:"required,gt=0"`
	WaitingListCapacity int                  `json:"waitingListCapacity" validate:"gte=0"`
	CommissionPercent   *float64             `json:"commissionPercent,omitempty"`
	StageDeadlines      map[string]time.Time `json:"stageDeadlines,omitempty"`
	EndTime             *time.Time           `json:"endTime,omitempty"`
}

type Deal struct {
	ID                  int64                `json:"id"`
	Kind                string               `json:"kind"`
	Title               string               `json:"title"`
	SupplierID          int64                `json:"supplierId"`
	OriginalPrice       int64                `json:"originalPrice"`
	Tiers               []Tier               `json:"tiers"`
	TargetParticipants  int                  `json:"targetParticipants"`
	TotalCapacity       int                  `json:"totalCapacity"`
	WaitingListCapacity int                  `json:"waitingListCapacity"`
	OccupiedCount       int                  `json:"occupiedCount"`
	CurrentTier         *Tier                `json:"currentTier,omitempty"`
	CurrentStage        string               `json:"currentStage"`
	EffectiveStage      string               `json:"effectiveStage"`
	RegistrationOpen    bool                 `json:"registrationOpen"`
	StageDeadlines      map[string]time.Time `json:"stageDeadlines,omitempty"`
	EndTime             *time.Time           `json:"endTime,omitempty"`
	ClosedAt            *time.Time           `json:"closedAt,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
}

type JoinDealRequest struct {
	UserID   int64 `json:"userId" validate:"required"`
	Quantity int   `json:"quantity" validate:"gte=0"`
}

type AdmissionResult struct {
	Status              string `json:"status"`
	Reason              string `json:"reason,omitempty"`
	Position            int    `json:"position,omitempty"`
	WaitingListPosition int    `json:"waitingListPosition,omitempty"`
	Tier                *Tier  `json:"tier,omitempty"`
	Price               int64  `json:"price,omitempty"`
	PlatformCut         int64  `json:"platformCut,omitempty"`
	NetToSupplier       int64  `json:"netToSupplier,omitempty"`
	RegistrationID      int64  `json:"registrationId,omitempty"`
}

type TierPricing struct {
	Tier            Tier  `json:"tier"`
	FirstBuyerPrice int64 `json:"firstBuyerPrice"`
	LastBuyerPrice  int64 `json:"lastBuyerPrice"`
	AvgPrice        int64 `json:"avgPrice"`
}

type AdvanceStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type Registration struct {
	ID                  int64      `json:"id"`
	DealID              int64      `json:"dealId"`
	UserID              int64      `json:"userId"`
	Position            int        `json:"position"`
	WaitingListPosition int        `json:"waitingListPosition,omitempty"`
	PricePaid           int64      `json:"pricePaid"`
	Quantity            int        `json:"quantity"`
	Status              string     `json:"status"`
	JoinedAt            time.Time  `json:"joinedAt"`
	CancelledAt         *time.Time `json:"cancelledAt,omitempty"`
	PromotedAt          *time.Time `json:"promotedAt,omitempty"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`
}

// ErrorCode Код ошибки
type ErrorCode string
