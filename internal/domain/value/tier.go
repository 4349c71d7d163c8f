package value

import (
	"fmt"
	"sort"

	"groupbuy_market/internal/domain"
	"groupbuy_market/pkg/errcodes"
)

// Tier — непрерывный диапазон количества участников с фиксированной скидкой
// или явной ценой. CommissionPercent перекрывает комиссию сделки, если задан.
type Tier struct {
	MinParticipants   int      `json:"min_participants"`
	MaxParticipants   int      `json:"max_participants"`
	DiscountPercent   float64  `json:"discount_percent"`
	ExplicitPrice     *int64   `json:"explicit_price,omitempty"`
	CommissionPercent *float64 `json:"commission_percent,omitempty"`
}

// Size возвращает вместимость тира.
func (t Tier) Size() int {
	return t.MaxParticipants - t.MinParticipants + 1
}

// Contains проверяет, попадает ли количество участников в диапазон тира.
func (t Tier) Contains(participantCount int) bool {
	return participantCount >= t.MinParticipants && participantCount <= t.MaxParticipants
}

// TierTable — проверенная при создании, неизменяемая таблица тиров.
// После конструктора гарантировано: таблица не пуста, тиры отсортированы по
// MinParticipants, не пересекаются и идут без дыр.
type TierTable struct {
	tiers []Tier
}

func NewTierTable(tiers []Tier) (TierTable, error) {
	if len(tiers) == 0 {
		return TierTable{}, domain.NewError(errcodes.InvalidTierTable, "tier table is empty")
	}

	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinParticipants < sorted[j].MinParticipants
	})

	for i, tier := range sorted {
		if tier.MinParticipants < 1 {
			return TierTable{}, domain.NewError(errcodes.InvalidTierTable,
				fmt.Sprintf("tier %d: min participants %d < 1", i, tier.MinParticipants))
		}

		if tier.MaxParticipants < tier.MinParticipants {
			return TierTable{}, domain.NewError(errcodes.InvalidTierTable,
				fmt.Sprintf("tier %d: max %d < min %d", i, tier.MaxParticipants, tier.MinParticipants))
		}

		if tier.DiscountPercent < 0 || tier.DiscountPercent > 100 {
			return TierTable{}, domain.NewError(errcodes.InvalidTierTable,
				fmt.Sprintf("tier %d: discount %.2f out of [0,100]", i, tier.DiscountPercent))
		}

		if tier.ExplicitPrice != nil && *tier.ExplicitPrice < 0 {
			return TierTable{}, domain.NewError(errcodes.InvalidTierTable,
				fmt.Sprintf("tier %d: negative explicit price", i))
		}

		if i == 0 {
			continue
		}

		prev := sorted[i-1]

		switch {
		case tier.MinParticipants <= prev.MaxParticipants:
			return TierTable{}, domain.NewError(errcodes.InvalidTierTable,
				fmt.Sprintf("tiers %d and %d overlap", i-1, i))
		case tier.MinParticipants != prev.MaxParticipants+1:
			return TierTable{}, domain.NewError(errcodes.InvalidTierTable,
				fmt.Sprintf("gap between tiers %d and %d", i-1, i))
		}
	}

	return TierTable{tiers: sorted}, nil
}

// MustTierTable — для тестов и статичных таблиц.
func MustTierTable(tiers []Tier) TierTable {
	table, err := NewTierTable(tiers)
	if err != nil {
		panic(err)
	}

	return table
}

// ActiveTier возвращает тир, содержащий participantCount. Количество ниже
// нижней границы первого тира даёт первый тир (минимальную скидку), выше
// верхней границы последнего — последний: скидки растут с участниками и не
// откатываются назад.
func (t TierTable) ActiveTier(participantCount int) Tier {
	if participantCount < t.tiers[0].MinParticipants {
		return t.tiers[0]
	}

	for _, tier := range t.tiers {
		if tier.Contains(participantCount) {
			return tier
		}
	}

	return t.tiers[len(t.tiers)-1]
}

// Tiers возвращает копию таблицы в порядке возрастания MinParticipants.
func (t TierTable) Tiers() []Tier {
	tiers := make([]Tier, len(t.tiers))
	copy(tiers, t.tiers)

	return tiers
}

func (t TierTable) Len() int {
	return len(t.tiers)
}

// Last возвращает финальный тир (минимальная цена).
func (t TierTable) Last() Tier {
	return t.tiers[len(t.tiers)-1]
}
