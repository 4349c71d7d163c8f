package pricing

import (
	"github.com/shopspring/decimal"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/value"
)

// Ценообразование по позиции: первый вошедший в тир получает дополнительную
// скидку 2.5% от номинала тира, последний платит надбавку 2.5%, промежуточные
// позиции интерполируются линейно. Все суммы — целые единицы валюты,
// округление везде half-up (Decimal.Round округляет половину от нуля).

const positionEdgeAdjustPercent = 2.5

var (
	hundred    = decimal.NewFromInt(100)                          //nolint:gochecknoglobals
	edgeAdjust = decimal.NewFromFloat(positionEdgeAdjustPercent). //nolint:gochecknoglobals
			Div(hundred)
)

// TierPricing — сводка цен тира для витрины. Avg — номинальная цена тира без
// позиционной поправки.
type TierPricing struct {
	Tier            value.Tier `json:"tier"`
	FirstBuyerPrice int64      `json:"first_buyer_price"`
	LastBuyerPrice  int64      `json:"last_buyer_price"`
	AvgPrice        int64      `json:"avg_price"`
}

// Commission — разрез выручки с одной оплаты.
type Commission struct {
	PlatformCut   int64 `json:"platform_cut"`
	NetToSupplier int64 `json:"net_to_supplier"`
}

type Calculator struct {
	defaultCommissionPercent float64
}

func NewCalculator(defaultCommissionPercent float64) Calculator {
	return Calculator{
		defaultCommissionPercent: defaultCommissionPercent,
	}
}

// NominalTierPrice — цена тира без позиционной поправки: явная цена тира,
// иначе originalPrice за вычетом скидки.
func (Calculator) NominalTierPrice(tier value.Tier, originalPrice int64) int64 {
	if tier.ExplicitPrice != nil {
		return *tier.ExplicitPrice
	}

	discount := decimal.NewFromFloat(tier.DiscountPercent).Div(hundred)

	return decimal.NewFromInt(originalPrice).
		Mul(decimal.NewFromInt(1).Sub(discount)).
		Round(0).
		IntPart()
}

// PriceForPosition — цена для участника с позицией внутри тира
// (1 ≤ positionWithinTier ≤ tier.Size()). Для тира вместимостью 1 поправка
// не применяется.
func (c Calculator) PriceForPosition(tier value.Tier, originalPrice int64, positionWithinTier int) int64 {
	nominal := c.NominalTierPrice(tier, originalPrice)

	size := tier.Size()
	if size == 1 {
		return nominal
	}

	first := firstBuyerPrice(nominal)
	last := lastBuyerPrice(nominal)

	// Линейная интерполяция между уже округлёнными краями: гарантирует
	// совпадение цен крайних позиций с витриной и монотонность по позиции.
	span := decimal.NewFromInt(last - first)
	ratio := decimal.NewFromInt(int64(positionWithinTier - 1)).
		Div(decimal.NewFromInt(int64(size - 1)))

	return decimal.NewFromInt(first).
		Add(span.Mul(ratio)).
		Round(0).
		IntPart()
}

// Summary возвращает тройку цен тира для отображения.
func (c Calculator) Summary(tier value.Tier, originalPrice int64) TierPricing {
	nominal := c.NominalTierPrice(tier, originalPrice)

	if tier.Size() == 1 {
		return TierPricing{
			Tier:            tier,
			FirstBuyerPrice: nominal,
			LastBuyerPrice:  nominal,
			AvgPrice:        nominal,
		}
	}

	return TierPricing{
		Tier:            tier,
		FirstBuyerPrice: firstBuyerPrice(nominal),
		LastBuyerPrice:  lastBuyerPrice(nominal),
		AvgPrice:        nominal,
	}
}

// DealSummary — сводка по всем тирам сделки.
func (c Calculator) DealSummary(deal entity.Deal) []TierPricing {
	tiers := deal.Tiers.Tiers()

	summaries := make([]TierPricing, len(tiers))
	for i, tier := range tiers {
		summaries[i] = c.Summary(tier, deal.OriginalPrice)
	}

	return summaries
}

// CommissionFor делит оплату на долю платформы и остаток поставщику.
// Процент берётся по цепочке тир → сделка → платформенный дефолт.
func (c Calculator) CommissionFor(tier value.Tier, dealCommissionPercent *float64, pricePaid int64) Commission {
	percent := c.defaultCommissionPercent

	switch {
	case tier.CommissionPercent != nil:
		percent = *tier.CommissionPercent
	case dealCommissionPercent != nil:
		percent = *dealCommissionPercent
	}

	cut := decimal.NewFromInt(pricePaid).
		Mul(decimal.NewFromFloat(percent)).
		Div(hundred).
		Round(0).
		IntPart()

	return Commission{
		PlatformCut:   cut,
		NetToSupplier: pricePaid - cut,
	}
}

func firstBuyerPrice(nominal int64) int64 {
	n := decimal.NewFromInt(nominal)

	return n.Sub(n.Mul(edgeAdjust)).Round(0).IntPart()
}

func lastBuyerPrice(nominal int64) int64 {
	n := decimal.NewFromInt(nominal)

	return n.Add(n.Mul(edgeAdjust)).Round(0).IntPart()
}
