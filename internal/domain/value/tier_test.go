package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"groupbuy_market/internal/domain/value"
)

func TestNewTierTable(t *testing.T) {
	rq := require.New(t)

	testCases := []struct {
		name    string
		tiers   []value.Tier
		wantErr bool
	}{
		{
			name: "Valid three tiers",
			tiers: []value.Tier{
				{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 5},
				{MinParticipants: 21, MaxParticipants: 60, DiscountPercent: 12},
				{MinParticipants: 61, MaxParticipants: 100, DiscountPercent: 18},
			},
		},
		{
			name: "Valid unsorted input",
			tiers: []value.Tier{
				{MinParticipants: 21, MaxParticipants: 60, DiscountPercent: 12},
				{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 5},
			},
		},
		{
			name:    "Empty table",
			tiers:   nil,
			wantErr: true,
		},
		{
			name: "Max below min",
			tiers: []value.Tier{
				{MinParticipants: 10, MaxParticipants: 5, DiscountPercent: 5},
			},
			wantErr: true,
		},
		{
			name: "Overlapping tiers",
			tiers: []value.Tier{
				{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 5},
				{MinParticipants: 15, MaxParticipants: 40, DiscountPercent: 10},
			},
			wantErr: true,
		},
		{
			name: "Gap between tiers",
			tiers: []value.Tier{
				{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 5},
				{MinParticipants: 25, MaxParticipants: 40, DiscountPercent: 10},
			},
			wantErr: true,
		},
		{
			name: "Discount above 100",
			tiers: []value.Tier{
				{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 101},
			},
			wantErr: true,
		},
		{
			name: "Negative discount",
			tiers: []value.Tier{
				{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: -1},
			},
			wantErr: true,
		},
		{
			name: "Zero min participants",
			tiers: []value.Tier{
				{MinParticipants: 0, MaxParticipants: 20, DiscountPercent: 5},
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			table, err := value.NewTierTable(tc.tiers)

			if tc.wantErr {
				rq.Error(err)
				return
			}

			rq.NoError(err)
			rq.Equal(len(tc.tiers), table.Len())
		})
	}
}

func TestTierTableActiveTier(t *testing.T) {
	rq := require.New(t)

	table := value.MustTierTable([]value.Tier{
		{MinParticipants: 1, MaxParticipants: 20, DiscountPercent: 5},
		{MinParticipants: 21, MaxParticipants: 60, DiscountPercent: 12},
		{MinParticipants: 61, MaxParticipants: 100, DiscountPercent: 18},
	})

	testCases := []struct {
		name         string
		count        int
		wantDiscount float64
	}{
		{name: "First tier lower bound", count: 1, wantDiscount: 5},
		{name: "First tier upper bound", count: 20, wantDiscount: 5},
		{name: "Middle tier", count: 40, wantDiscount: 12},
		{name: "Last tier", count: 75, wantDiscount: 18},
		{name: "Beyond all tiers keeps the floor tier", count: 500, wantDiscount: 18},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			tier := table.ActiveTier(tc.count)

			rq.InEpsilon(tc.wantDiscount, tier.DiscountPercent, 1e-9)
			if tc.count <= 100 {
				rq.True(tier.Contains(tc.count))
			}
		})
	}
}

// Таблица, первый тир которой начинается выше единицы: количество ниже его
// нижней границы даёт первый тир с минимальной скидкой, а не финальный пол.
func TestTierTableActiveTierBelowFirstTier(t *testing.T) {
	rq := require.New(t)

	table := value.MustTierTable([]value.Tier{
		{MinParticipants: 5, MaxParticipants: 20, DiscountPercent: 5},
		{MinParticipants: 21, MaxParticipants: 100, DiscountPercent: 18},
	})

	tier := table.ActiveTier(1)

	rq.InEpsilon(5.0, tier.DiscountPercent, 1e-9)
	rq.Equal(5, tier.MinParticipants)
}

func TestTierSize(t *testing.T) {
	rq := require.New(t)

	rq.Equal(40, value.Tier{MinParticipants: 61, MaxParticipants: 100}.Size())
	rq.Equal(1, value.Tier{MinParticipants: 5, MaxParticipants: 5}.Size())
}

func TestTierTableTiersIsACopy(t *testing.T) {
	rq := require.New(t)

	table := value.MustTierTable([]value.Tier{
		{MinParticipants: 1, MaxParticipants: 10, DiscountPercent: 5},
	})

	tiers := table.Tiers()
	tiers[0].DiscountPercent = 99

	rq.InEpsilon(5.0, table.Last().DiscountPercent, 1e-9)
}
