package funnel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/funnel"
	"groupbuy_market/internal/domain/value"
)

func TestIsRegistrationOpenRealEstate(t *testing.T) {
	rq := require.New(t)
	engine := funnel.NewEngine()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	testCases := []struct {
		name      string
		stage     value.FunnelStage
		deadlines value.StageDeadlines
		closedAt  *time.Time
		want      bool
	}{
		{
			name:  "Pre-registration without deadline",
			stage: value.StagePreRegistration,
			want:  true,
		},
		{
			name:      "Pre-registration before deadline",
			stage:     value.StagePreRegistration,
			deadlines: value.StageDeadlines{value.StagePreRegistration: future},
			want:      true,
		},
		{
			name:      "Pre-registration past deadline is closed without explicit transition",
			stage:     value.StagePreRegistration,
			deadlines: value.StageDeadlines{value.StagePreRegistration: past},
			want:      false,
		},
		{
			name:  "Webinar stage never accepts registrations",
			stage: value.StageWebinarScheduled,
			want:  false,
		},
		{
			name:      "FOMO window before deadline",
			stage:     value.StageFOMOConfirmationWindow,
			deadlines: value.StageDeadlines{value.StageFOMOConfirmationWindow: future},
			want:      true,
		},
		{
			name:      "FOMO window past deadline",
			stage:     value.StageFOMOConfirmationWindow,
			deadlines: value.StageDeadlines{value.StageFOMOConfirmationWindow: past},
			want:      false,
		},
		{
			name:  "Terminal stage",
			stage: value.StageRegistrationClosed,
			want:  false,
		},
		{
			name:     "Manually closed deal",
			stage:    value.StagePreRegistration,
			closedAt: &past,
			want:     false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			deal := entity.Deal{
				Kind:           value.DealKindRealEstate,
				CurrentStage:   tc.stage,
				StageDeadlines: tc.deadlines,
				ClosedAt:       tc.closedAt,
			}

			rq.Equal(tc.want, engine.IsRegistrationOpen(deal, now))
		})
	}
}

func TestIsRegistrationOpenRetail(t *testing.T) {
	rq := require.New(t)
	engine := funnel.NewEngine()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	open := entity.Deal{Kind: value.DealKindRetail, CurrentStage: value.StagePreRegistration, EndTime: &future}
	rq.True(engine.IsRegistrationOpen(open, now))

	expired := entity.Deal{Kind: value.DealKindRetail, CurrentStage: value.StagePreRegistration, EndTime: &past}
	rq.False(engine.IsRegistrationOpen(expired, now))

	endless := entity.Deal{Kind: value.DealKindRetail, CurrentStage: value.StagePreRegistration}
	rq.True(engine.IsRegistrationOpen(endless, now))
}

func TestEffectiveStage(t *testing.T) {
	rq := require.New(t)
	engine := funnel.NewEngine()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	deal := entity.Deal{
		Kind:           value.DealKindRealEstate,
		CurrentStage:   value.StageFOMOConfirmationWindow,
		StageDeadlines: value.StageDeadlines{value.StageFOMOConfirmationWindow: past},
	}

	rq.Equal(value.StageRegistrationClosed, engine.EffectiveStage(deal, now))

	deal.StageDeadlines = nil
	rq.Equal(value.StageFOMOConfirmationWindow, engine.EffectiveStage(deal, now))
}

func TestAdvance(t *testing.T) {
	rq := require.New(t)
	engine := funnel.NewEngine()

	testCases := []struct {
		name    string
		from    value.FunnelStage
		to      value.FunnelStage
		wantErr bool
	}{
		{name: "Forward one step", from: value.StagePreRegistration, to: value.StageWebinarScheduled},
		{name: "Skip a stage forward", from: value.StagePreRegistration, to: value.StageRegistrationClosed},
		{name: "Same stage", from: value.StageWebinarScheduled, to: value.StageWebinarScheduled, wantErr: true},
		{name: "Backward", from: value.StageFOMOConfirmationWindow, to: value.StagePreRegistration, wantErr: true},
		{name: "Out of terminal", from: value.StageRegistrationClosed, to: value.StagePreRegistration, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(*testing.T) {
			stage, err := engine.Advance(tc.from, tc.to)

			if tc.wantErr {
				rq.Error(err)
				return
			}

			rq.NoError(err)
			rq.Equal(tc.to, stage)
		})
	}
}
