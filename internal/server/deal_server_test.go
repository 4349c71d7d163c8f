package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"groupbuy_market/internal/domain"
	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/admission"
	"groupbuy_market/internal/domain/service/funnel"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/internal/server"
	"groupbuy_market/pkg/errcodes"
	"groupbuy_market/pkg/rest"
	"groupbuy_market/pkg/tests"
)

type fakeDealService struct {
	deals  map[int64]*entity.Deal
	nextID int64
}

func newFakeDealService() *fakeDealService {
	return &fakeDealService{deals: map[int64]*entity.Deal{}}
}

func (f *fakeDealService) Create(_ context.Context, deal *entity.Deal) error {
	f.nextID++
	deal.ID = f.nextID
	deal.CurrentStage = value.StagePreRegistration
	deal.CreatedAt = time.Now()
	f.deals[deal.ID] = deal

	return nil
}

func (f *fakeDealService) GetByID(_ context.Context, id int64) (*entity.Deal, error) {
	deal, ok := f.deals[id]
	if !ok {
		return nil, domain.NewError(errcodes.DealNotFound, "deal not found")
	}

	return deal, nil
}

func (f *fakeDealService) List(_ context.Context, _, _ int) ([]entity.Deal, error) {
	result := make([]entity.Deal, 0, len(f.deals))
	for _, deal := range f.deals {
		result = append(result, *deal)
	}

	return result, nil
}

func (f *fakeDealService) AdvanceStage(ctx context.Context, id int64, next value.FunnelStage) (*entity.Deal, error) {
	deal, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !deal.CurrentStage.Before(next) {
		return nil, domain.NewError(errcodes.StageTransitionDenied, "stages only move forward")
	}

	deal.CurrentStage = next

	return deal, nil
}

func (f *fakeDealService) Close(ctx context.Context, id int64) error {
	deal, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	deal.ClosedAt = &now

	return nil
}

type fakeAdmissionService struct {
	result admission.Result
}

func (f *fakeAdmissionService) Admit(_ context.Context, _ admission.JoinRequest) (admission.Result, error) {
	return f.result, nil
}

func (f *fakeAdmissionService) Cancel(_ context.Context, registrationID int64) (*entity.Registration, error) {
	if registrationID != f.result.Registration.ID {
		return nil, domain.NewError(errcodes.RegistrationNotFound, "registration not found")
	}

	reg := *f.result.Registration
	now := time.Now()
	reg.Status = value.RegistrationCancelled
	reg.CancelledAt = &now

	return &reg, nil
}

func (f *fakeAdmissionService) PricingSummary(_ context.Context, _ int64) ([]pricing.TierPricing, error) {
	return []pricing.TierPricing{
		{
			Tier:            value.Tier{MinParticipants: 1, MaxParticipants: 50, DiscountPercent: 18},
			FirstBuyerPrice: 3598,
			LastBuyerPrice:  3782,
			AvgPrice:        3690,
		},
	}, nil
}

func (f *fakeAdmissionService) ListRegistrations(_ context.Context, _ int64, _, _ int) ([]entity.Registration, error) {
	return []entity.Registration{*f.result.Registration}, nil
}

func testClient(t *testing.T, dealSvc *fakeDealService, admissionSvc *fakeAdmissionService) tests.APIClient {
	t.Helper()

	srv := server.NewServer(server.NewDealServer(dealSvc, admissionSvc, funnel.NewEngine()))

	router := chi.NewRouter()
	srv.RegisterRoutes(router)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return tests.NewAPIClient(ts.URL, ts.Client())
}

func defaultAdmissionResult() admission.Result {
	return admission.Result{
		Status:   value.AdmissionConfirmed,
		Position: 1,
		Price:    3598,
		Tier:     &value.Tier{MinParticipants: 1, MaxParticipants: 50, DiscountPercent: 18},
		Commission: pricing.Commission{
			PlatformCut:   360,
			NetToSupplier: 3238,
		},
		Registration: &entity.Registration{
			ID:        7,
			DealID:    1,
			UserID:    42,
			Position:  1,
			PricePaid: 3598,
			Quantity:  1,
			Status:    value.RegistrationConfirmed,
			JoinedAt:  time.Now(),
		},
	}
}

func TestCreateAndGetDeal(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	client := testClient(t, newFakeDealService(), &fakeAdmissionService{result: defaultAdmissionResult()})

	request := rest.CreateDealRequest{
		Kind:          "real_estate",
		Title:         "Riverside apartments",
		SupplierID:    3,
		OriginalPrice: 4500,
		Tiers: []rest.Tier{
			{MinParticipants: 1, MaxParticipants: 50, DiscountPercent: 18},
		},
		TotalCapacity:       50,
		WaitingListCapacity: 10,
	}

	var created rest.Deal

	resp, err := client.Post(ctx, "/v1/deals", nil, request, &created, nil)
	rq.NoError(err)
	rq.Equal(http.StatusCreated, resp.StatusCode)
	rq.Equal("PRE_REGISTRATION", created.CurrentStage)
	rq.True(created.RegistrationOpen)
	rq.Len(created.Tiers, 1)

	var fetched rest.Deal

	resp, err = client.Get(ctx, "/v1/deals/1", nil, &fetched, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal(created.ID, fetched.ID)
	rq.Equal("Riverside apartments", fetched.Title)
}

func TestCreateDealValidation(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	client := testClient(t, newFakeDealService(), &fakeAdmissionService{result: defaultAdmissionResult()})

	var errResp rest.Error

	// Без тиров и с неизвестным видом сделки.
	resp, err := client.PostJSON(ctx, "/v1/deals", nil,
		`{"kind":"wholesale","title":"bad","supplierId":1,"originalPrice":100,"totalCapacity":10}`,
		nil, &errResp,
	)
	rq.NoError(err)
	rq.Equal(http.StatusBadRequest, resp.StatusCode)
	rq.Equal(rest.ErrorCode(errcodes.ValidationError.String()), errResp.Code)
}

func TestGetDealNotFound(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	client := testClient(t, newFakeDealService(), &fakeAdmissionService{result: defaultAdmissionResult()})

	var errResp rest.Error

	resp, err := client.Get(ctx, "/v1/deals/99", nil, nil, &errResp)
	rq.NoError(err)
	rq.Equal(http.StatusNotFound, resp.StatusCode)
	rq.Equal(rest.ErrorCode(errcodes.DealNotFound.String()), errResp.Code)
}

func TestJoinDealReturnsBusinessOutcome(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	dealSvc := newFakeDealService()
	admissionSvc := &fakeAdmissionService{result: defaultAdmissionResult()}
	client := testClient(t, dealSvc, admissionSvc)

	var result rest.AdmissionResult

	resp, err := client.Post(ctx, "/v1/deals/1/join", nil,
		rest.JoinDealRequest{UserID: 42, Quantity: 1}, &result, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal("CONFIRMED", result.Status)
	rq.Equal(1, result.Position)
	rq.Equal(int64(3598), result.Price)
	rq.Equal(int64(7), result.RegistrationID)

	// Отказ — тоже 200: клиент ветвится по полю status.
	admissionSvc.result = admission.Result{
		Status: value.AdmissionRejected,
		Reason: value.RejectCapacityExceeded,
	}

	resp, err = client.Post(ctx, "/v1/deals/1/join", nil,
		rest.JoinDealRequest{UserID: 43, Quantity: 1}, &result, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal("REJECTED", result.Status)
	rq.Equal("CAPACITY_EXCEEDED", result.Reason)
}

func TestAdvanceStage(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	dealSvc := newFakeDealService()
	client := testClient(t, dealSvc, &fakeAdmissionService{result: defaultAdmissionResult()})

	deal := &entity.Deal{
		Kind:          value.DealKindRealEstate,
		Title:         "tower block",
		OriginalPrice: 100000,
		Tiers: value.MustTierTable([]value.Tier{
			{MinParticipants: 1, MaxParticipants: 10, DiscountPercent: 5},
		}),
		TotalCapacity: 10,
	}
	rq.NoError(dealSvc.Create(ctx, deal))

	var updated rest.Deal

	resp, err := client.Post(ctx, "/v1/deals/1/stage", nil,
		rest.AdvanceStageRequest{Stage: "WEBINAR_SCHEDULED"}, &updated, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal("WEBINAR_SCHEDULED", updated.CurrentStage)

	// Назад нельзя.
	var errResp rest.Error

	resp, err = client.Post(ctx, "/v1/deals/1/stage", nil,
		rest.AdvanceStageRequest{Stage: "PRE_REGISTRATION"}, nil, &errResp)
	rq.NoError(err)
	rq.Equal(http.StatusConflict, resp.StatusCode)
	rq.Equal(rest.ErrorCode(errcodes.StageTransitionDenied.String()), errResp.Code)
}

func TestCancelRegistration(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	client := testClient(t, newFakeDealService(), &fakeAdmissionService{result: defaultAdmissionResult()})

	var reg rest.Registration

	resp, err := client.Post(ctx, "/v1/registrations/7/cancel", nil, struct{}{}, &reg, nil)
	rq.NoError(err)
	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal("CANCELLED", reg.Status)
	rq.NotNil(reg.CancelledAt)

	var errResp rest.Error

	resp, err = client.Post(ctx, "/v1/registrations/999/cancel", nil, struct{}{}, nil, &errResp)
	rq.NoError(err)
	rq.Equal(http.StatusNotFound, resp.StatusCode)
}
