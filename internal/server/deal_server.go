package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"git.appkode.ru/pub/go/failure"

	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/admission"
	"groupbuy_market/internal/domain/service/funnel"
	"groupbuy_market/internal/domain/service/pricing"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/errcodes"
	"groupbuy_market/pkg/httpx/reply"
	"groupbuy_market/pkg/httpx/req"
	"groupbuy_market/pkg/rest"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type dealService interface {
	Create(ctx context.Context, deal *entity.Deal) error
	GetByID(ctx context.Context, id int64) (*entity.Deal, error)
	List(ctx context.Context, limit, offset int) ([]entity.Deal, error)
	AdvanceStage(ctx context.Context, id int64, next value.FunnelStage) (*entity.Deal, error)
	Close(ctx context.Context, id int64) error
}

type admissionService interface {
	Admit(ctx context.Context, req admission.JoinRequest) (admission.Result, error)
	Cancel(ctx context.Context, registrationID int64) (*entity.Registration, error)
	PricingSummary(ctx context.Context, dealID int64) ([]pricing.TierPricing, error)
	ListRegistrations(ctx context.Context, dealID int64, limit, offset int) ([]entity.Registration, error)
}

type DealServer struct {
	dealService      dealService
	admissionService admissionService
	funnel           funnel.Engine
	now              func() time.Time
}

func NewDealServer(
	dealSvc dealService,
	admissionSvc admissionService,
	funnelEngine funnel.Engine,
) DealServer {
	return DealServer{
		dealService:      dealSvc,
		admissionService: admissionSvc,
		funnel:           funnelEngine,
		now:              time.Now,
	}
}

func (s DealServer) postV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.CreateDealRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	deal, err := newDomainDeal(request)
	if err != nil {
		return err
	}

	if err := s.dealService.Create(ctx, deal); err != nil {
		return fmt.Errorf("dealService.Create: %w", err)
	}

	reply.JSON(ctx, w, http.StatusCreated, s.newRESTDeal(*deal))

	return nil
}

func (s DealServer) getV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := dealID(r)
	if err != nil {
		return err
	}

	deal, err := s.dealService.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("dealService.GetByID: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, s.newRESTDeal(*deal))

	return nil
}

func (s DealServer) getV1Deals(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	limit, offset, err := paging(r)
	if err != nil {
		return err
	}

	deals, err := s.dealService.List(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("dealService.List: %w", err)
	}

	response := make([]rest.Deal, len(deals))
	for i, deal := range deals {
		response[i] = s.newRESTDeal(deal)
	}

	reply.JSON(ctx, w, http.StatusOK, response)

	return nil
}

func (s DealServer) getV1DealPricing(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := dealID(r)
	if err != nil {
		return err
	}

	summary, err := s.admissionService.PricingSummary(ctx, id)
	if err != nil {
		return fmt.Errorf("admissionService.PricingSummary: %w", err)
	}

	response := make([]rest.TierPricing, len(summary))
	for i, tp := range summary {
		response[i] = newRESTTierPricing(tp)
	}

	reply.JSON(ctx, w, http.StatusOK, response)

	return nil
}

// postV1DealJoin — операция допуска. WAITING_LIST и REJECTED — штатные
// бизнес-исходы: клиент ветвится по полю status, HTTP-статус остаётся 200.
func (s DealServer) postV1DealJoin(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := dealID(r)
	if err != nil {
		return err
	}

	var request rest.JoinDealRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	result, err := s.admissionService.Admit(ctx, admission.JoinRequest{
		DealID:   id,
		UserID:   request.UserID,
		Quantity: request.Quantity,
	})
	if err != nil {
		return fmt.Errorf("admissionService.Admit: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTAdmissionResult(result))

	return nil
}

func (s DealServer) postV1DealStage(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := dealID(r)
	if err != nil {
		return err
	}

	var request rest.AdvanceStageRequest

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	stage, err := value.ParseFunnelStage(request.Stage)
	if err != nil {
		return failure.NewInvalidArgumentErrorFromError(
			fmt.Errorf("value.ParseFunnelStage: %w", err),
			failure.WithCode(errcodes.InvalidStage),
		)
	}

	deal, err := s.dealService.AdvanceStage(ctx, id, stage)
	if err != nil {
		return fmt.Errorf("dealService.AdvanceStage: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, s.newRESTDeal(*deal))

	return nil
}

func (s DealServer) postV1DealClose(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := dealID(r)
	if err != nil {
		return err
	}

	if err := s.dealService.Close(ctx, id); err != nil {
		return fmt.Errorf("dealService.Close: %w", err)
	}

	reply.OK(w)

	return nil
}

func (s DealServer) getV1DealRegistrations(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := dealID(r)
	if err != nil {
		return err
	}

	limit, offset, err := paging(r)
	if err != nil {
		return err
	}

	deal, err := s.dealService.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("dealService.GetByID: %w", err)
	}

	regs, err := s.admissionService.ListRegistrations(ctx, id, limit, offset)
	if err != nil {
		return fmt.Errorf("admissionService.ListRegistrations: %w", err)
	}

	response := make([]rest.Registration, len(regs))
	for i, reg := range regs {
		response[i] = newRESTRegistration(reg, deal.TotalCapacity)
	}

	reply.JSON(ctx, w, http.StatusOK, response)

	return nil
}

func (s DealServer) postV1RegistrationCancel(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := pathID(r, errcodes.InvalidRegistrationID)
	if err != nil {
		return err
	}

	reg, err := s.admissionService.Cancel(ctx, id)
	if err != nil {
		return fmt.Errorf("admissionService.Cancel: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTRegistration(*reg, 0))

	return nil
}

func dealID(r *http.Request) (int64, error) {
	return pathID(r, errcodes.InvalidDealID)
}

func pathID(r *http.Request, code failure.ErrorCode) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, failure.NewInvalidArgumentError(
			"invalid id in path",
			failure.WithCode(code),
		)
	}

	return id, nil
}

func paging(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxPageLimit {
			return 0, 0, failure.NewInvalidArgumentError(
				"invalid limit",
				failure.WithCode(errcodes.InvalidPaging),
			)
		}
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, failure.NewInvalidArgumentError(
				"invalid offset",
				failure.WithCode(errcodes.InvalidPaging),
			)
		}
	}

	return limit, offset, nil
}
