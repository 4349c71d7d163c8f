package server

import (
	"net/http"

	"git.appkode.ru/pub/go/failure"
	"github.com/go-chi/chi/v5"

	"groupbuy_market/internal/domain"
	"groupbuy_market/pkg/errcodes"
	"groupbuy_market/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) { //nolint:funlen
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/deals", func(r chi.Router) {
				r.Post("/", handler(s.postV1Deal))
				r.Get("/", handler(s.getV1Deals))
				r.Get("/{id}", handler(s.getV1Deal))
				r.Get("/{id}/pricing", handler(s.getV1DealPricing))
				r.Post("/{id}/join", handler(s.postV1DealJoin))
				r.Post("/{id}/stage", handler(s.postV1DealStage))
				r.Post("/{id}/close", handler(s.postV1DealClose))
				r.Get("/{id}/registrations", handler(s.getV1DealRegistrations))
			})

			r.Route("/registrations", func(r chi.Router) {
				r.Post("/{id}/cancel", handler(s.postV1RegistrationCancel))
			})
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, classify(err))
		}
	}
}

// classify переводит доменные ошибки в классы failure, по которым
// reply.Error выбирает HTTP-статус.
func classify(err error) error {
	code, ok := domain.GetCode(err)
	if !ok {
		return err
	}

	switch code {
	case errcodes.DealNotFound, errcodes.RegistrationNotFound:
		return failure.NewNotFoundErrorFromError(err, failure.WithCode(code))
	case errcodes.ConcurrencyConflict, errcodes.DealAlreadyClosed,
		errcodes.StageTransitionDenied, errcodes.RegistrationAlreadyCancelled:
		return failure.NewConflictErrorFromError(err, failure.WithCode(code))
	case errcodes.InvalidStage, errcodes.InvalidTierTable,
		errcodes.InvalidOriginalPrice, errcodes.InvalidCapacity:
		return failure.NewInvalidArgumentErrorFromError(err, failure.WithCode(code))
	}

	return err
}
