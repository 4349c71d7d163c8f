package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"groupbuy_market/internal/domain/service/admission"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const TypeWaitlistPromote = "waitlist:promote"

type waitlistPromotePayload struct {
	DealID int64 `json:"deal_id"`
}

// WaitlistEnqueuer ставит задачу продвижения листа ожидания после отмены
// подтверждённой регистрации.
type WaitlistEnqueuer struct {
	client *asynq.Client
}

func NewWaitlistEnqueuer(client *asynq.Client) WaitlistEnqueuer {
	return WaitlistEnqueuer{client: client}
}

func (e WaitlistEnqueuer) EnqueueWaitlistPromotion(ctx context.Context, dealID int64) error {
	payload, err := json.Marshal(waitlistPromotePayload{DealID: dealID})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	task := asynq.NewTask(TypeWaitlistPromote, payload, asynq.MaxRetry(3))

	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("client.EnqueueContext: %w", err)
	}

	return nil
}

// HandleWaitlistPromote — обработчик задачи на стороне asynq-сервера.
func HandleWaitlistPromote(ctrl *admission.Controller) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload waitlistPromotePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("json.Unmarshal: %w", err)
		}

		promoted, err := ctrl.PromoteFromWaitlist(ctx, payload.DealID)
		if err != nil {
			return fmt.Errorf("ctrl.PromoteFromWaitlist: %w", err)
		}

		if promoted != nil {
			logger(ctx).Info("waitlist registration promoted",
				"deal_id", payload.DealID,
				"registration_id", promoted.ID,
				"position", promoted.Position,
				"price", promoted.PricePaid,
			)
		}

		return nil
	}
}
