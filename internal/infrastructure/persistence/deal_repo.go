package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"groupbuy_market/internal/domain"
	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/admission"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/errcodes"
)

// Коды Postgres, трактуемые как гонка допуска: serialization_failure,
// deadlock_detected, unique_violation (две транзакции за одну позицию).
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

const dealColumns = `
	id, kind, title, supplier_id, original_price, tiers,
	target_participants, total_capacity, waiting_list_capacity,
	participant_seq, occupied_count, commission_percent,
	current_stage, stage_deadlines, end_time, closed_at,
	created_at, updated_at`

type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository создаёт новый экземпляр репозитория.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *DealRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if isAdmissionConflict(err) {
			return domain.WrapError(err, errcodes.ConcurrencyConflict, "commit conflicted")
		}
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// Create сохраняет новую сделку и проставляет ID.
func (r *DealRepository) Create(ctx context.Context, deal *entity.Deal) error {
	tiersBytes, err := json.Marshal(deal.Tiers.Tiers())
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal tiers")
	}

	deadlinesBytes, err := json.Marshal(deal.StageDeadlines)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal stage deadlines")
	}

	query := `
		INSERT INTO deals (
			kind, title, supplier_id, original_price, tiers,
			target_participants, total_capacity, waiting_list_capacity,
			commission_percent, current_stage, stage_deadlines, end_time,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	if err := r.db.GetContext(ctx, &deal.ID, query,
		string(deal.Kind),
		deal.Title,
		deal.SupplierID,
		deal.OriginalPrice,
		tiersBytes,
		deal.TargetParticipants,
		deal.TotalCapacity,
		deal.WaitingListCapacity,
		deal.CommissionPercent,
		deal.CurrentStage.String(),
		deadlinesBytes,
		deal.EndTime,
		deal.CreatedAt,
		deal.UpdatedAt,
	); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to insert deal")
	}

	return nil
}

// GetByID возвращает сделку по идентификатору.
func (r *DealRepository) GetByID(ctx context.Context, id int64) (*entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	var schema dealSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.DealNotFound, "deal not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get deal")
	}

	return schema.toDomain()
}

// List возвращает страницу сделок по убыванию даты создания.
func (r *DealRepository) List(ctx context.Context, limit, offset int) ([]entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	var schemas []dealSchema
	if err := r.db.SelectContext(ctx, &schemas, query, limit, offset); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list deals")
	}

	return r.toDeals(schemas)
}

// ListActive возвращает незакрытые сделки (для монитора тиров).
func (r *DealRepository) ListActive(ctx context.Context) ([]entity.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE closed_at IS NULL AND current_stage <> $1
		ORDER BY id`

	var schemas []dealSchema
	if err := r.db.SelectContext(ctx, &schemas, query, value.StageRegistrationClosed.String()); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list active deals")
	}

	return r.toDeals(schemas)
}

// Admit выполняет решение о допуске под блокировкой строки сделки.
// Последовательность: SELECT ... FOR UPDATE (линеаризует конкурентные
// вступления по одной сделке), decide по зафиксированному рангу, затем
// инкремент счётчика позиций и вставка регистрации в той же транзакции.
// Отказ не пишет ничего — номер позиции не сжигается.
func (r *DealRepository) Admit(ctx context.Context, dealID int64, decide admission.DecideFunc) (admission.Result, error) {
	var result admission.Result

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1 FOR UPDATE`

		var schema dealSchema
		if err := tx.GetContext(ctx, &schema, query, dealID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewError(errcodes.DealNotFound, "deal not found")
			}
			return domain.WrapError(err, errcodes.InternalServerError, "failed to lock deal")
		}

		deal, err := schema.toDomain()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to convert deal")
		}

		result, err = decide(*deal)
		if err != nil {
			return err
		}

		reg := result.Registration
		if reg == nil {
			return nil // отказ, транзакция ничего не меняет
		}

		occupiedDelta := 0
		if reg.Status == value.RegistrationConfirmed {
			occupiedDelta = 1
		}

		updateQuery := `
			UPDATE deals
			SET participant_seq = participant_seq + 1,
			    occupied_count = occupied_count + $1,
			    updated_at = $2
			WHERE id = $3`

		if _, err := tx.ExecContext(ctx, updateQuery, occupiedDelta, time.Now(), dealID); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to advance participant seq")
		}

		insertQuery := `
			INSERT INTO registrations (deal_id, user_id, position, price_paid, quantity, status, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`

		if err := tx.GetContext(ctx, &reg.ID, insertQuery,
			reg.DealID, reg.UserID, reg.Position, reg.PricePaid, reg.Quantity, string(reg.Status), reg.JoinedAt,
		); err != nil {
			if isAdmissionConflict(err) {
				return domain.WrapError(err, errcodes.ConcurrencyConflict, "admission raced for the slot")
			}
			return domain.WrapError(err, errcodes.InternalServerError, "failed to insert registration")
		}

		return nil
	})
	if err != nil {
		return admission.Result{}, err
	}

	return result, nil
}

// UpdateStage переводит сделку на новую стадию воронки.
func (r *DealRepository) UpdateStage(ctx context.Context, id int64, stage value.FunnelStage) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `UPDATE deals SET current_stage = $1, updated_at = $2 WHERE id = $3`

		return r.execUpdateTx(ctx, tx, query, stage.String(), time.Now(), id)
	})
}

// Close фиксирует момент закрытия сделки.
func (r *DealRepository) Close(ctx context.Context, id int64, at time.Time) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE deals
			SET closed_at = $1, current_stage = $2, updated_at = $1
			WHERE id = $3 AND closed_at IS NULL`

		return r.execUpdateTx(ctx, tx, query, at, value.StageRegistrationClosed.String(), id)
	})
}

func (r *DealRepository) toDeals(schemas []dealSchema) ([]entity.Deal, error) {
	deals := make([]entity.Deal, 0, len(schemas))
	for i := range schemas {
		deal, err := schemas[i].toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert deal")
		}
		deals = append(deals, *deal)
	}

	return deals, nil
}

// execUpdateTx — внутренний метод обновления в рамках транзакции.
func (r *DealRepository) execUpdateTx(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to execute update")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
	}

	if rows == 0 {
		return domain.NewError(errcodes.DealNotFound, "deal not found")
	}

	return nil
}

func isAdmissionConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
		return true
	}

	return false
}
