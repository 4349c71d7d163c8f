package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"groupbuy_market/internal/domain"
	"groupbuy_market/internal/domain/entity"
	"groupbuy_market/internal/domain/service/admission"
	"groupbuy_market/internal/domain/value"
	"groupbuy_market/pkg/errcodes"
)

const registrationColumns = `
	id, deal_id, user_id, position, price_paid, quantity, status,
	joined_at, cancelled_at, promoted_at`

type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository создаёт новый экземпляр репозитория.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
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
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// GetByID возвращает регистрацию по идентификатору.
func (r *RegistrationRepository) GetByID(ctx context.Context, id int64) (*entity.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	var schema registrationSchema
	if err := r.db.GetContext(ctx, &schema, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.RegistrationNotFound, "registration not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get registration")
	}

	return schema.toDomain()
}

// ListByDeal возвращает страницу регистраций сделки по росту позиции.
func (r *RegistrationRepository) ListByDeal(ctx context.Context, dealID int64, limit, offset int) ([]entity.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE deal_id = $1
		ORDER BY position
		LIMIT $2 OFFSET $3`

	var schemas []registrationSchema
	if err := r.db.SelectContext(ctx, &schemas, query, dealID, limit, offset); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list registrations")
	}

	regs := make([]entity.Registration, 0, len(schemas))
	for i := range schemas {
		reg, err := schemas[i].toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to convert registration")
		}
		regs = append(regs, *reg)
	}

	return regs, nil
}

// Cancel помечает регистрацию отменённой. Позиция остаётся за записью;
// у подтверждённой регистрации уменьшается эффективная занятость сделки.
func (r *RegistrationRepository) Cancel(ctx context.Context, id int64, at time.Time) (*entity.Registration, error) {
	var cancelled *entity.Registration

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 FOR UPDATE`

		var schema registrationSchema
		if err := tx.GetContext(ctx, &schema, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewError(errcodes.RegistrationNotFound, "registration not found")
			}
			return domain.WrapError(err, errcodes.InternalServerError, "failed to lock registration")
		}

		if schema.Status == string(value.RegistrationCancelled) {
			return domain.NewError(errcodes.RegistrationAlreadyCancelled, "registration already cancelled")
		}

		wasConfirmed := schema.Status == string(value.RegistrationConfirmed)

		updateQuery := `
			UPDATE registrations
			SET status = $1, cancelled_at = $2
			WHERE id = $3`

		if _, err := tx.ExecContext(ctx, updateQuery, string(value.RegistrationCancelled), at, id); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to cancel registration")
		}

		if wasConfirmed {
			occQuery := `
				UPDATE deals
				SET occupied_count = occupied_count - 1, updated_at = $1
				WHERE id = $2`

			if _, err := tx.ExecContext(ctx, occQuery, at, schema.DealID); err != nil {
				return domain.WrapError(err, errcodes.InternalServerError, "failed to release occupancy")
			}
		}

		schema.Status = string(value.RegistrationCancelled)
		schema.CancelledAt = sql.NullTime{Time: at, Valid: true}

		reg, err := schema.toDomain()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to convert registration")
		}

		cancelled = reg

		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// PromoteEarliestWaiting переводит самую раннюю запись листа ожидания в
// CONFIRMED с ценой price. Свободное место проверяется под блокировкой
// строки сделки в той же транзакции: конкурентные продвижения (asynq
// доставляет как минимум один раз) не могут занять один слот дважды.
// Возвращает admission.ErrNoFreeSlot при занятой вместимости и
// admission.ErrNoWaiting при пустом листе.
func (r *RegistrationRepository) PromoteEarliestWaiting(ctx context.Context, dealID int64, price int64, at time.Time) (*entity.Registration, error) {
	var promoted *entity.Registration

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		dealQuery := `
			SELECT total_capacity, occupied_count
			FROM deals
			WHERE id = $1
			FOR UPDATE`

		var capacity struct {
			TotalCapacity int `db:"total_capacity"`
			OccupiedCount int `db:"occupied_count"`
		}
		if err := tx.GetContext(ctx, &capacity, dealQuery, dealID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NewError(errcodes.DealNotFound, "deal not found")
			}
			return domain.WrapError(err, errcodes.InternalServerError, "failed to lock deal")
		}

		if capacity.OccupiedCount >= capacity.TotalCapacity {
			return admission.ErrNoFreeSlot
		}

		query := `
			SELECT ` + registrationColumns + `
			FROM registrations
			WHERE deal_id = $1 AND status = $2
			ORDER BY position
			LIMIT 1
			FOR UPDATE SKIP LOCKED`

		var schema registrationSchema
		if err := tx.GetContext(ctx, &schema, query, dealID, string(value.RegistrationWaitingList)); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return admission.ErrNoWaiting
			}
			return domain.WrapError(err, errcodes.InternalServerError, "failed to lock waiting registration")
		}

		updateQuery := `
			UPDATE registrations
			SET status = $1, price_paid = $2, promoted_at = $3
			WHERE id = $4`

		if _, err := tx.ExecContext(ctx, updateQuery, string(value.RegistrationConfirmed), price, at, schema.ID); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to promote registration")
		}

		occQuery := `
			UPDATE deals
			SET occupied_count = occupied_count + 1, updated_at = $1
			WHERE id = $2`

		if _, err := tx.ExecContext(ctx, occQuery, at, dealID); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to claim occupancy")
		}

		schema.Status = string(value.RegistrationConfirmed)
		schema.PricePaid = price
		schema.PromotedAt = sql.NullTime{Time: at, Valid: true}

		reg, err := schema.toDomain()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to convert registration")
		}

		promoted = reg

		return nil
	})
	if err != nil {
		return nil, err
	}

	return promoted, nil
}

// CountByStatus возвращает количество регистраций сделки в каждом статусе.
func (r *RegistrationRepository) CountByStatus(ctx context.Context, dealID int64) (map[value.RegistrationStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS cnt
		FROM registrations
		WHERE deal_id = $1
		GROUP BY status`

	rows := []struct {
		Status string `db:"status"`
		Cnt    int    `db:"cnt"`
	}{}

	if err := r.db.SelectContext(ctx, &rows, query, dealID); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to count registrations")
	}

	counts := make(map[value.RegistrationStatus]int, len(rows))
	for _, row := range rows {
		status, err := value.ParseRegistrationStatus(row.Status)
		if err != nil {
			return nil, err
		}
		counts[status] = row.Cnt
	}

	return counts, nil
}
