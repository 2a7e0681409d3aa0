package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pdf-chat-server/internal/domain"
)

// PostgresBillingRepository implements domain.BillingRepository
type PostgresBillingRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewPostgresBillingRepository creates a new billing repository
func NewPostgresBillingRepository(db *sql.DB, logger domain.Logger) *PostgresBillingRepository {
	return &PostgresBillingRepository{db: db, logger: logger}
}

// ApplySubscriptionEvent updates the user and appends the audit record in one
// transaction. A billing event id that was already recorded rolls everything
// back and yields domain.ErrDuplicateEvent.
func (r *PostgresBillingRepository) ApplySubscriptionEvent(
	ctx context.Context,
	record *domain.SubscriptionEvent,
	update *domain.SubscriptionUpdate,
	now time.Time,
) error {
	if record == nil || update == nil {
		return errors.New("apply subscription event: nil record or update")
	}

	var plan, status sql.NullString
	if update.Plan != nil {
		plan = sql.NullString{String: string(*update.Plan), Valid: true}
	}
	if update.SubscriptionStatus != nil {
		status = sql.NullString{String: string(*update.SubscriptionStatus), Valid: true}
	}
	var periodEnd sql.NullTime
	if update.CurrentPeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *update.CurrentPeriodEnd, Valid: true}
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET
				plan = COALESCE($2, plan),
				subscription_status = COALESCE($3, subscription_status),
				billing_subscription_id = COALESCE($4, billing_subscription_id),
				billing_price_id = COALESCE($5, billing_price_id),
				current_period_end = COALESCE($6, current_period_end),
				updated_at = $7
			WHERE id = $1`,
			record.UserID, plan, status,
			nullString(update.BillingSubscriptionID), nullString(update.BillingPriceID),
			periodEnd, now,
		)
		if err != nil {
			return fmt.Errorf("update user subscription: %w", err)
		}
		if err := expectAffected(res, domain.ErrUserNotFound); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `
			INSERT INTO subscription_events
				(id, billing_event_id, event_type, subscription_id, customer_id, price_id, status, user_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (billing_event_id) DO NOTHING`,
			record.ID, record.BillingEventID, record.EventType, record.SubscriptionID,
			record.CustomerID, record.PriceID, record.Status, record.UserID, record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert subscription event: %w", err)
		}
		return expectAffected(res, domain.ErrDuplicateEvent)
	})
}

// ListSubscriptionEvents returns a user's audit trail, oldest first.
func (r *PostgresBillingRepository) ListSubscriptionEvents(ctx context.Context, userID string) ([]*domain.SubscriptionEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, billing_event_id, event_type, subscription_id, customer_id, price_id, status, user_id, created_at
		FROM subscription_events
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscription events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.SubscriptionEvent, 0)
	for rows.Next() {
		var e domain.SubscriptionEvent
		if err := rows.Scan(
			&e.ID, &e.BillingEventID, &e.EventType, &e.SubscriptionID,
			&e.CustomerID, &e.PriceID, &e.Status, &e.UserID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
