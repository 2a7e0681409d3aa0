package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdf-chat-server/internal/domain"
)

const userColumns = `id, email, name, plan, subscription_status, billing_customer_id,
	billing_subscription_id, billing_price_id, current_period_end,
	message_count, message_count_reset_at, created_at, updated_at`

// PostgresUserRepository implements domain.UserRepository and
// domain.MessageCounterStore on the users table.
type PostgresUserRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger domain.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, logger: logger}
}

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	var (
		u                                   domain.User
		plan, status                        string
		customerID, subscriptionID, priceID sql.NullString
		periodEnd                           sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &plan, &status,
		&customerID, &subscriptionID, &priceID, &periodEnd,
		&u.MessageCount, &u.MessageCountResetAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Plan = domain.ParsePlan(plan)
	u.SubscriptionStatus = domain.ParseSubscriptionStatus(status)
	u.BillingCustomerID = stringPtr(customerID)
	u.BillingSubscriptionID = stringPtr(subscriptionID)
	u.BillingPriceID = stringPtr(priceID)
	u.CurrentPeriodEnd = timePtr(periodEnd)
	return &u, nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, q queryer, where string, arg interface{}) (*domain.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// GetByID loads a user by primary key.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.getOne(ctx, r.db, "id = $1", id)
}

// GetByEmail loads a user by normalized email.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, r.db, "email = $1", normalizeEmail(email))
}

// GetByBillingCustomerID loads the user linked to a billing customer.
func (r *PostgresUserRepository) GetByBillingCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	if customerID == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.getOne(ctx, r.db, "billing_customer_id = $1", customerID)
}

// EnsureByEmail inserts a FREE user unless one exists, then returns the row.
func (r *PostgresUserRepository) EnsureByEmail(ctx context.Context, email, name string, now time.Time) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, &domain.ValidationError{Field: "email", Message: "email is required"}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, plan, subscription_status, message_count, message_count_reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6, $6)
		ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), email, name, string(domain.PlanFree), string(domain.SubscriptionStatusInactive), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

// AttachBillingCustomer links a billing customer unless one is already set.
func (r *PostgresUserRepository) AttachBillingCustomer(ctx context.Context, userID, customerID string) (string, error) {
	var current string
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET billing_customer_id = COALESCE(billing_customer_id, $2), updated_at = now()
		WHERE id = $1
		RETURNING billing_customer_id`,
		userID, customerID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("billing customer %s belongs to another user: %w", customerID, err)
		}
		return "", fmt.Errorf("attach billing customer: %w", err)
	}
	return current, nil
}

// ReadMessageUsage applies a due reset and returns the counter.
func (r *PostgresUserRepository) ReadMessageUsage(ctx context.Context, userID string, now time.Time) (*domain.MessageUsage, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			message_count = CASE WHEN message_count_reset_at <= $2 THEN 0 ELSE message_count END,
			message_count_reset_at = CASE WHEN message_count_reset_at <= $2 THEN $3 ELSE message_count_reset_at END
		WHERE id = $1
		RETURNING message_count, message_count_reset_at`,
		userID, domain.MessageResetCutoff(now), now,
	)
	return scanUsage(row)
}

// IncrementMessageCount adds one message, restarting the window when due.
func (r *PostgresUserRepository) IncrementMessageCount(ctx context.Context, userID string, now time.Time) (*domain.MessageUsage, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			message_count = CASE WHEN message_count_reset_at <= $2 THEN 1 ELSE message_count + 1 END,
			message_count_reset_at = CASE WHEN message_count_reset_at <= $2 THEN $3 ELSE message_count_reset_at END,
			updated_at = $3
		WHERE id = $1
		RETURNING message_count, message_count_reset_at`,
		userID, domain.MessageResetCutoff(now), now,
	)
	return scanUsage(row)
}

// ConsumeMessage increments only while the post-reset count is below limit.
// The WHERE clause is re-checked by Postgres against the latest row version
// under concurrent updates, so two racing requests cannot both take the last
// message.
func (r *PostgresUserRepository) ConsumeMessage(ctx context.Context, userID string, now time.Time, limit int) (*domain.MessageUsage, bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, false, domain.ErrUserNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			message_count = CASE WHEN message_count_reset_at <= $2 THEN 1 ELSE message_count + 1 END,
			message_count_reset_at = CASE WHEN message_count_reset_at <= $2 THEN $3 ELSE message_count_reset_at END,
			updated_at = $3
		WHERE id = $1
			AND ($4::integer < 0 OR (CASE WHEN message_count_reset_at <= $2 THEN 0 ELSE message_count END) < $4)
		RETURNING message_count, message_count_reset_at`,
		userID, domain.MessageResetCutoff(now), now, limit,
	)
	usage, err := scanUsage(row)
	if err == nil {
		return usage, true, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	// No row: either the user is missing or the quota is used up.
	usage, err = r.ReadMessageUsage(ctx, userID, now)
	if err != nil {
		return nil, false, err
	}
	return usage, false, nil
}

func scanUsage(row *sql.Row) (*domain.MessageUsage, error) {
	var u domain.MessageUsage
	err := row.Scan(&u.Count, &u.ResetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update message counter: %w", err)
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
