package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderColumns = `id, user_id, plan_id, amount, payment_method, status,
	external_order_id, external_transaction_id, metadata, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, user_id, plan_id, amount, payment_method, status,
			external_order_id, external_transaction_id, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)`,
		order.ID,
		order.UserID,
		order.PlanID,
		order.Amount,
		order.PaymentMethod,
		order.Status,
		order.ExternalOrderID,
		order.ExternalTransactionID,
		order.Metadata,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) StampExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalOrderID string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET external_order_id = ?, updated_at = ?
		 WHERE id = ?`,
		externalOrderID,
		updatedAt,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalOrderID(ctx context.Context, db *gorm.DB, externalOrderID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE external_order_id = ?
		 LIMIT 1`,
		externalOrderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Transition is the only statement that moves an order out of PENDING. The
// status guard in the WHERE clause makes concurrent or replayed calls
// harmless: exactly one caller observes RowsAffected == 1.
func (r *repo) Transition(ctx context.Context, db *gorm.DB, externalOrderID string, to domain.Status, transactionID *string, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, external_transaction_id = COALESCE(?, external_transaction_id), updated_at = ?
		 WHERE external_order_id = ? AND status = ?`,
		to,
		transactionID,
		updatedAt,
		externalOrderID,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ExpirePending(ctx context.Context, db *gorm.DB, cutoff time.Time, updatedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND created_at < ?`,
		domain.StatusFailed,
		updatedAt,
		domain.StatusPending,
		cutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListPaidWithoutGrant(ctx context.Context, db *gorm.DB, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders o
		 WHERE o.status = ?
		   AND NOT EXISTS (
			SELECT 1 FROM subscriptions s WHERE s.order_id = o.id
		   )
		 ORDER BY o.updated_at ASC
		 LIMIT ?`,
		domain.StatusPaid,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
