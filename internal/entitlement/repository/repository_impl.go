package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/entitlement/domain"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, plan_id, order_id, start_date, end_date, is_active, created_at`

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, user_id, plan_id, order_id, start_date, end_date, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO NOTHING`,
		sub.ID,
		sub.UserID,
		sub.PlanID,
		sub.OrderID,
		sub.StartDate,
		sub.EndDate,
		sub.IsActive,
		sub.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeactivateOthers(ctx context.Context, db *gorm.DB, userID snowflake.ID, keep snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET is_active = FALSE
		 WHERE user_id = ? AND is_active = TRUE AND id <> ?`,
		userID,
		keep,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE user_id = ? AND is_active = TRUE AND end_date > ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
		now,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) HasActiveForRole(ctx context.Context, db *gorm.DB, userID snowflake.ID, role plandomain.Role, now time.Time) (bool, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM subscriptions s
		 JOIN plans p ON p.id = s.plan_id
		 WHERE s.user_id = ? AND s.is_active = TRUE AND s.end_date > ? AND p.role = ?`,
		userID,
		now,
		string(role),
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) AddQuota(ctx context.Context, db *gorm.DB, id snowflake.ID, userID snowflake.ID, add int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO employer_job_quotas (id, user_id, total_quota, used_quota, last_updated)
		 VALUES (?, ?, ?, 0, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET total_quota = employer_job_quotas.total_quota + EXCLUDED.total_quota,
		     last_updated = EXCLUDED.last_updated`,
		id,
		userID,
		add,
		now,
	).Error
}

func (r *repo) FindQuotaByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.EmployerJobQuota, error) {
	var item domain.EmployerJobQuota
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, total_quota, used_quota, last_updated
		 FROM employer_job_quotas
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
