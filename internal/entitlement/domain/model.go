package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"gorm.io/gorm"
)

// Subscription is the entitlement window bought by one paid order. OrderID
// is unique so a replayed grant for the same order cannot create a second
// subscription.
type Subscription struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;index"`
	PlanID    snowflake.ID `json:"plan_id" gorm:"not null"`
	OrderID   snowflake.ID `json:"order_id" gorm:"not null;uniqueIndex"`
	StartDate time.Time    `json:"start_date" gorm:"not null"`
	EndDate   time.Time    `json:"end_date" gorm:"not null"`
	IsActive  bool         `json:"is_active" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// EmployerJobQuota accumulates purchased job-post slots per employer.
type EmployerJobQuota struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID      snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex"`
	TotalQuota  int          `json:"total_quota" gorm:"not null"`
	UsedQuota   int          `json:"used_quota" gorm:"not null"`
	LastUpdated time.Time    `json:"last_updated" gorm:"not null"`
}

func (EmployerJobQuota) TableName() string { return "employer_job_quotas" }

func (q *EmployerJobQuota) Remaining() int { return q.TotalQuota - q.UsedQuota }

// Snapshot is the read model for a user's current entitlements.
type Snapshot struct {
	Subscription *Subscription     `json:"subscription,omitempty"`
	Plan         *plandomain.Plan  `json:"plan,omitempty"`
	Quota        *EmployerJobQuota `json:"quota,omitempty"`
}

type Repository interface {
	// InsertSubscription reports whether the row was created. False means a
	// grant for the same order already exists.
	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) (bool, error)
	DeactivateOthers(ctx context.Context, db *gorm.DB, userID snowflake.ID, keep snowflake.ID) (int64, error)
	FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, now time.Time) (*Subscription, error)

	// HasActiveForRole reports whether the user holds a live subscription to
	// a plan of the given role. Employer subscriptions must not satisfy a
	// candidate check, and vice versa.
	HasActiveForRole(ctx context.Context, db *gorm.DB, userID snowflake.ID, role plandomain.Role, now time.Time) (bool, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Subscription, error)

	// AddQuota adds purchased slots to the employer's balance, creating the
	// row on first purchase.
	AddQuota(ctx context.Context, db *gorm.DB, id snowflake.ID, userID snowflake.ID, add int, now time.Time) error
	FindQuotaByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*EmployerJobQuota, error)
}

type Service interface {
	Grant(ctx context.Context, order *orderdomain.Order) error
	Snapshot(ctx context.Context, userID snowflake.ID) (*Snapshot, error)
	HasActiveSubscription(ctx context.Context, userID snowflake.ID, role plandomain.Role) (bool, error)
}
