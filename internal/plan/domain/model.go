package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Role identifies which side of the marketplace a plan serves.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleEmployer  Role = "employer"
)

func (r Role) Valid() bool {
	return r == RoleCandidate || r == RoleEmployer
}

// Plan is a purchasable subscription package. MaxApplications is nil when
// the plan grants unlimited gated actions.
type Plan struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Role            Role         `json:"role" gorm:"type:text;not null"`
	Code            string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	DurationMonths  int          `json:"duration_months" gorm:"not null"`
	Price           int64        `json:"price" gorm:"not null"`
	MaxApplications *int         `json:"max_applications"`
	MaxJobPosts     int          `json:"max_job_posts" gorm:"not null"`
	MaxProfiles     int          `json:"max_profiles" gorm:"not null"`
	IsFeaturedJob   bool         `json:"is_featured_job" gorm:"not null"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
}

func (Plan) TableName() string { return "plans" }

// Unlimited reports whether the plan lifts the daily action cap entirely.
func (p *Plan) Unlimited() bool { return p.MaxApplications == nil }

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrInvalidRole  = errors.New("invalid plan role")
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, role Role) ([]Plan, error)
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) (bool, error)
}

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, role Role) ([]Plan, error)
}
