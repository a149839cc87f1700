package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CandidateDailyUsage counts gated actions per candidate per calendar day.
type CandidateDailyUsage struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:uq_user_date"`
	UsageDate time.Time    `json:"usage_date" gorm:"type:date;not null;uniqueIndex:uq_user_date"`
	Count     int          `json:"count" gorm:"not null"`
}

func (CandidateDailyUsage) TableName() string { return "candidate_daily_usages" }

// UnlimitedLimit marks a decision where no cap applies.
const UnlimitedLimit = -1

// Decision is the outcome of a limit check.
type Decision struct {
	Allowed      bool `json:"allowed"`
	CurrentCount int  `json:"current_count"`
	Limit        int  `json:"limit"`
}

type Repository interface {
	CountFor(ctx context.Context, db *gorm.DB, userID snowflake.ID, day time.Time) (int, error)
	// Increment bumps the day's counter, creating the row at 1 on first use.
	Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, userID snowflake.ID, day time.Time) error
}

type Service interface {
	CanPerform(ctx context.Context, userID snowflake.ID) (*Decision, error)
	Record(ctx context.Context, userID snowflake.ID) error
}
