package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CountFor(ctx context.Context, db *gorm.DB, userID snowflake.ID, day time.Time) (int, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(count), 0)
		 FROM candidate_daily_usages
		 WHERE user_id = ? AND usage_date = ?`,
		userID,
		day.Format("2006-01-02"),
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Increment is a single atomic upsert so concurrent actions on the same day
// never lose a count.
func (r *repo) Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, userID snowflake.ID, day time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO candidate_daily_usages (id, user_id, usage_date, count)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT (user_id, usage_date) DO UPDATE
		 SET count = candidate_daily_usages.count + 1`,
		id,
		userID,
		day.Format("2006-01-02"),
	).Error
}
