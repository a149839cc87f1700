package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const planColumns = `id, role, code, name, duration_months, price,
	max_applications, max_job_posts, max_profiles, is_featured_job, created_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+`
		 FROM plans
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

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+`
		 FROM plans
		 WHERE code = ?
		 LIMIT 1`,
		code,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, role domain.Role) ([]domain.Plan, error) {
	var items []domain.Plan
	query := `SELECT ` + planColumns + ` FROM plans`
	args := []interface{}{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY price ASC`
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO plans (
			id, role, code, name, duration_months, price,
			max_applications, max_job_posts, max_profiles, is_featured_job, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`,
		plan.ID,
		plan.Role,
		plan.Code,
		plan.Name,
		plan.DurationMonths,
		plan.Price,
		plan.MaxApplications,
		plan.MaxJobPosts,
		plan.MaxProfiles,
		plan.IsFeaturedJob,
		plan.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
