package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"gorm.io/gorm"
)

func intPtr(v int) *int { return &v }

func defaultCatalog(now time.Time) []plandomain.Plan {
	return []plandomain.Plan{
		{
			Role:            plandomain.RoleCandidate,
			Code:            "candidate_monthly",
			Name:            "Candidate Monthly",
			DurationMonths:  1,
			Price:           50000,
			MaxApplications: nil,
			CreatedAt:       now,
		},
		{
			Role:            plandomain.RoleCandidate,
			Code:            "candidate_quarterly",
			Name:            "Candidate Quarterly",
			DurationMonths:  3,
			Price:           120000,
			MaxApplications: nil,
			CreatedAt:       now,
		},
		{
			Role:            plandomain.RoleEmployer,
			Code:            "employer_basic",
			Name:            "Employer Basic",
			DurationMonths:  1,
			Price:           500000,
			MaxApplications: intPtr(0),
			MaxJobPosts:     5,
			MaxProfiles:     50,
			CreatedAt:       now,
		},
		{
			Role:            plandomain.RoleEmployer,
			Code:            "employer_pro",
			Name:            "Employer Pro",
			DurationMonths:  1,
			Price:           1500000,
			MaxApplications: intPtr(0),
			MaxJobPosts:     20,
			MaxProfiles:     200,
			IsFeaturedJob:   true,
			CreatedAt:       now,
		},
	}
}

// EnsurePlans seeds the default catalog on startup. Re-running is safe
// because inserts skip codes that already exist.
func EnsurePlans(db *gorm.DB, repo plandomain.Repository) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultCatalog(now) {
			plan.ID = node.Generate()
			if _, err := repo.Insert(ctx, tx, &plan); err != nil {
				return err
			}
		}
		return nil
	})
}
