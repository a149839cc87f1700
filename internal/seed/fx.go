package seed

import (
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(db *gorm.DB, repo plandomain.Repository) error {
		return EnsurePlans(db, repo)
	}),
)
