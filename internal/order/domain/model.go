package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is the closed set of order states. PENDING is the only state a
// transition may leave from.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
)

func (s Status) Terminal() bool { return s == StatusPaid || s == StatusFailed }

// Order is one purchase attempt. ExternalOrderID is the correlation key the
// gateway echoes back in notifications.
type Order struct {
	ID                    snowflake.ID   `json:"id" gorm:"primaryKey"`
	UserID                snowflake.ID   `json:"user_id" gorm:"not null;index"`
	PlanID                snowflake.ID   `json:"plan_id" gorm:"not null"`
	Amount                int64          `json:"amount" gorm:"not null"`
	PaymentMethod         string         `json:"payment_method" gorm:"type:text;not null"`
	Status                Status         `json:"status" gorm:"type:text;not null"`
	ExternalOrderID       string         `json:"external_order_id" gorm:"type:text;uniqueIndex"`
	ExternalTransactionID *string        `json:"external_transaction_id"`
	Metadata              datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	CreatedAt             time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time      `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidAmount = errors.New("order amount mismatch")
)

type CreateInput struct {
	UserID        snowflake.ID
	PlanID        snowflake.ID
	PaymentMethod string
	Metadata      datatypes.JSON
}

// CreateResult pairs the new PENDING order with the gateway redirect.
type CreateResult struct {
	Order     *Order `json:"order"`
	PayURL    string `json:"pay_url"`
	Deeplink  string `json:"deeplink,omitempty"`
	QRCodeURL string `json:"qr_code_url,omitempty"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	StampExternalID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalOrderID string, updatedAt time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByExternalOrderID(ctx context.Context, db *gorm.DB, externalOrderID string) (*Order, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Order, error)

	// Transition flips a PENDING order into a terminal status. It reports
	// whether this call performed the flip. A false result with a nil error
	// means some earlier call already did.
	Transition(ctx context.Context, db *gorm.DB, externalOrderID string, to Status, transactionID *string, updatedAt time.Time) (bool, error)

	ExpirePending(ctx context.Context, db *gorm.DB, cutoff time.Time, updatedAt time.Time) (int64, error)
	ListPaidWithoutGrant(ctx context.Context, db *gorm.DB, limit int) ([]Order, error)
}

type Service interface {
	Create(ctx context.Context, in CreateInput) (*CreateResult, error)
	MarkPaid(ctx context.Context, externalOrderID string, transactionID string) (*Order, bool, error)
	MarkFailed(ctx context.Context, externalOrderID string, transactionID string) (*Order, bool, error)
	GetByExternalID(ctx context.Context, externalOrderID string) (*Order, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Order, error)
	ExpirePending(ctx context.Context) (int64, error)
}
