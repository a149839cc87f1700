package domain

import (
	"context"
	"errors"
)

// Ack is the body returned to the gateway for every accepted notification.
// Acking replays and failures alike is what stops the gateway from
// retrying forever.
type Ack struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
}

// Notification outcomes recorded against metrics.
const (
	OutcomeGranted        = "granted"
	OutcomeFailed         = "failed"
	OutcomeReplay         = "replay"
	OutcomeUnknownOrder   = "unknown_order"
	OutcomeAmountMismatch = "amount_mismatch"
	OutcomeRejected       = "rejected"
)

var ErrMalformedPayload = errors.New("malformed notification payload")

type Service interface {
	HandleNotification(ctx context.Context, payload []byte) (*Ack, error)
	RetryPendingGrants(ctx context.Context) (int, error)
}
