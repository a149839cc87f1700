package domain

import (
	"context"
	"errors"
)

// BuildInput carries everything the wallet gateway needs to open a payment.
// RequestID is assigned by the service when left empty.
type BuildInput struct {
	OrderID   string
	RequestID string
	Amount    int64
	OrderInfo string
	ExtraData string
}

// BuildResult is the usable subset of the gateway create response.
type BuildResult struct {
	RequestID string `json:"request_id"`
	PayURL    string `json:"pay_url"`
	Deeplink  string `json:"deeplink,omitempty"`
	QRCodeURL string `json:"qr_code_url,omitempty"`
}

// IPNPayload is the asynchronous payment notification posted by the gateway.
// Field names follow the wire format exactly. ResultCode is a pointer so a
// payload missing the field can be told apart from an explicit 0.
type IPNPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   *int   `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func (p IPNPayload) Code() int {
	if p.ResultCode == nil {
		return 0
	}
	return *p.ResultCode
}

var (
	ErrInvalidSignature   = errors.New("gateway signature mismatch")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrGatewayRejected    = errors.New("gateway rejected payment request")
	ErrNotConfigured      = errors.New("gateway credentials not configured")
)

type Service interface {
	BuildPaymentRequest(ctx context.Context, in BuildInput) (*BuildResult, error)
	VerifyIPN(payload IPNPayload) error
}
