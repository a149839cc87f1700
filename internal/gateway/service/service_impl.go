package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hireloop/paycore/internal/config"
	gatewaydomain "github.com/hireloop/paycore/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

type Service struct {
	log    *zap.Logger
	cfg    config.GatewayConfig
	client *http.Client
}

func NewService(p Params) gatewaydomain.Service {
	timeout := time.Duration(p.Cfg.Gateway.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		log:    p.Log.Named("gateway.service"),
		cfg:    p.Cfg.Gateway,
		client: &http.Client{Timeout: timeout},
	}
}

// createRequest mirrors the gateway create wire format.
type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
	Deeplink   string `json:"deeplink"`
	QRCodeURL  string `json:"qrCodeUrl"`
}

func (s *Service) BuildPaymentRequest(ctx context.Context, in gatewaydomain.BuildInput) (*gatewaydomain.BuildResult, error) {
	if s.cfg.PartnerCode == "" || s.cfg.AccessKey == "" || s.cfg.SecretKey == "" || s.cfg.Endpoint == "" {
		return nil, gatewaydomain.ErrNotConfigured
	}

	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	req := createRequest{
		PartnerCode: s.cfg.PartnerCode,
		AccessKey:   s.cfg.AccessKey,
		RequestID:   requestID,
		Amount:      in.Amount,
		OrderID:     in.OrderID,
		OrderInfo:   in.OrderInfo,
		RedirectURL: s.cfg.RedirectURL,
		IPNURL:      s.cfg.IPNURL,
		ExtraData:   in.ExtraData,
		RequestType: s.cfg.RequestType,
		Lang:        "en",
	}
	req.Signature = s.signCreate(req)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.log.Warn("gateway create request failed",
			zap.String("order_id", in.OrderID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", gatewaydomain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed createResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", gatewaydomain.ErrGatewayUnavailable, err)
	}
	if parsed.ResultCode != 0 {
		s.log.Warn("gateway rejected payment request",
			zap.String("order_id", in.OrderID),
			zap.Int("result_code", parsed.ResultCode),
			zap.String("message", parsed.Message),
		)
		return nil, fmt.Errorf("%w: %s (code %d)", gatewaydomain.ErrGatewayRejected, parsed.Message, parsed.ResultCode)
	}

	return &gatewaydomain.BuildResult{
		RequestID: requestID,
		PayURL:    parsed.PayURL,
		Deeplink:  parsed.Deeplink,
		QRCodeURL: parsed.QRCodeURL,
	}, nil
}

// VerifyIPN recomputes the notification signature over the documented field
// order and compares it in constant time.
func (s *Service) VerifyIPN(payload gatewaydomain.IPNPayload) error {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		s.cfg.AccessKey,
		payload.Amount,
		payload.ExtraData,
		payload.Message,
		payload.OrderID,
		payload.OrderInfo,
		payload.OrderType,
		payload.PartnerCode,
		payload.PayType,
		payload.RequestID,
		payload.ResponseTime,
		payload.Code(),
		payload.TransID,
	)
	expected := s.sign(raw)
	if !hmac.Equal([]byte(expected), []byte(payload.Signature)) {
		return gatewaydomain.ErrInvalidSignature
	}
	return nil
}

func (s *Service) signCreate(req createRequest) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		req.AccessKey,
		req.Amount,
		req.ExtraData,
		req.IPNURL,
		req.OrderID,
		req.OrderInfo,
		req.PartnerCode,
		req.RedirectURL,
		req.RequestID,
		req.RequestType,
	)
	return s.sign(raw)
}

func (s *Service) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
