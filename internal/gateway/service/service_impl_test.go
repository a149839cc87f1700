package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hireloop/paycore/internal/config"
	gatewaydomain "github.com/hireloop/paycore/internal/gateway/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testConfig(endpoint string) config.Config {
	return config.Config{
		Gateway: config.GatewayConfig{
			PartnerCode:    "PARTNER",
			AccessKey:      "access",
			SecretKey:      "secret",
			Endpoint:       endpoint,
			IPNURL:         "https://example.com/api/payments/webhooks/momo",
			RedirectURL:    "https://example.com/payments/return",
			RequestType:    "captureWallet",
			TimeoutSeconds: 2,
		},
	}
}

func newTestService(endpoint string) *Service {
	return NewService(Params{
		Log: zap.NewNop(),
		Cfg: testConfig(endpoint),
	}).(*Service)
}

func signIPNPayload(accessKey, secretKey string, p gatewaydomain.IPNPayload) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		accessKey,
		p.Amount,
		p.ExtraData,
		p.Message,
		p.OrderID,
		p.OrderInfo,
		p.OrderType,
		p.PartnerCode,
		p.PayType,
		p.RequestID,
		p.ResponseTime,
		p.Code(),
		p.TransID,
	)
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignCreateKnownVector(t *testing.T) {
	svc := newTestService("https://gateway.test/create")

	req := createRequest{
		PartnerCode: "PARTNER",
		AccessKey:   "access",
		RequestID:   "req-1",
		Amount:      50000,
		OrderID:     "ORDER_1_1700000000",
		OrderInfo:   "Payment for Candidate Monthly",
		RedirectURL: "https://example.com/payments/return",
		IPNURL:      "https://example.com/api/payments/webhooks/momo",
		ExtraData:   "",
		RequestType: "captureWallet",
	}

	raw := "accessKey=access&amount=50000&extraData=&ipnUrl=https://example.com/api/payments/webhooks/momo" +
		"&orderId=ORDER_1_1700000000&orderInfo=Payment for Candidate Monthly&partnerCode=PARTNER" +
		"&redirectUrl=https://example.com/payments/return&requestId=req-1&requestType=captureWallet"
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(raw))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, svc.signCreate(req))
}

func TestVerifyIPN(t *testing.T) {
	svc := newTestService("https://gateway.test/create")

	success := 0
	payload := gatewaydomain.IPNPayload{
		PartnerCode:  "PARTNER",
		OrderID:      "ORDER_1_1700000000",
		RequestID:    "req-1",
		Amount:       50000,
		OrderInfo:    "Payment for Candidate Monthly",
		OrderType:    "momo_wallet",
		TransID:      987654321,
		ResultCode:   &success,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1700000100,
	}
	payload.Signature = signIPNPayload("access", "secret", payload)

	assert.NoError(t, svc.VerifyIPN(payload))

	tampered := payload
	tampered.Amount = 99999
	err := svc.VerifyIPN(tampered)
	assert.True(t, errors.Is(err, gatewaydomain.ErrInvalidSignature))

	missing := payload
	missing.Signature = ""
	err = svc.VerifyIPN(missing)
	assert.True(t, errors.Is(err, gatewaydomain.ErrInvalidSignature))
}

func TestBuildPaymentRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "PARTNER", req.PartnerCode)
		assert.NotEmpty(t, req.RequestID)
		assert.NotEmpty(t, req.Signature)
		json.NewEncoder(w).Encode(createResponse{
			ResultCode: 0,
			Message:    "Successful.",
			PayURL:     "https://pay.test/redirect",
		})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	result, err := svc.BuildPaymentRequest(context.Background(), gatewaydomain.BuildInput{
		OrderID:   "ORDER_1_1700000000",
		Amount:    50000,
		OrderInfo: "Payment for Candidate Monthly",
	})
	assert.NoError(t, err)
	assert.Equal(t, "https://pay.test/redirect", result.PayURL)
	assert.NotEmpty(t, result.RequestID)
}

func TestBuildPaymentRequestRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createResponse{ResultCode: 41, Message: "duplicate orderId"})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	_, err := svc.BuildPaymentRequest(context.Background(), gatewaydomain.BuildInput{
		OrderID: "ORDER_1_1700000000",
		Amount:  50000,
	})
	assert.True(t, errors.Is(err, gatewaydomain.ErrGatewayRejected))
}

func TestBuildPaymentRequestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	svc := newTestService(srv.URL)
	_, err := svc.BuildPaymentRequest(context.Background(), gatewaydomain.BuildInput{
		OrderID: "ORDER_1_1700000000",
		Amount:  50000,
	})
	assert.True(t, errors.Is(err, gatewaydomain.ErrGatewayUnavailable))
}

func TestBuildPaymentRequestNotConfigured(t *testing.T) {
	svc := NewService(Params{Log: zap.NewNop(), Cfg: config.Config{}}).(*Service)
	_, err := svc.BuildPaymentRequest(context.Background(), gatewaydomain.BuildInput{OrderID: "x", Amount: 1})
	assert.True(t, errors.Is(err, gatewaydomain.ErrNotConfigured))
}
