package service_test

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
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/hireloop/paycore/internal/clock"
	"github.com/hireloop/paycore/internal/config"
	entitlementrepo "github.com/hireloop/paycore/internal/entitlement/repository"
	entitlementservice "github.com/hireloop/paycore/internal/entitlement/service"
	gatewaydomain "github.com/hireloop/paycore/internal/gateway/domain"
	gatewayservice "github.com/hireloop/paycore/internal/gateway/service"
	orderdomain "github.com/hireloop/paycore/internal/order/domain"
	orderrepo "github.com/hireloop/paycore/internal/order/repository"
	orderservice "github.com/hireloop/paycore/internal/order/service"
	plandomain "github.com/hireloop/paycore/internal/plan/domain"
	planrepo "github.com/hireloop/paycore/internal/plan/repository"
	planservice "github.com/hireloop/paycore/internal/plan/service"
	webhookdomain "github.com/hireloop/paycore/internal/webhook/domain"
	webhookservice "github.com/hireloop/paycore/internal/webhook/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testAccessKey = "access"
	testSecretKey = "secret"
)

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	orderSvc   orderdomain.Service
	webhookSvc webhookdomain.Service
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_webhook_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, stmt := range testSchema() {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func testSchema() []string {
	return []string{
		`CREATE TABLE plans (
			id BIGINT PRIMARY KEY,
			role TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			duration_months INT NOT NULL,
			price BIGINT NOT NULL,
			max_applications INT,
			max_job_posts INT NOT NULL DEFAULT 0,
			max_profiles INT NOT NULL DEFAULT 0,
			is_featured_job BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE orders (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			plan_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			external_order_id TEXT UNIQUE,
			external_transaction_id TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		subscriptionsSchema,
		`CREATE TABLE employer_job_quotas (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE,
			total_quota INT NOT NULL DEFAULT 0,
			used_quota INT NOT NULL DEFAULT 0,
			last_updated DATETIME NOT NULL
		)`,
	}
}

const subscriptionsSchema = `CREATE TABLE subscriptions (
	id BIGINT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	plan_id BIGINT NOT NULL,
	order_id BIGINT NOT NULL UNIQUE,
	start_date DATETIME NOT NULL,
	end_date DATETIME NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at DATETIME NOT NULL
)`

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	gatewayStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"resultCode": 0,
			"message":    "Successful.",
			"payUrl":     "https://pay.test/redirect",
		})
	}))
	t.Cleanup(gatewayStub.Close)

	cfg := config.Config{
		Gateway: config.GatewayConfig{
			PartnerCode:    "PARTNER",
			AccessKey:      testAccessKey,
			SecretKey:      testSecretKey,
			Endpoint:       gatewayStub.URL,
			IPNURL:         "https://example.com/api/payments/webhooks/momo",
			RedirectURL:    "https://example.com/payments/return",
			RequestType:    "captureWallet",
			TimeoutSeconds: 2,
		},
	}

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	planSvc := planservice.NewService(planservice.Params{
		DB:   db,
		Log:  log,
		Repo: planrepo.Provide(),
	})
	gatewaySvc := gatewayservice.NewService(gatewayservice.Params{
		Log: log,
		Cfg: cfg,
	})
	orderSvc := orderservice.NewService(orderservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Repo:       orderrepo.Provide(),
		PlanSvc:    planSvc,
		GatewaySvc: gatewaySvc,
		Limits:     config.NewStaticLimitsHolder(config.DefaultLimitsConfig()),
	})
	entitlementSvc := entitlementservice.NewService(entitlementservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   clk,
		Repo:    entitlementrepo.Provide(),
		PlanSvc: planSvc,
	})
	webhookSvc := webhookservice.NewService(webhookservice.Params{
		DB:             db,
		Log:            log,
		Cfg:            cfg,
		OrderSvc:       orderSvc,
		OrderRepo:      orderrepo.Provide(),
		GatewaySvc:     gatewaySvc,
		EntitlementSvc: entitlementSvc,
	})

	return &fixture{
		db:         db,
		node:       node,
		orderSvc:   orderSvc,
		webhookSvc: webhookSvc,
	}
}

func (f *fixture) seedPlan(t *testing.T, plan plandomain.Plan) *plandomain.Plan {
	t.Helper()
	plan.ID = f.node.Generate()
	plan.CreatedAt = time.Now().UTC()
	inserted, err := planrepo.Provide().Insert(context.Background(), f.db, &plan)
	if err != nil || !inserted {
		t.Fatalf("seed plan: inserted=%v err=%v", inserted, err)
	}
	return &plan
}

func (f *fixture) createOrder(t *testing.T, userID snowflake.ID, planID snowflake.ID) *orderdomain.Order {
	t.Helper()
	result, err := f.orderSvc.Create(context.Background(), orderdomain.CreateInput{
		UserID: userID,
		PlanID: planID,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return result.Order
}

func signedIPN(t *testing.T, order *orderdomain.Order, resultCode int) []byte {
	t.Helper()
	payload := gatewaydomain.IPNPayload{
		PartnerCode:  "PARTNER",
		OrderID:      order.ExternalOrderID,
		RequestID:    "req-test",
		Amount:       order.Amount,
		OrderInfo:    "payment",
		OrderType:    "momo_wallet",
		TransID:      123456789,
		ResultCode:   &resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1700000100,
	}
	payload.Signature = signPayload(payload)

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return body
}

func signPayload(p gatewaydomain.IPNPayload) string {
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		testAccessKey,
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
	mac := hmac.New(sha256.New, []byte(testSecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *fixture) countSubscriptions(t *testing.T, userID snowflake.ID) int {
	t.Helper()
	var count int
	err := f.db.Raw(
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	if err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	return count
}

func TestSuccessNotificationGrantsEntitlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plan := f.seedPlan(t, plandomain.Plan{
		Role:           plandomain.RoleCandidate,
		Code:           "candidate_monthly",
		Name:           "Candidate Monthly",
		DurationMonths: 1,
		Price:          50000,
	})

	userID := f.node.Generate()
	order := f.createOrder(t, userID, plan.ID)

	ack, err := f.webhookSvc.HandleNotification(ctx, signedIPN(t, order, 0))
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	assert.Equal(t, order.ExternalOrderID, ack.OrderID)
	assert.Equal(t, 0, ack.ResultCode)

	settled, err := f.orderSvc.GetByExternalID(ctx, order.ExternalOrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	assert.Equal(t, orderdomain.StatusPaid, settled.Status)
	assert.Equal(t, 1, f.countSubscriptions(t, userID))
}

func TestReplayedNotificationGrantsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plan := f.seedPlan(t, plandomain.Plan{
		Role:           plandomain.RoleCandidate,
		Code:           "candidate_monthly",
		Name:           "Candidate Monthly",
		DurationMonths: 1,
		Price:          50000,
	})

	userID := f.node.Generate()
	order := f.createOrder(t, userID, plan.ID)
	body := signedIPN(t, order, 0)

	for i := 0; i < 3; i++ {
		ack, err := f.webhookSvc.HandleNotification(ctx, body)
		if err != nil {
			t.Fatalf("handle notification %d: %v", i, err)
		}
		assert.Equal(t, 0, ack.ResultCode)
	}

	assert.Equal(t, 1, f.countSubscriptions(t, userID))
}

func TestFailureNotificationMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plan := f.seedPlan(t, plandomain.Plan{
		Role:           plandomain.RoleCandidate,
		Code:           "candidate_monthly",
		Name:           "Candidate Monthly",
		DurationMonths: 1,
		Price:          50000,
	})

	userID := f.node.Generate()
	order := f.createOrder(t, userID, plan.ID)

	ack, err := f.webhookSvc.HandleNotification(ctx, signedIPN(t, order, 1006))
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	assert.Equal(t, 0, ack.ResultCode)

	failed, err := f.orderSvc.GetByExternalID(ctx, order.ExternalOrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	assert.Equal(t, orderdomain.StatusFailed, failed.Status)
	assert.Zero(t, f.countSubscriptions(t, userID))

	// A late success replay for the failed order must not flip it back.
	ack, err = f.webhookSvc.HandleNotification(ctx, signedIPN(t, order, 0))
	if err != nil {
		t.Fatalf("late success replay: %v", err)
	}
	assert.Equal(t, 0, ack.ResultCode)
	failed, _ = f.orderSvc.GetByExternalID(ctx, order.ExternalOrderID)
	assert.Equal(t, orderdomain.StatusFailed, failed.Status)
	assert.Zero(t, f.countSubscriptions(t, userID))
}

func TestBadSignatureRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plan := f.seedPlan(t, plandomain.Plan{
		Role:           plandomain.RoleCandidate,
		Code:           "candidate_monthly",
		Name:           "Candidate Monthly",
		DurationMonths: 1,
		Price:          50000,
	})

	userID := f.node.Generate()
	order := f.createOrder(t, userID, plan.ID)

	var payload gatewaydomain.IPNPayload
	if err := json.Unmarshal(signedIPN(t, order, 0), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload.Amount = 1
	body, _ := json.Marshal(payload)

	_, err := f.webhookSvc.HandleNotification(ctx, body)
	assert.True(t, errors.Is(err, gatewaydomain.ErrInvalidSignature))

	pending, _ := f.orderSvc.GetByExternalID(ctx, order.ExternalOrderID)
	assert.Equal(t, orderdomain.StatusPending, pending.Status)
	assert.Zero(t, f.countSubscriptions(t, userID))
}

func TestMalformedPayloadRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.webhookSvc.HandleNotification(context.Background(), []byte("{not json"))
	assert.True(t, errors.Is(err, webhookdomain.ErrMalformedPayload))

	_, err = f.webhookSvc.HandleNotification(context.Background(), []byte(`{"amount": 5}`))
	assert.True(t, errors.Is(err, webhookdomain.ErrMalformedPayload))

	// A result code must be present, not defaulted. Sign the payload so the
	// rejection is about the missing field, not the signature.
	noCode := gatewaydomain.IPNPayload{
		PartnerCode: "PARTNER",
		OrderID:     "ORDER_404_1700000000",
		RequestID:   "req-test",
		Amount:      50000,
	}
	noCode.Signature = signPayload(noCode)
	body, _ := json.Marshal(noCode)
	_, err = f.webhookSvc.HandleNotification(context.Background(), body)
	assert.True(t, errors.Is(err, webhookdomain.ErrMalformedPayload))
}

func TestUnknownOrderAcked(t *testing.T) {
	f := newFixture(t)

	success := 0
	payload := gatewaydomain.IPNPayload{
		PartnerCode: "PARTNER",
		OrderID:     "ORDER_404_1700000000",
		RequestID:   "req-test",
		Amount:      50000,
		ResultCode:  &success,
	}
	payload.Signature = signPayload(payload)
	body, _ := json.Marshal(payload)

	ack, err := f.webhookSvc.HandleNotification(context.Background(), body)
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	assert.Equal(t, "order not found", ack.Message)
}

func TestAmountMismatchFailsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plan := f.seedPlan(t, plandomain.Plan{
		Role:           plandomain.RoleCandidate,
		Code:           "candidate_monthly",
		Name:           "Candidate Monthly",
		DurationMonths: 1,
		Price:          50000,
	})

	userID := f.node.Generate()
	order := f.createOrder(t, userID, plan.ID)

	tampered := *order
	tampered.Amount = 1000
	ack, err := f.webhookSvc.HandleNotification(ctx, signedIPN(t, &tampered, 0))
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	assert.Equal(t, "amount mismatch", ack.Message)

	failed, _ := f.orderSvc.GetByExternalID(ctx, order.ExternalOrderID)
	assert.Equal(t, orderdomain.StatusFailed, failed.Status)
	assert.Zero(t, f.countSubscriptions(t, userID))
}

func TestGrantFailureRecoveredBySweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	plan := f.seedPlan(t, plandomain.Plan{
		Role:           plandomain.RoleCandidate,
		Code:           "candidate_monthly",
		Name:           "Candidate Monthly",
		DurationMonths: 1,
		Price:          50000,
	})

	userID := f.node.Generate()
	order := f.createOrder(t, userID, plan.ID)

	// Break the grant path after payment settles.
	if err := f.db.Exec(`DROP TABLE subscriptions`).Error; err != nil {
		t.Fatalf("drop subscriptions: %v", err)
	}

	ack, err := f.webhookSvc.HandleNotification(ctx, signedIPN(t, order, 0))
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	assert.Equal(t, 0, ack.ResultCode)

	paid, err := f.orderSvc.GetByExternalID(ctx, order.ExternalOrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	assert.Equal(t, orderdomain.StatusPaid, paid.Status)

	if err := f.db.Exec(subscriptionsSchema).Error; err != nil {
		t.Fatalf("recreate subscriptions: %v", err)
	}

	recovered, err := f.webhookSvc.RetryPendingGrants(ctx)
	if err != nil {
		t.Fatalf("retry grants: %v", err)
	}
	assert.Equal(t, 1, recovered)
	assert.Equal(t, 1, f.countSubscriptions(t, userID))

	// Sweep is idempotent once the grant landed.
	recovered, err = f.webhookSvc.RetryPendingGrants(ctx)
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	assert.Zero(t, recovered)
}
