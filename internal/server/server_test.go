package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"deluxe_backend/internal/controller"
	"deluxe_backend/internal/model"
	"deluxe_backend/internal/repository"
	"deluxe_backend/internal/service"
	"deluxe_backend/internal/testutil"
	"deluxe_backend/pkg/billing"
	"deluxe_backend/pkg/billing/billingtest"
	"deluxe_backend/pkg/metrics"
	"deluxe_backend/pkg/utils/jwt"
)

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	gateway *billingtest.Gateway
	tokens  *jwt.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := testutil.NewDB(t)
	testutil.SeedPlans(t, db)
	gateway := billingtest.New()
	tokens := jwt.NewManager("test-secret", time.Hour)

	accounts := repository.NewAccountRepository(db)
	methods := repository.NewPaymentMethodRepository(db)
	catalog := repository.NewCatalogRepository(db)
	subs := repository.NewSubscriptionRepository(db)
	events := repository.NewWebhookRepository(db)

	accountSvc := service.NewAccountService(accounts, subs, gateway, log)
	methodSvc := service.NewPaymentMethodService(accounts, methods, gateway, log)
	checkoutSvc := service.NewCheckoutService(accounts, methods, catalog, subs, gateway, 7, log)
	syncer := service.NewSyncer(accounts, catalog, subs, log)
	webhookSvc := service.NewWebhookService(gateway, events, syncer, accounts, methods, log)

	app := New(Handlers{
		Auth:           controller.NewAuthController(accountSvc, tokens),
		Accounts:       controller.NewAccountController(accountSvc),
		PaymentMethods: controller.NewPaymentMethodController(methodSvc),
		Subscriptions:  controller.NewSubscriptionController(checkoutSvc, webhookSvc),
		Catalog:        controller.NewCatalogController(service.NewCatalogService(catalog)),
	}, Options{
		CORSOrigins: "*",
		Tokens:      tokens,
		Metrics:     metrics.New(),
		Logger:      log,
	})

	return &testEnv{app: app, db: db, gateway: gateway, tokens: tokens}
}

func (e *testEnv) login(t *testing.T, acc *model.Account) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(acc.ID, acc.Username, acc.Email)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	status, body := e.do(t, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "kim", "email": "kim@deluxe.com", "password": "123",
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.NotEmpty(t, body["token"])
	account := body["account"].(map[string]interface{})
	assert.Equal(t, "kim", account["username"])
	assert.NotContains(t, account, "stripe_customer_id")

	status, _ = e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "kim", "email": "kim@deluxe.com", "password": "123",
	})
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = e.do(t, "POST", "/api/auth/register", "", map[string]string{
		"username": "lee", "email": "not-an-email", "password": "123",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "email", body["fields"].(map[string]interface{})["email"])

	status, body = e.do(t, "POST", "/api/auth/login", "", map[string]string{"login": "kim", "password": "123"})
	require.Equal(t, fiber.StatusOK, status)
	token := body["token"].(string)

	claims, err := e.tokens.ValidateToken(token)
	require.NoError(t, err)

	status, _ = e.do(t, "GET", "/api/account/"+itoa(claims.AccountID), token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = e.do(t, "POST", "/api/auth/login", "", map[string]string{"login": "kim", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])
}

func TestGetAccountAuthorization(t *testing.T) {
	e := newTestEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	lee := testutil.SeedAccount(t, e.db, "lee", false)
	token := e.login(t, kim)

	status, _ := e.do(t, "GET", "/api/account/"+itoa(kim.ID), "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = e.do(t, "GET", "/api/account/"+itoa(lee.ID), token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := e.do(t, "GET", "/api/account/"+itoa(kim.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "kim", body["account"].(map[string]interface{})["username"])
	assert.Nil(t, body["liveSubscription"])
}

func TestUpdateAndDeleteAccount(t *testing.T) {
	e := newTestEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	token := e.login(t, kim)

	status, body := e.do(t, "PATCH", "/api/account/"+itoa(kim.ID), token, map[string]string{"email": "kim@deluxe.sg"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "kim@deluxe.sg", body["account"].(map[string]interface{})["email"])

	status, _ = e.do(t, "PATCH", "/api/account/"+itoa(kim.ID), token, map[string]string{"email": "nope"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.do(t, "DELETE", "/api/account/"+itoa(kim.ID), token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = e.do(t, "GET", "/api/account/"+itoa(kim.ID), token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestFreeTrialCheckout(t *testing.T) {
	e := newTestEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	token := e.login(t, kim)
	e.gateway.AddCard("pm_kim", "", "visa", "4242")

	status, body := e.do(t, "GET", "/api/checkout/standard", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "free_trial", body["branch"])
	assert.Equal(t, float64(7), body["trialDays"])

	status, body = e.do(t, "POST", "/api/stripe/subscriptions/standard", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Add a payment method to start your free trial", body["error"])
	assert.Empty(t, e.gateway.Created)

	status, body = e.do(t, "POST", "/api/stripe/setup-intents", token, nil)
	require.Equal(t, fiber.StatusCreated, status)
	assert.NotEmpty(t, body["clientSecret"])

	status, body = e.do(t, "POST", "/api/account/payment-methods", token, map[string]string{"paymentMethodID": "pm_kim"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "4242", body["payment_method"].(map[string]interface{})["last4"])

	status, body = e.do(t, "POST", "/api/stripe/subscriptions/standard", token, map[string]string{"paymentMethodID": "pm_kim"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "free_trial", body["branch"])
	assert.Equal(t, "trialing", body["status"])

	status, body = e.do(t, "POST", "/api/stripe/subscriptions/premium", token, map[string]string{"paymentMethodID": "pm_kim"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "You already have an existing plan!", body["error"])

	status, body = e.do(t, "GET", "/api/account/"+itoa(kim.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	live := body["liveSubscription"].(map[string]interface{})
	assert.Equal(t, "trialing", live["status"])
	assert.Equal(t, true, body["account"].(map[string]interface{})["trialed"])
}

func TestChargeCheckoutReusesSecret(t *testing.T) {
	e := newTestEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", true)
	token := e.login(t, kim)

	status, body := e.do(t, "GET", "/api/checkout/premium", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "charge", body["branch"])
	assert.Empty(t, e.gateway.Created)

	status, body = e.do(t, "POST", "/api/stripe/subscriptions/premium", token, nil)
	require.Equal(t, fiber.StatusCreated, status)
	secret := body["clientSecret"]
	require.NotEmpty(t, secret)

	status, body = e.do(t, "POST", "/api/stripe/subscriptions/premium", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "complete_payment", body["branch"])
	assert.Equal(t, secret, body["clientSecret"])
	assert.Len(t, e.gateway.Created, 1)

	status, body = e.do(t, "GET", "/api/account/"+itoa(kim.ID), token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, secret, body["liveSubscription"].(map[string]interface{})["clientSecret"])
}

func TestCheckoutFailures(t *testing.T) {
	e := newTestEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", true)
	token := e.login(t, kim)

	status, body := e.do(t, "GET", "/api/checkout/gold", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Plan not found", body["error"])

	e.gateway.Fail = true
	status, body = e.do(t, "POST", "/api/stripe/subscriptions/standard", token, nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, controller.MsgTryAgain, body["error"])

	status, _ = e.do(t, "POST", "/api/stripe/subscriptions/standard", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestRemovePaymentMethod(t *testing.T) {
	e := newTestEnv(t)
	kim := testutil.SeedAccount(t, e.db, "kim", false)
	token := e.login(t, kim)
	e.gateway.AddCard("pm_kim", "", "visa", "4242")

	status, _ := e.do(t, "POST", "/api/account/payment-methods", token, map[string]string{"paymentMethodID": "pm_kim"})
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = e.do(t, "DELETE", "/api/account/payment-methods/pm_kim", token, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, []string{"pm_kim"}, e.gateway.Detached)

	status, _ = e.do(t, "DELETE", "/api/account/payment-methods/pm_kim", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestWebhookRoute(t *testing.T) {
	e := newTestEnv(t)
	testutil.SeedAccount(t, e.db, "kim", false)

	raw := `{"id":"pm_gone","object":"payment_method"}`
	e.gateway.Events["sig_ok"] = &billing.Event{ID: "evt_1", Type: service.EventPaymentMethodDetached, Raw: json.RawMessage(raw)}

	req := httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewBufferString(raw))
	req.Header.Set("Stripe-Signature", "sig_ok")
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/stripe/webhook", bytes.NewBufferString(raw))
	req.Header.Set("Stripe-Signature", "forged")
	resp, err = e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCatalogAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/plans", nil)
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var plans []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&plans))
	require.Len(t, plans, 2)
	assert.Equal(t, "standard", plans[0]["slug"])
	assert.Equal(t, "9.9", plans[0]["price"])

	resp, err = e.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	metricsBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), `route="/api/plans"`)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
