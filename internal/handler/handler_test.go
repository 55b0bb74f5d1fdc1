package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackesh4086/spr-price-check/internal/audit"
	"github.com/jackesh4086/spr-price-check/internal/catalog"
	"github.com/jackesh4086/spr-price-check/internal/config"
	"github.com/jackesh4086/spr-price-check/internal/events"
	"github.com/jackesh4086/spr-price-check/internal/hashing"
	"github.com/jackesh4086/spr-price-check/internal/otp"
	"github.com/jackesh4086/spr-price-check/internal/ratelimit"
	"github.com/jackesh4086/spr-price-check/internal/service"
	"github.com/jackesh4086/spr-price-check/internal/store"
	"github.com/jackesh4086/spr-price-check/internal/token"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

type captureNotifier struct {
	mu       sync.Mutex
	fail     bool
	lastCode string
}

func (c *captureNotifier) SendCode(_ context.Context, _, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("delivery down")
	}
	c.lastCode = code
	return nil
}

type testServer struct {
	server   *httptest.Server
	notifier *captureNotifier
	password string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	kv := store.NewMemoryStore()
	t.Cleanup(kv.Close)

	notifier := &captureNotifier{}
	otpManager := otp.NewManager(kv, notifier)
	limiter := ratelimit.NewLimiter(kv)
	tokens := token.NewIssuer(
		"quote-secret-for-tests-0123456789abcdef",
		"admin-secret-for-tests-0123456789abcdef",
		0, 0)

	repo := catalog.NewStoreRepository(kv)
	cache := catalog.NewCache(repo, catalog.DefaultCacheTTL)
	catalogService := catalog.NewService(cache, repo)

	verificationService := service.NewVerificationService(otpManager, limiter, tokens,
		catalogService, audit.NewNoopSink(), events.NewNoopPublisher(), 0, 0, 0)

	hasher := hashing.NewHasher(&config.Config{
		Hashing: config.HashingConfig{
			Argon2MemoryCost:  8 * 1024,
			Argon2TimeCost:    1,
			Argon2Parallelism: 1,
		},
	})
	const password = "hunter2hunter2"
	passwordHash, err := hasher.HashPassword(password)
	require.NoError(t, err)
	adminService := service.NewAdminService(&config.AdminConfig{
		Username:     "admin",
		PasswordHash: passwordHash,
	}, hasher, tokens)

	verificationHandler := NewVerificationHandler(verificationService, catalogService, nil, false)
	adminHandler := NewAdminHandler(adminService, catalogService, nil)

	ts := httptest.NewServer(NewRouter(verificationHandler, adminHandler, util.Get()))
	t.Cleanup(ts.Close)

	return &testServer{server: ts, notifier: notifier, password: password}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": "admin",
		"password": ts.password,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope.Data.(map[string]interface{})
	return data["token"].(string)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.server.Client().Get(ts.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOTPFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/otp/request", map[string]string{
		"phone":   "0123456789",
		"modelId": "iphone-11",
		"issueId": "screen",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
	require.Len(t, ts.notifier.lastCode, 6)

	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/otp/verify", map[string]string{
		"phone": "0123456789",
		"code":  ts.notifier.lastCode,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, envelope.Success)

	data := envelope.Data.(map[string]interface{})
	quoteToken := data["quoteToken"].(string)
	require.NotEmpty(t, quoteToken)

	// The token is also set as a cookie.
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == quoteTokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, quoteToken, cookie.Value)

	resp, envelope = ts.do(t, http.MethodGet, "/api/v1/quote?token="+quoteToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	quote := envelope.Data.(map[string]interface{})
	assert.Equal(t, "RM 280", quote["display"])
}

func TestOTPRequestRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/otp/request", map[string]string{
		"phone": "0123456789",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/otp/request", map[string]string{
		"phone":   "0123456789",
		"modelId": "nokia-3310",
		"issueId": "screen",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOTPCooldownReturns429(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{
		"phone":   "0123456789",
		"modelId": "iphone-11",
		"issueId": "screen",
	}
	resp, _ := ts.do(t, http.MethodPost, "/api/v1/otp/request", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/otp/request", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, string(otp.KindCooldown), envelope.Error)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestVerifyWrongCodeOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/otp/request", map[string]string{
		"phone":   "0123456789",
		"modelId": "iphone-11",
		"issueId": "screen",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/otp/verify", map[string]string{
		"phone": "0123456789",
		"code":  "000000",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(otp.KindWrongCode), envelope.Error)
	assert.Equal(t, "Invalid code. 4 attempts remaining.", envelope.Message)
}

func TestQuoteRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/quote", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/quote?token=garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublicCatalog(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/catalog", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := envelope.Data.(map[string]interface{})
	assert.NotEmpty(t, data["models"])
	assert.NotEmpty(t, data["issues"])
}

func TestAdminLoginAndSession(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": "admin",
		"password": "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	sessionToken := ts.login(t)

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/admin/session", nil, map[string]string{
		"Authorization": "Bearer " + sessionToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, "admin", data["username"])
}

func TestAdminRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/admin/data", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/admin/models", map[string]string{
		"id": "iphone-14", "name": "iPhone 14", "brand": "apple",
	}, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminCatalogManagement(t *testing.T) {
	ts := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer " + ts.login(t)}

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/admin/models", map[string]string{
		"id": "iphone-14", "name": "iPhone 14", "brand": "apple",
	}, auth)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate id conflicts.
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/admin/models", map[string]string{
		"id": "iphone-14", "name": "iPhone 14", "brand": "apple",
	}, auth)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/admin/prices", map[string]interface{}{
		"modelId": "iphone-14", "issueId": "screen", "type": "fixed", "price": 399,
	}, auth)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/api/v1/admin/prices/iphone-14/screen", map[string]interface{}{
		"type": "fixed", "price": 420,
	}, auth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/admin/prices/iphone-14/screen", nil, auth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/admin/models/iphone-14", nil, auth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/admin/models/iphone-14", nil, auth)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPut, "/api/v1/admin/metadata", map[string]string{
		"disclaimer": "Prices are estimates.",
	}, auth)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}

func TestStoresWithoutSearchBackend(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/stores?q=kuala+lumpur", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)
}

func TestAdminStoreUpsert(t *testing.T) {
	ts := newTestServer(t)
	loc := map[string]string{
		"id":   "kl-central",
		"name": "SPR KL Central",
		"city": "Kuala Lumpur",
	}

	resp, _ := ts.do(t, http.MethodPut, "/api/v1/admin/stores", loc, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// No directory backend configured in tests.
	auth := map[string]string{"Authorization": "Bearer " + ts.login(t)}
	resp, _ = ts.do(t, http.MethodPut, "/api/v1/admin/stores", loc, auth)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
