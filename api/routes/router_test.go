package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	ordersvc "github.com/anvaya/commerce-backend/internal/orders"
	returnsvc "github.com/anvaya/commerce-backend/internal/returns"
	pkgauth "github.com/anvaya/commerce-backend/pkg/auth"
	"github.com/anvaya/commerce-backend/pkg/config"
	"github.com/anvaya/commerce-backend/pkg/db/models"
	"github.com/anvaya/commerce-backend/pkg/enums"
	"github.com/anvaya/commerce-backend/pkg/logger"
	"github.com/anvaya/commerce-backend/pkg/pagination"
	"github.com/anvaya/commerce-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) CreateOrder(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params, filters ordersvc.OrderFilters) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

func (stubOrdersService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) error {
	return nil
}

type stubReturnsService struct{}

func (stubReturnsService) CreateReturn(ctx context.Context, input returnsvc.CreateReturnInput) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{}, nil
}

func (stubReturnsService) GetReturn(ctx context.Context, userID uuid.UUID, isAdmin bool, returnID uuid.UUID) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{}, nil
}

func (stubReturnsService) ListReturns(ctx context.Context, filters returnsvc.ReturnFilters) ([]models.ReturnRequest, error) {
	return []models.ReturnRequest{}, nil
}

func (stubReturnsService) ListUserReturns(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error) {
	return []models.ReturnRequest{}, nil
}

func (stubReturnsService) UpdateReturnStatus(ctx context.Context, input returnsvc.UpdateReturnInput) (*models.ReturnRequest, error) {
	return &models.ReturnRequest{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:  "test",
			Port: "0",
		},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "anvaya-test",
			ExpirationMinutes: 15,
		},
		Razorpay: config.RazorpayConfig{
			WebhookSecret: "rzp_whsec_test",
		},
		Shiprocket: config.ShiprocketConfig{
			WebhookToken: "srk_token_test",
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		nil,
		nil,
		stubOrdersService{},
		stubReturnsService{},
		nil,
		nil,
		nil,
		nil,
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when missing token got %d", resp.Code)
	}

	authed := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	authed.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, authed)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for authed list got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestCustomerReturnsList(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/returns", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when missing token got %d", resp.Code)
	}

	authed := httptest.NewRequest(http.MethodGet, "/api/v1/returns", nil)
	authed.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, authed)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for customer returns list got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestPipelineRequiresStaffRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/staff/v1/pipeline", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when missing token got %d", resp.Code)
	}

	customer := httptest.NewRequest(http.MethodGet, "/api/staff/v1/pipeline", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}
}

func TestAdminReturnsRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	staff := httptest.NewRequest(http.MethodGet, "/api/admin/v1/returns", nil)
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleStaff))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, staff)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/returns", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestWebhookRejectsUnsignedPayload(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shiprocket", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated carrier webhook got %d", resp.Code)
	}
}
