package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/auth"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

type stubService struct {
	registerToken string
	registerErr   error

	loginToken string
	loginUser  *model.User
	loginErr   error

	item    *model.Item
	itemErr error

	items []model.Item

	submitReviewErr error

	userReview  *model.Review
	itemReviews []model.Review
	listErr     error
	listCaller  auth.Caller

	orderID       int64
	placeOrderErr error

	orders []model.Order
}

func (s *stubService) RegisterUser(ctx context.Context, username, email, password string) (string, error) {
	return s.registerToken, s.registerErr
}

func (s *stubService) LoginUser(ctx context.Context, email, password string) (string, *model.User, error) {
	return s.loginToken, s.loginUser, s.loginErr
}

func (s *stubService) GetUser(ctx context.Context, userID int64) (string, *model.User, error) {
	return s.loginToken, s.loginUser, s.loginErr
}

func (s *stubService) UpdateUserData(ctx context.Context, userID int64, street, apartment, city string) error {
	return nil
}

func (s *stubService) UpdateUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	return nil
}

func (s *stubService) DeleteUser(ctx context.Context, userID int64) error { return nil }

func (s *stubService) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	return s.item, s.itemErr
}

func (s *stubService) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.items, nil
}

func (s *stubService) SubmitReview(ctx context.Context, userID, itemID int64, text string, rate int, date string) error {
	return s.submitReviewErr
}

func (s *stubService) EditReview(ctx context.Context, userID, itemID int64, text string, rate int, date string) error {
	return nil
}

func (s *stubService) DeleteReview(ctx context.Context, userID, itemID int64) error { return nil }

func (s *stubService) ListReviews(ctx context.Context, itemID int64, caller auth.Caller, filter, sortOrder string, offset int) (*model.Review, []model.Review, error) {
	s.listCaller = caller
	return s.userReview, s.itemReviews, s.listErr
}

func (s *stubService) PlaceOrder(ctx context.Context, userID int64, draft model.OrderDraft) (int64, error) {
	return s.orderID, s.placeOrderErr
}

func (s *stubService) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	return nil, repository.ErrOrderNotFound
}

func (s *stubService) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.orders, nil
}

func (s *stubService) GetStatuses(ctx context.Context, userID, orderID int64) ([]model.OrderStatus, error) {
	return nil, nil
}

func newTestServer(t *testing.T, svc Service) (*httptest.Server, *auth.TokenService) {
	t.Helper()

	tokens := auth.NewTokenService("test-secret")
	h := NewHandler(svc, zap.NewNop(), middleware.NewAuth(tokens))

	srv := httptest.NewServer(h.SetupRouter())
	t.Cleanup(srv.Close)

	return srv, tokens
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestRegisterUser(t *testing.T) {
	svc := &stubService{registerToken: "issued-token"}
	srv, _ := newTestServer(t, svc)

	resp := doJSON(t, http.MethodPost, srv.URL+"/register-user", "", map[string]string{
		"username": "janek",
		"email":    "jan@example.com",
		"password": "Haslo123!",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["token"] != "issued-token" {
		t.Fatalf("token = %q, want %q", body["token"], "issued-token")
	}
}

func TestRegisterUser_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrEmailTaken}
	srv, _ := newTestServer(t, svc)

	resp := doJSON(t, http.MethodPost, srv.URL+"/register-user", "", map[string]string{
		"username": "janek",
		"email":    "jan@example.com",
		"password": "Haslo123!",
	})

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestLoginUser_InvalidCredentials(t *testing.T) {
	svc := &stubService{loginErr: service.ErrInvalidCredentials}
	srv, _ := newTestServer(t, svc)

	resp := doJSON(t, http.MethodPost, srv.URL+"/login-user", "", map[string]string{
		"email":    "jan@example.com",
		"password": "Wrong1!",
	})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestLoginUser(t *testing.T) {
	svc := &stubService{
		loginToken: "issued-token",
		loginUser:  &model.User{ID: 5, Username: "janek", Email: "jan@example.com"},
	}
	srv, _ := newTestServer(t, svc)

	resp := doJSON(t, http.MethodPost, srv.URL+"/login-user", "", map[string]string{
		"email":    "jan@example.com",
		"password": "Haslo123!",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Token string      `json:"token"`
		User  *model.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Token != "issued-token" {
		t.Fatalf("token = %q, want %q", body.Token, "issued-token")
	}
	if body.User == nil || body.User.ID != 5 {
		t.Fatalf("unexpected user: %+v", body.User)
	}
}

func TestPostReview_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/review", "", map[string]any{
		"item_id": 9,
		"text":    "ok",
		"rate":    5,
		"date":    time.Now().Format(time.RFC3339),
	})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestPostReview_Duplicate(t *testing.T) {
	svc := &stubService{submitReviewErr: repository.ErrReviewExists}
	srv, tokens := newTestServer(t, svc)

	token, err := tokens.Generate(5, "jan@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/review", token, map[string]any{
		"item_id": 9,
		"text":    "ok",
		"rate":    5,
		"date":    time.Now().Format(time.RFC3339),
	})

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestGetItemReviews_Anonymous(t *testing.T) {
	svc := &stubService{}
	srv, _ := newTestServer(t, svc)

	resp := doJSON(t, http.MethodGet, srv.URL+"/item-reviews?item_id=9", "", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		UserReview  *model.Review  `json:"userReview"`
		ItemReviews []model.Review `json:"itemReviews"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.UserReview != nil {
		t.Fatalf("userReview = %+v, want nil", body.UserReview)
	}
	if body.ItemReviews == nil {
		t.Fatalf("itemReviews is null, want empty array")
	}

	if _, ok := svc.listCaller.Identity(); ok {
		t.Fatalf("anonymous request reached service with an identity")
	}
}

func TestGetItemReviews_Authenticated(t *testing.T) {
	svc := &stubService{
		userReview: &model.Review{ID: 1, UserID: 5, ItemID: 9, Rate: 4},
	}
	srv, tokens := newTestServer(t, svc)

	token, err := tokens.Generate(5, "jan@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/item-reviews?item_id=9", token, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	identity, ok := svc.listCaller.Identity()
	if !ok || identity.UserID != 5 {
		t.Fatalf("caller identity = %+v ok=%v, want user 5", identity, ok)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	svc := &stubService{itemErr: repository.ErrItemNotFound}
	srv, _ := newTestServer(t, svc)

	resp := doJSON(t, http.MethodGet, srv.URL+"/item?item_id=404", "", nil)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestGetItems_Empty(t *testing.T) {
	srv, _ := newTestServer(t, &stubService{})

	resp := doJSON(t, http.MethodGet, srv.URL+"/items", "", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var items []model.Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if items == nil {
		t.Fatalf("items is null, want empty array")
	}
}

func TestPostOrder(t *testing.T) {
	svc := &stubService{orderID: 77}
	srv, tokens := newTestServer(t, svc)

	token, err := tokens.Generate(5, "jan@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/order", token, map[string]any{
		"items": []map[string]any{
			{"item": map[string]any{"item_id": 1, "cost": 1000}, "quantity": 2},
		},
		"apartment": "12",
		"street":    "Polna",
		"city":      "Warszawa",
		"payment":   "card",
		"cost":      2000,
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["order_id"] != 77 {
		t.Fatalf("order_id = %d, want 77", body["order_id"])
	}
}

func TestPostOrder_PriceMismatch(t *testing.T) {
	svc := &stubService{placeOrderErr: repository.ErrPriceMismatch}
	srv, tokens := newTestServer(t, svc)

	token, err := tokens.Generate(5, "jan@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/order", token, map[string]any{
		"items": []map[string]any{
			{"item": map[string]any{"item_id": 1, "cost": 900}, "quantity": 2},
		},
		"apartment": "12",
		"street":    "Polna",
		"city":      "Warszawa",
		"payment":   "card",
		"cost":      1800,
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestGetOrders_Empty(t *testing.T) {
	srv, tokens := newTestServer(t, &stubService{})

	token, err := tokens.Generate(5, "jan@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/orders", token, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var orders []model.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if orders == nil {
		t.Fatalf("orders is null, want empty array")
	}
}
