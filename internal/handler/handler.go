// Package handler содержит HTTP-обработчики API сервиса витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/auth"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, email, password string) (string, error)
	LoginUser(ctx context.Context, email, password string) (string, *model.User, error)
	GetUser(ctx context.Context, userID int64) (string, *model.User, error)
	UpdateUserData(ctx context.Context, userID int64, street, apartment, city string) error
	UpdateUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	DeleteUser(ctx context.Context, userID int64) error
	GetItem(ctx context.Context, itemID int64) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	SubmitReview(ctx context.Context, userID, itemID int64, text string, rate int, date string) error
	EditReview(ctx context.Context, userID, itemID int64, text string, rate int, date string) error
	DeleteReview(ctx context.Context, userID, itemID int64) error
	ListReviews(ctx context.Context, itemID int64, caller auth.Caller, filter, sortOrder string, offset int) (*model.Review, []model.Review, error)
	PlaceOrder(ctx context.Context, userID int64, draft model.OrderDraft) (int64, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetStatuses(ctx context.Context, userID, orderID int64) ([]model.OrderStatus, error)
}

// Handler реализует HTTP-обработчики API сервиса витрины.
type Handler struct {
	service Service
	logger  *zap.Logger
	auth    *middleware.Auth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.Auth) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		auth:    auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// serverError логирует внутреннюю ошибку и возвращает клиенту общий ответ
// без деталей хранилища.
func (h *Handler) serverError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	writeMessage(w, http.StatusInternalServerError, "internal server error")
}

// identity извлекает аутентифицированную личность из контекста запроса.
func identity(r *http.Request) (auth.Identity, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return auth.Identity{}, false
	}
	return caller.Identity()
}

func queryInt64(r *http.Request, name string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser обрабатывает регистрацию нового пользователя.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "missing user data")
		return
	}

	token, err := h.service.RegisterUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrEmailTaken), errors.Is(err, repository.ErrUsernameTaken):
			writeMessage(w, http.StatusConflict, err.Error())
		default:
			h.serverError(w, "register user error", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// LoginUser выполняет аутентификацию пользователя и выпускает токен доступа.
func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "missing credentials")
		return
	}

	token, user, err := h.service.LoginUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.serverError(w, "login user error", err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Token: token, User: user})
}

// GetUser возвращает профиль текущего пользователя и обновлённый токен.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	token, user, err := h.service.GetUser(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		h.serverError(w, "get user error", err, zap.Int64("userID", id.UserID))
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Token: token, User: user})
}

type userDataRequest struct {
	Street    string `json:"street"`
	Apartment string `json:"apartment"`
	City      string `json:"city"`
}

// PatchUserData обновляет адресные поля текущего пользователя.
func (h *Handler) PatchUserData(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req userDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateUserData(r.Context(), id.UserID, req.Street, req.Apartment, req.City); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		h.serverError(w, "update user data error", err, zap.Int64("userID", id.UserID))
		return
	}

	writeMessage(w, http.StatusOK, "user data updated")
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// PatchUserPassword меняет пароль текущего пользователя.
func (h *Handler) PatchUserPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req passwordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.UpdateUserPassword(r.Context(), id.UserID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			writeMessage(w, http.StatusBadRequest, "wrong password")
		case errors.Is(err, repository.ErrUserNotFound):
			writeMessage(w, http.StatusNotFound, "user not found")
		default:
			h.serverError(w, "update password error", err, zap.Int64("userID", id.UserID))
		}
		return
	}

	writeMessage(w, http.StatusOK, "password updated")
}

// DeleteUser удаляет аккаунт текущего пользователя вместе с его рецензиями.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.DeleteUser(r.Context(), id.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		h.serverError(w, "delete user error", err, zap.Int64("userID", id.UserID))
		return
	}

	writeMessage(w, http.StatusOK, "user deleted")
}

// GetItem возвращает товар каталога по идентификатору.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := queryInt64(r, "item_id")
	if itemID == 0 {
		writeMessage(w, http.StatusBadRequest, "missing item id")
		return
	}

	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			writeMessage(w, http.StatusNotFound, "item not found")
			return
		}
		h.serverError(w, "get item error", err, zap.Int64("itemID", itemID))
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// GetItems возвращает все товары каталога.
func (h *Handler) GetItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.serverError(w, "list items error", err)
		return
	}

	if items == nil {
		items = []model.Item{}
	}

	writeJSON(w, http.StatusOK, items)
}

type itemReviewsResponse struct {
	UserReview  *model.Review  `json:"userReview"`
	ItemReviews []model.Review `json:"itemReviews"`
}

// GetItemReviews возвращает рецензии на товар: собственную рецензию
// вызывающей стороны отдельно от страницы остальных.
func (h *Handler) GetItemReviews(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		caller = auth.Anonymous()
	}

	itemID := queryInt64(r, "item_id")
	if itemID == 0 {
		writeMessage(w, http.StatusBadRequest, "missing item id")
		return
	}

	filter := r.URL.Query().Get("filter")
	if filter == "" {
		filter = "date"
	}
	sortOrder := r.URL.Query().Get("sort")
	if sortOrder == "" {
		sortOrder = "desc"
	}
	offset := int(queryInt64(r, "offset"))

	userReview, reviews, err := h.service.ListReviews(r.Context(), itemID, caller, filter, sortOrder, offset)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		h.serverError(w, "list reviews error", err, zap.Int64("itemID", itemID))
		return
	}

	if reviews == nil {
		reviews = []model.Review{}
	}

	writeJSON(w, http.StatusOK, itemReviewsResponse{UserReview: userReview, ItemReviews: reviews})
}

type reviewRequest struct {
	ItemID int64  `json:"item_id"`
	Text   string `json:"text"`
	Rate   int    `json:"rate"`
	Date   string `json:"date"`
}

// PostReview добавляет рецензию текущего пользователя на товар.
func (h *Handler) PostReview(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.SubmitReview(r.Context(), id.UserID, req.ItemID, req.Text, req.Rate, req.Date)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrReviewExists):
			writeMessage(w, http.StatusConflict, "review already exists")
		case errors.Is(err, repository.ErrItemNotFound):
			writeMessage(w, http.StatusNotFound, "item not found")
		default:
			h.serverError(w, "submit review error", err, zap.Int64("userID", id.UserID), zap.Int64("itemID", req.ItemID))
		}
		return
	}

	writeMessage(w, http.StatusCreated, "review added")
}

// PatchReview обновляет рецензию текущего пользователя на товар.
func (h *Handler) PatchReview(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.EditReview(r.Context(), id.UserID, req.ItemID, req.Text, req.Rate, req.Date)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeMessage(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrReviewNotFound):
			writeMessage(w, http.StatusNotFound, "review not found")
		case errors.Is(err, repository.ErrItemNotFound):
			writeMessage(w, http.StatusNotFound, "item not found")
		default:
			h.serverError(w, "edit review error", err, zap.Int64("userID", id.UserID), zap.Int64("itemID", req.ItemID))
		}
		return
	}

	writeMessage(w, http.StatusOK, "review updated")
}

// DeleteReview удаляет рецензию текущего пользователя на товар.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	itemID := queryInt64(r, "item_id")
	if itemID == 0 {
		writeMessage(w, http.StatusBadRequest, "missing item id")
		return
	}

	if err := h.service.DeleteReview(r.Context(), id.UserID, itemID); err != nil {
		switch {
		case errors.Is(err, repository.ErrReviewNotFound):
			writeMessage(w, http.StatusNotFound, "review not found")
		case errors.Is(err, repository.ErrItemNotFound):
			writeMessage(w, http.StatusNotFound, "item not found")
		default:
			h.serverError(w, "delete review error", err, zap.Int64("userID", id.UserID), zap.Int64("itemID", itemID))
		}
		return
	}

	writeMessage(w, http.StatusOK, "review deleted")
}

type orderLineRequest struct {
	Item struct {
		ItemID int64 `json:"item_id"`
		Cost   int64 `json:"cost"`
	} `json:"item"`
	Quantity int `json:"quantity"`
}

type orderRequest struct {
	Items     []orderLineRequest `json:"items"`
	Apartment string             `json:"apartment"`
	Street    string             `json:"street"`
	City      string             `json:"city"`
	Payment   string             `json:"payment"`
	Cost      int64              `json:"cost"`
}

// PostOrder оформляет заказ текущего пользователя.
func (h *Handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft := model.OrderDraft{
		Apartment: req.Apartment,
		Street:    req.Street,
		City:      req.City,
		Payment:   req.Payment,
		Cost:      req.Cost,
	}
	for _, line := range req.Items {
		draft.Lines = append(draft.Lines, model.DraftLine{
			ItemID:   line.Item.ItemID,
			Cost:     line.Item.Cost,
			Quantity: line.Quantity,
		})
	}

	orderID, err := h.service.PlaceOrder(r.Context(), id.UserID, draft)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation),
			errors.Is(err, repository.ErrItemNotFound),
			errors.Is(err, repository.ErrPriceMismatch),
			errors.Is(err, repository.ErrTotalMismatch):
			writeMessage(w, http.StatusBadRequest, err.Error())
		default:
			h.serverError(w, "place order error", err, zap.Int64("userID", id.UserID))
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"order_id": orderID})
}

// GetOrder возвращает заказ текущего пользователя с позициями.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID := queryInt64(r, "order_id")
	if orderID == 0 {
		writeMessage(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.UserID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			writeMessage(w, http.StatusNotFound, "order not found")
			return
		}
		h.serverError(w, "get order error", err, zap.Int64("userID", id.UserID), zap.Int64("orderID", orderID))
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// GetOrders возвращает все заказы текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), id.UserID)
	if err != nil {
		h.serverError(w, "get orders error", err, zap.Int64("userID", id.UserID))
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetStatuses возвращает историю статусов заказа текущего пользователя.
func (h *Handler) GetStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID := queryInt64(r, "order_id")
	if orderID == 0 {
		writeMessage(w, http.StatusBadRequest, "missing order id")
		return
	}

	statuses, err := h.service.GetStatuses(r.Context(), id.UserID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			writeMessage(w, http.StatusNotFound, "order not found")
			return
		}
		h.serverError(w, "get statuses error", err, zap.Int64("userID", id.UserID), zap.Int64("orderID", orderID))
		return
	}

	if statuses == nil {
		statuses = []model.OrderStatus{}
	}

	writeJSON(w, http.StatusOK, statuses)
}
