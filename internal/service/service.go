// Package service реализует бизнес-логику сервиса витрины.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront-system/internal/auth"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// Максимальная длина текста рецензии в символах.
const maxReviewLength = 1500

// ErrValidation возвращается при некорректных или неполных входных данных.
var (
	ErrValidation = errors.New("invalid input")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, username, email string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	UpdateUserData(ctx context.Context, userID int64, street, apartment, city string) error
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash []byte) error
	DeleteUser(ctx context.Context, userID int64) error
	GetItem(ctx context.Context, itemID int64) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	CreateReview(ctx context.Context, review model.Review) error
	UpdateReview(ctx context.Context, review model.Review) error
	DeleteReview(ctx context.Context, userID, itemID int64) error
	ListReviews(ctx context.Context, itemID int64, requester *int64, filter, sortOrder string, offset int) (*model.Review, []model.Review, error)
	CreateOrder(ctx context.Context, userID int64, draft model.OrderDraft) (int64, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	GetStatuses(ctx context.Context, userID, orderID int64) ([]model.OrderStatus, error)
}

// Service содержит бизнес-логику сервиса витрины.
type Service struct {
	repo   Repository
	tokens *auth.TokenService
}

// NewService создаёт новый сервис с указанным репозиторием и сервисом токенов.
func NewService(repo Repository, tokens *auth.TokenService) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя и выпускает для него токен доступа.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string) (string, error) {
	if !validation.IsValidUsername(username) {
		return "", fmt.Errorf("%w: username", ErrValidation)
	}
	if !validation.IsValidEmail(email) {
		return "", fmt.Errorf("%w: email", ErrValidation)
	}
	if !validation.IsValidPassword(password) {
		return "", fmt.Errorf("%w: password", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.repo.CreateUser(ctx, username, email, hash)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Generate(userID, email)
	if err != nil {
		return "", err
	}

	return token, nil
}

// LoginUser проверяет учётные данные пользователя и выпускает токен доступа.
func (s *Service) LoginUser(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return "", nil, err
	}

	return token, u, nil
}

// GetUser возвращает профиль пользователя и обновлённый токен доступа.
func (s *Service) GetUser(ctx context.Context, userID int64) (string, *model.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Generate(u.ID, u.Email)
	if err != nil {
		return "", nil, err
	}

	return token, u, nil
}

// UpdateUserData обновляет адресные поля пользователя.
func (s *Service) UpdateUserData(ctx context.Context, userID int64, street, apartment, city string) error {
	return s.repo.UpdateUserData(ctx, userID, street, apartment, city)
}

// UpdateUserPassword меняет пароль пользователя после проверки старого.
func (s *Service) UpdateUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if !validation.IsValidPassword(newPassword) {
		return fmt.Errorf("%w: password", ErrValidation)
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdateUserPassword(ctx, userID, hash)
}

// DeleteUser удаляет пользователя вместе с его рецензиями.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	return s.repo.DeleteUser(ctx, userID)
}

// GetItem возвращает товар каталога по идентификатору.
func (s *Service) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	return s.repo.GetItem(ctx, itemID)
}

// ListItems возвращает все товары каталога.
func (s *Service) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.repo.ListItems(ctx)
}

// validateReview проверяет поля рецензии и разбирает присланную дату.
func validateReview(itemID int64, text string, rate int, date string) (time.Time, error) {
	if itemID == 0 {
		return time.Time{}, fmt.Errorf("%w: item_id", ErrValidation)
	}
	if rate < 1 || rate > 5 {
		return time.Time{}, fmt.Errorf("%w: rate", ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxReviewLength {
		return time.Time{}, fmt.Errorf("%w: text too long", ErrValidation)
	}
	if date == "" {
		return time.Time{}, fmt.Errorf("%w: date", ErrValidation)
	}
	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date", ErrValidation)
	}
	return parsed, nil
}

// SubmitReview добавляет рецензию пользователя на товар.
func (s *Service) SubmitReview(ctx context.Context, userID, itemID int64, text string, rate int, date string) error {
	parsed, err := validateReview(itemID, text, rate, date)
	if err != nil {
		return err
	}

	return s.repo.CreateReview(ctx, model.Review{
		UserID: userID,
		ItemID: itemID,
		Text:   text,
		Rate:   rate,
		Date:   parsed,
	})
}

// EditReview обновляет существующую рецензию пользователя на товар.
func (s *Service) EditReview(ctx context.Context, userID, itemID int64, text string, rate int, date string) error {
	parsed, err := validateReview(itemID, text, rate, date)
	if err != nil {
		return err
	}

	return s.repo.UpdateReview(ctx, model.Review{
		UserID: userID,
		ItemID: itemID,
		Text:   text,
		Rate:   rate,
		Date:   parsed,
	})
}

// DeleteReview удаляет рецензию пользователя на товар.
func (s *Service) DeleteReview(ctx context.Context, userID, itemID int64) error {
	return s.repo.DeleteReview(ctx, userID, itemID)
}

// ListReviews возвращает рецензию вызывающей стороны (для анонима её нет)
// и страницу рецензий остальных пользователей на товар.
func (s *Service) ListReviews(ctx context.Context, itemID int64, caller auth.Caller, filter, sortOrder string, offset int) (*model.Review, []model.Review, error) {
	if filter != "rate" && filter != "date" {
		return nil, nil, fmt.Errorf("%w: filter", ErrValidation)
	}
	if sortOrder != "asc" && sortOrder != "desc" {
		return nil, nil, fmt.Errorf("%w: sort", ErrValidation)
	}
	if offset < 0 {
		offset = 0
	}

	var requester *int64
	if identity, ok := caller.Identity(); ok {
		requester = &identity.UserID
	}

	return s.repo.ListReviews(ctx, itemID, requester, filter, sortOrder, offset)
}

// PlaceOrder проверяет присланный заказ и передаёт его на оформление.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, draft model.OrderDraft) (int64, error) {
	if draft.Apartment == "" || draft.Street == "" || draft.City == "" {
		return 0, fmt.Errorf("%w: address", ErrValidation)
	}
	if !validation.IsValidPayment(draft.Payment) {
		return 0, fmt.Errorf("%w: payment", ErrValidation)
	}
	if draft.Cost < 0 {
		return 0, fmt.Errorf("%w: cost must not be negative", ErrValidation)
	}
	if len(draft.Lines) == 0 {
		return 0, fmt.Errorf("%w: items", ErrValidation)
	}
	for _, line := range draft.Lines {
		if line.Quantity <= 0 {
			return 0, fmt.Errorf("%w: quantity", ErrValidation)
		}
	}

	return s.repo.CreateOrder(ctx, userID, draft)
}

// GetOrder возвращает заказ пользователя с позициями.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, userID, orderID)
}

// GetOrdersByUser возвращает все заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetStatuses возвращает историю статусов заказа пользователя, новые первыми.
func (s *Service) GetStatuses(ctx context.Context, userID, orderID int64) ([]model.OrderStatus, error) {
	return s.repo.GetStatuses(ctx, userID, orderID)
}
