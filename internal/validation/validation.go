// Package validation содержит функции валидации входных данных.
package validation

import (
	"regexp"

	"github.com/mmeshcher/storefront-system/internal/model"
)

var (
	usernamePattern = regexp.MustCompile(`^[^\s]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*(\.[a-zA-Z][a-zA-Z0-9]*)*@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasDigit   = regexp.MustCompile(`\d`)
	hasSpecial = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// IsValidUsername проверяет имя пользователя: без пробелов, от 3 до 20 символов.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// IsValidEmail проверяет формат адреса электронной почты.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPassword проверяет, что пароль содержит заглавную и строчную буквы,
// цифру и специальный символ.
func IsValidPassword(password string) bool {
	return hasUpper.MatchString(password) &&
		hasLower.MatchString(password) &&
		hasDigit.MatchString(password) &&
		hasSpecial.MatchString(password)
}

// IsValidPayment проверяет, что способ оплаты входит в поддерживаемый набор.
func IsValidPayment(payment string) bool {
	return payment == model.PaymentCard || payment == model.PaymentBlik
}
