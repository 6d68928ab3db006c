package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodePaymentGateway    ErrorCode = "PAYMENT_GATEWAY_ERROR"
	ErrCodePayout            ErrorCode = "PAYOUT_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is позволяет сравнивать обёрнутые AppError через errors.Is по коду.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if !errors.As(target, &appErr) {
		return false
	}
	return e.Code == appErr.Code && e.Message == appErr.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodePaymentGateway, ErrCodePayout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrGigNotFound     = New(ErrCodeNotFound, "объявление не найдено")
	ErrProjectNotFound = New(ErrCodeNotFound, "проект не найден")
	ErrDisputeNotFound = New(ErrCodeNotFound, "спор не найден")
	ErrUnauthorized    = New(ErrCodeUnauthorized, "требуется авторизация")

	// Ошибки жизненного цикла
	ErrInvalidTransition = New(ErrCodeInvalidTransition, "недопустимый переход статуса")
	ErrNotAuthorized     = New(ErrCodeForbidden, "вы не участник этой сделки")
	ErrAlreadyMatched    = New(ErrCodeConflict, "это объявление уже занято")
	ErrAlreadyRated      = New(ErrCodeConflict, "вы уже оценили этот проект")

	// Ошибки споров
	ErrProjectNotDisputable = New(ErrCodeConflict, "по этому проекту нельзя открыть спор")
	ErrDisputeAlreadyOpen   = New(ErrCodeConflict, "по проекту уже открыт спор")
	ErrDisputeClosed        = New(ErrCodeConflict, "спор уже закрыт")

	// Ошибки внешних провайдеров. Клиенту отдаётся общий текст,
	// детали шлюза остаются в логах.
	ErrPaymentGateway = New(ErrCodePaymentGateway, "платёж не удалось обработать, попробуйте позже")
	ErrPayout         = New(ErrCodePayout, "выплата временно недоступна")
)
