package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeMalformed         ErrorCode = "MALFORMED"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
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

// Is сравнивает ошибки по коду, чтобы errors.Is(err, ErrForbidden) работал
// и для ошибок с уточнённым сообщением.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
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

// Internal оборачивает непредвиденную ошибку, не раскрывая детали клиенту.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidState, ErrCodeInsufficientFunds, ErrCodeMalformed, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// From извлекает AppError из цепочки ошибок.
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	if appErr, ok := From(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

var (
	ErrUnauthenticated   = New(ErrCodeUnauthenticated, "требуется авторизация")
	ErrInvalidSignature  = New(ErrCodeUnauthenticated, "подпись данных Telegram не прошла проверку")
	ErrSessionExpired    = New(ErrCodeUnauthenticated, "сессия истекла, войдите заново")
	ErrForbidden         = New(ErrCodeForbidden, "недостаточно прав")
	ErrUserNotFound      = New(ErrCodeNotFound, "пользователь не найден")
	ErrListingNotFound   = New(ErrCodeNotFound, "объявление не найдено")
	ErrFriendNotFound    = New(ErrCodeNotFound, "заявка в друзья не найдена")
	ErrSessionNotFound   = New(ErrCodeNotFound, "сессия не найдена")
	ErrInvalidState      = New(ErrCodeInvalidState, "действие недоступно в текущем статусе объявления")
	ErrInsufficientFunds = New(ErrCodeInsufficientFunds, "недостаточно часов на балансе")
	ErrFriendExists      = New(ErrCodeConflict, "заявка в друзья уже существует")
	ErrMalformedInitData = New(ErrCodeMalformed, "некорректные данные авторизации Telegram")
)
