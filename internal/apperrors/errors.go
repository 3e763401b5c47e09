package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per failure kind of the checkout workflow.
var (
	ErrCatalogLoad       = errors.New("catalog load failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoClientSelected  = errors.New("no client selected")
	ErrValidation        = errors.New("validation failed")
	ErrAuth              = errors.New("authentication failed")
	ErrServer            = errors.New("server error")
	ErrReceiptGeneration = errors.New("receipt generation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrSaleInProgress    = errors.New("sale submission in progress")
)

// AppError is a structured error carrying its kind (Err), an optional
// underlying cause and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// CatalogLoad creates a 503 error for a failed product listing fetch.
func CatalogLoad(cause error) *AppError {
	return &AppError{
		Code:    "CATALOG_LOAD_FAILED",
		Message: "the product catalog could not be loaded, please retry",
		Status:  http.StatusServiceUnavailable,
		Err:     ErrCatalogLoad,
		Cause:   cause,
	}
}

// CatalogNotReady creates a 503 error for operations attempted before a successful load.
func CatalogNotReady() *AppError {
	return &AppError{
		Code:    "CATALOG_NOT_READY",
		Message: "the product catalog is not loaded, reload it before selling",
		Status:  http.StatusServiceUnavailable,
		Err:     ErrCatalogLoad,
	}
}

// InsufficientStock creates a 409 error for a reservation that exceeds availability.
func InsufficientStock(itemID int64, requested, available int) *AppError {
	return &AppError{
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("item %d: requested %d, available %d", itemID, requested, available),
		Status:  http.StatusConflict,
		Err:     ErrInsufficientStock,
	}
}

// EmptyCart creates a 422 error for finalizing an empty cart.
func EmptyCart() *AppError {
	return &AppError{
		Code:    "EMPTY_CART",
		Message: "add products to the cart before finalizing the sale",
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrEmptyCart,
	}
}

// NoClientSelected creates a 422 error for finalizing without a purchaser.
func NoClientSelected() *AppError {
	return &AppError{
		Code:    "NO_CLIENT_SELECTED",
		Message: "select a client before finalizing the sale",
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrNoClientSelected,
	}
}

// Validation creates a 400 error for malformed or rejected input.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Auth creates a 401 error for an expired or invalid credential.
func Auth(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrAuth,
	}
}

// Server creates a 502 error for an unexpected backend failure.
func Server(message string, cause error) *AppError {
	return &AppError{
		Code:    "SERVER_ERROR",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrServer,
		Cause:   cause,
	}
}

// AmbiguousSubmission creates a 504 error for a sale whose outcome is unknown.
func AmbiguousSubmission(cause error) *AppError {
	return &AppError{
		Code:    "SALE_OUTCOME_UNKNOWN",
		Message: "the sale submission timed out; check the sales history before retrying",
		Status:  http.StatusGatewayTimeout,
		Err:     ErrServer,
		Cause:   cause,
	}
}

// ReceiptGeneration creates an error for a receipt that could not be rendered.
func ReceiptGeneration(cause error) *AppError {
	return &AppError{
		Code:    "RECEIPT_GENERATION_FAILED",
		Message: "the sale was registered but its receipt could not be produced",
		Status:  http.StatusInternalServerError,
		Err:     ErrReceiptGeneration,
		Cause:   cause,
	}
}

// NotFound creates a 404 error.
func NotFound(resource string, id any) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %v not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// SaleInProgress creates a 409 error for actions attempted while a sale is being submitted.
func SaleInProgress() *AppError {
	return &AppError{
		Code:    "SALE_IN_PROGRESS",
		Message: "a sale is being submitted for this checkout",
		Status:  http.StatusConflict,
		Err:     ErrSaleInProgress,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrSaleInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNoClientSelected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCatalogLoad):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable code of err, or INTERNAL_ERROR.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an internal error occurred"
}
