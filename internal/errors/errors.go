package errors

import (
	"errors"
	"fmt"

	"github.com/dolaglobo/mmf-ledger/internal/models"
)

// Domain error taxonomy for the ledger. Every operation boundary returns one
// of these kinds; the handler layer maps them to HTTP statuses.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrStatementNotFound   = errors.New("statement request not found")
	ErrPhoneAlreadyUsed    = errors.New("phone number already registered")
	ErrEmailAlreadyUsed    = errors.New("email already registered")
	ErrInsufficientFunds   = errors.New("insufficient balance")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnauthorized        = errors.New("caller is not allowed to perform this operation")
	ErrConflict            = errors.New("transition already applied")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError reports a status change that is not defined for the
// transaction's type and current status.
type InvalidTransitionError struct {
	Type models.TransactionType
	From models.TransactionStatus
	To   models.TransactionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s transaction: %s -> %s", e.Type, e.From, e.To)
}

func NewInvalidTransitionError(typ models.TransactionType, from, to models.TransactionStatus) error {
	return &InvalidTransitionError{Type: typ, From: from, To: to}
}

// StoreError wraps a storage failure with the operation that hit it.
type StoreError struct {
	Operation string
	Cause     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during '%s': %v", e.Operation, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

func NewStoreError(operation string, cause error) error {
	return &StoreError{Operation: operation, Cause: cause}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrStatementNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrPhoneAlreadyUsed) || errors.Is(err, ErrEmailAlreadyUsed)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidCredentials)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func IsInvalidTransition(err error) bool {
	var transitionErr *InvalidTransitionError
	return errors.As(err, &transitionErr)
}
