package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied       = errors.New("permission denied")
	ErrMissingTenant          = errors.New("missing tenant")
	ErrUnknownTool            = errors.New("unknown tool")
	ErrTableNotFound          = errors.New("table not found")
	ErrTableUnavailable       = errors.New("table unavailable")
	ErrItemNotFound           = errors.New("item not found")
	ErrItemUnavailable        = errors.New("item unavailable")
	ErrOrderNotFound          = errors.New("order not found")
	ErrOrderClosed            = errors.New("order closed")
	ErrInvalidCancellation    = errors.New("invalid cancellation")
	ErrAlreadyCompleted       = errors.New("already completed")
	ErrCannotBillCancelled    = errors.New("cannot bill cancelled order")
	ErrSessionNotFound        = errors.New("session not found")
	ErrTransientStoreConflict = errors.New("transient store conflict")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrQuotaExceeded          = errors.New("quota exceeded")
)

var codes = []struct {
	kind error
	code string
}{
	{ErrPermissionDenied, "PermissionDenied"},
	{ErrMissingTenant, "MissingTenant"},
	{ErrUnknownTool, "UnknownTool"},
	{ErrTableNotFound, "TableNotFound"},
	{ErrTableUnavailable, "TableUnavailable"},
	{ErrItemNotFound, "ItemNotFound"},
	{ErrItemUnavailable, "ItemUnavailable"},
	{ErrOrderNotFound, "OrderNotFound"},
	{ErrOrderClosed, "OrderClosed"},
	{ErrInvalidCancellation, "InvalidCancellation"},
	{ErrAlreadyCompleted, "AlreadyCompleted"},
	{ErrCannotBillCancelled, "CannotBillCancelled"},
	{ErrSessionNotFound, "SessionNotFound"},
	{ErrTransientStoreConflict, "TransientStoreConflict"},
	{ErrInvalidArgument, "InvalidArgument"},
	{ErrQuotaExceeded, "QuotaExceeded"},
}

// Error is a business failure whose Message reads naturally when spoken.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// CodeOf names the taxonomy entry err belongs to, or "Internal".
func CodeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return "Internal"
}
