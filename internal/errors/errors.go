package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind is the failure class surfaced to the storefront.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindStockConflict      Kind = "STOCK_CONFLICT"
	KindNotFound           Kind = "NOT_FOUND"
	KindTransientNetwork   Kind = "TRANSIENT_NETWORK"
	KindPersistenceWarning Kind = "PERSISTENCE_WARNING"
	KindConflict           Kind = "CONFLICT"
	KindInternal           Kind = "INTERNAL"
)

type kindInfo struct {
	status    int
	retryable bool
	code      string
	message   string
}

var kinds = map[Kind]kindInfo{
	KindValidation:         {http.StatusBadRequest, false, ValidationInvalidInput, "Please check the highlighted fields"},
	KindStockConflict:      {http.StatusConflict, false, CartItemsChanged, "Some items in your cart changed, please review"},
	KindNotFound:           {http.StatusNotFound, false, ResourceNotFound, "The requested item could not be found"},
	KindTransientNetwork:   {http.StatusServiceUnavailable, true, InternalExternalAPI, "We could not reach the store, please try again"},
	KindPersistenceWarning: {http.StatusOK, true, InternalStorageError, "Your cart could not be saved"},
	KindConflict:           {http.StatusConflict, true, ResourceConflict, "The request conflicts with one already in progress"},
	KindInternal:           {http.StatusInternalServerError, false, InternalServerError, "Something went wrong, please try again later"},
}

func (k Kind) info() kindInfo {
	if info, ok := kinds[k]; ok {
		return info
	}
	return kinds[KindInternal]
}

// HTTPStatus returns the response status used for k.
func (k Kind) HTTPStatus() int { return k.info().status }

// Retryable reports whether a new user action may succeed without changes.
func (k Kind) Retryable() bool { return k.info().retryable }

// Error is a classified failure. Code defaults to the kind's code and message
// to the kind's public message.
type Error struct {
	kind    Kind
	code    string
	message string
	details map[string]interface{}
	cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, code, message string) *Error {
	info := kind.info()
	if code == "" {
		code = info.code
	}
	if message == "" {
		message = info.message
	}
	return &Error{kind: kind, code: code, message: message}
}

// Wrap classifies cause as kind, keeping it reachable through errors.Unwrap.
func Wrap(cause error, kind Kind, code, message string) *Error {
	e := New(kind, code, message)
	e.cause = cause
	return e
}

func Validation(message string, fields map[string]string) *Error {
	e := New(KindValidation, ValidationRequired, message)
	if len(fields) > 0 {
		e.details = map[string]interface{}{"fields": fields}
	}
	return e
}

func StockConflict(message string) *Error {
	return New(KindStockConflict, CartItemsChanged, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func TransientNetwork(cause error, message string) *Error {
	return Wrap(cause, KindTransientNetwork, InternalExternalAPI, message)
}

func PersistenceWarning(cause error) *Error {
	return Wrap(cause, KindPersistenceWarning, InternalStorageError, "")
}

func Internal(cause error) *Error {
	return Wrap(cause, KindInternal, InternalServerError, "")
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind                      { return e.kind }
func (e *Error) Code() string                    { return e.code }
func (e *Error) Message() string                 { return e.message }
func (e *Error) Retryable() bool                 { return e.kind.Retryable() }
func (e *Error) HTTPStatus() int                 { return e.kind.HTTPStatus() }
func (e *Error) Details() map[string]interface{} { return e.details }

// WithDetails returns a copy of e carrying the extra detail.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	clone := *e
	clone.details = make(map[string]interface{}, len(e.details)+1)
	for k, v := range e.details {
		clone.details[k] = v
	}
	clone.details[key] = value
	return &clone
}

// Is matches another *Error by kind and code so sentinels can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind && e.code == t.code
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return KindInternal
}
