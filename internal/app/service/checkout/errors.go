package checkout

import (
	"errors"
	"fmt"

	"github.com/fatflowers/checkout/pkg/response"
)

type Kind string

const (
	KindInvalid        Kind = "invalid"
	KindNotFound       Kind = "not_found"
	KindMethodDisabled Kind = "method_disabled"
	KindMisconfigured  Kind = "misconfigured"
	KindFraud          Kind = "fraud"
	KindProvider       Kind = "provider"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
)

const (
	msgFraud    = "pagamento nao autorizado"
	msgProvider = "nao foi possivel processar o pagamento, tente novamente"
)

// Error is what checkout operations return to handlers. Message is safe to
// show to buyers; Err holds the cause for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Code maps the kind to the response envelope code, which also decides the
// HTTP status.
func (k Kind) Code() response.APIResponseCode {
	switch k {
	case KindInvalid, KindMethodDisabled, KindFraud:
		return response.APIResponseCodeBadRequest
	case KindNotFound:
		return response.APIResponseCodeNotFound
	case KindForbidden:
		return response.APIResponseCodeForbidden
	case KindConflict:
		return response.APIResponseCodeConflict
	default:
		return response.APIResponseCodeError
	}
}

// AsError unwraps a checkout error. Anything else is reported as a generic
// provider failure.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindProvider, Message: msgProvider, Err: err}
}

func invalid(msg string) *Error { return &Error{Kind: KindInvalid, Message: msg} }

func notFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func provider(err error) *Error { return &Error{Kind: KindProvider, Message: msgProvider, Err: err} }

func misconfigured(gateway string, err error) *Error {
	return &Error{
		Kind:    KindMisconfigured,
		Message: fmt.Sprintf("pagamento via %s indisponivel, entre em contato com o vendedor", gateway),
		Err:     err,
	}
}
