package response

import "net/http"

// APIResponseCode is the envelope code; HTTPStatus maps it to a status line.
type APIResponseCode int

const (
	APIResponseCodeOK           APIResponseCode = 0
	APIResponseCodeBadRequest   APIResponseCode = 40000
	APIResponseCodeUnauthorized APIResponseCode = 40100
	APIResponseCodeForbidden    APIResponseCode = 40300
	APIResponseCodeNotFound     APIResponseCode = 40400
	APIResponseCodeConflict     APIResponseCode = 40900
	APIResponseCodeError        APIResponseCode = 50000
	APIResponseCodeUnavailable  APIResponseCode = 50300
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:           "ok",
	APIResponseCodeBadRequest:   "bad request",
	APIResponseCodeUnauthorized: "unauthorized",
	APIResponseCodeForbidden:    "forbidden",
	APIResponseCodeNotFound:     "not found",
	APIResponseCodeConflict:     "conflict",
	APIResponseCodeError:        "unexpected error",
	APIResponseCodeUnavailable:  "service unavailable",
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// Fail returns an error envelope carrying a caller-facing message.
func Fail(code APIResponseCode, message string) *APIResponse[any] {
	if message == "" {
		message = codeToMsg[code]
	}
	return &APIResponse[any]{Code: code, Message: message}
}

// HTTPStatus maps an envelope code to the HTTP status it is sent with.
func (c APIResponseCode) HTTPStatus() int {
	switch c {
	case APIResponseCodeOK:
		return http.StatusOK
	case APIResponseCodeBadRequest:
		return http.StatusBadRequest
	case APIResponseCodeUnauthorized:
		return http.StatusUnauthorized
	case APIResponseCodeForbidden:
		return http.StatusForbidden
	case APIResponseCodeNotFound:
		return http.StatusNotFound
	case APIResponseCodeConflict:
		return http.StatusConflict
	case APIResponseCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
