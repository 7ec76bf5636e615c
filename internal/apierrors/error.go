package apierrors

import (
	"encoding/json"
	"strconv"
)

// ApiError is an application error as carried in a response envelope.
type ApiError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

var _ error = (*ApiError)(nil)

// New returns an ApiError. An empty msg takes the code's canonical message.
func New(code Code, msg string) *ApiError {
	if msg == "" {
		msg = code.Message()
	}
	return &ApiError{Code: code, Message: msg}
}

func (e *ApiError) Error() string {
	return "code: " + strconv.FormatUint(uint64(e.Code), 10) + `, message: "` + e.Message + `"`
}

// Is matches another ApiError by code so callers can use errors.Is with the
// package sentinels regardless of message.
func (e *ApiError) Is(target error) bool {
	t, ok := target.(*ApiError)
	return ok && t.Code == e.Code
}

var (
	ErrInternal         = New(InternalError, "")
	ErrBadRequest       = New(BadRequest, "")
	ErrUnauthenticated  = New(Unauthenticated, "")
	ErrPermissionDenied = New(PermissionDenied, "")
	ErrNotFound         = New(NotFound, "")
	ErrInvalidOperation = New(InvalidOperation, "")
)

// Response is the JSON envelope every API endpoint answers with.
type Response[T any] struct {
	Data  *T        `json:"data"`
	Error *ApiError `json:"error"`
}

// OK wraps data in a success envelope.
func OK[T any](data T) Response[T] {
	return Response[T]{Data: &data}
}

// Failure wraps err in an error envelope.
func Failure(err *ApiError) Response[struct{}] {
	return Response[struct{}]{Error: err}
}

// Decode parses an envelope. A JSON null body yields (nil, nil).
func Decode[T any](body []byte) (*Response[T], error) {
	var r *Response[T]
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return r, nil
}
