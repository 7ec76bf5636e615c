// Package apierrors defines the application error codes exchanged with the
// activation endpoint in the {"data": ..., "error": {"code", "message"}}
// response envelope.
package apierrors

import "net/http"

// Code is a wire-compatible application error code.
type Code uint64

const (
	NoError Code = 0

	UnknownError Code = 1

	// Internal error codes (2-9999).
	InternalError Code = 2

	// Server error codes (10000-10499).
	Unimplemented      Code = 10000
	BadGateway         Code = 10001
	ServiceUnavailable Code = 10002
	GatewayTimeout     Code = 10003

	// Client error codes (10500-10999).
	BadRequest        Code = 10500
	Unauthenticated   Code = 10501
	Unauthorized      Code = 10502
	PermissionDenied  Code = 10503 // HTTP 403
	PageNotFound      Code = 10504
	OperationCanceled Code = 10505 // HTTP 499

	// Request and operation errors (11000-12999).
	InvalidQueryString Code = 11000
	InvalidRequestBody Code = 11001
	InvalidOperation   Code = 12000
	InvalidData        Code = 12001
	NotFound           Code = 12002
)

var messages = map[Code]string{
	UnknownError:       "unknown error",
	InternalError:      "internal error",
	Unimplemented:      "unimplemented",
	BadGateway:         "bad gateway",
	ServiceUnavailable: "service unavailable",
	GatewayTimeout:     "gateway timeout",
	BadRequest:         "bad request",
	Unauthenticated:    "user not authenticated",
	Unauthorized:       "user not authorized",
	PermissionDenied:   "forbidden",
	PageNotFound:       "page not found",
	OperationCanceled:  "operation canceled",
	InvalidQueryString: "invalid query string",
	InvalidRequestBody: "invalid request body",
	InvalidOperation:   "invalid operation",
	InvalidData:        "invalid data",
	NotFound:           "not found",
}

// Message returns the canonical message for c, or "" for NoError and unknown codes.
func (c Code) Message() string {
	return messages[c]
}

// Known reports whether c is one of the defined codes.
func (c Code) Known() bool {
	_, ok := messages[c]
	return ok || c == NoError
}

// CodeForStatus maps an HTTP status code to the application error code a
// response without an error envelope is reported as.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest,
		http.StatusRequestEntityTooLarge,
		http.StatusRequestURITooLong,
		http.StatusUnsupportedMediaType,
		http.StatusRequestHeaderFieldsTooLarge:
		return BadRequest
	case http.StatusUnauthorized:
		return Unauthenticated
	case http.StatusForbidden, http.StatusTooManyRequests:
		return PermissionDenied
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return InvalidOperation
	case http.StatusInternalServerError:
		return InternalError
	case http.StatusNotImplemented:
		return Unimplemented
	case http.StatusBadGateway:
		return BadGateway
	case http.StatusServiceUnavailable:
		return ServiceUnavailable
	case http.StatusGatewayTimeout:
		return GatewayTimeout
	default:
		return UnknownError
	}
}

// StatusFor is the server-side inverse of CodeForStatus.
func StatusFor(c Code) int {
	switch c {
	case NoError:
		return http.StatusOK
	case BadRequest, InvalidQueryString, InvalidRequestBody, InvalidData:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized, PermissionDenied:
		return http.StatusForbidden
	case NotFound, PageNotFound:
		return http.StatusNotFound
	case InvalidOperation:
		return http.StatusConflict
	case OperationCanceled:
		return 499
	case Unimplemented:
		return http.StatusNotImplemented
	case BadGateway:
		return http.StatusBadGateway
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case GatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
