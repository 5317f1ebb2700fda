package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Error code constants. Errors carry code + message; the CLI and serve
// layers decide presentation, the core never formats output.

// Session/controller error codes.
const (
	CodeAuthFailed            = "AUTHENTICATION_FAILED"
	CodeControllerUnreachable = "CONTROLLER_UNREACHABLE"
	CodeControllerError       = "CONTROLLER_ERROR"
)

// Client lookup error codes.
const (
	CodeClientNotFound  = "CLIENT_NOT_FOUND"
	CodeClientAmbiguous = "CLIENT_AMBIGUOUS"
	CodeDeviceNotFound  = "DEVICE_NOT_FOUND"
)

// Group error codes.
const (
	CodeGroupNotFound    = "GROUP_NOT_FOUND"
	CodeGroupExists      = "GROUP_ALREADY_EXISTS"
	CodeInvalidOperation = "INVALID_OPERATION"
	CodeInvalidRule      = "INVALID_RULE"
)

// Serve/validation error codes.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Convenience constructors using predefined codes.

// ErrAuthFailedf creates an authentication failure error.
func ErrAuthFailedf(reason string) *AppError {
	return &AppError{
		Code:       CodeAuthFailed,
		Message:    "authentication failed: " + reason,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// ErrControllerUnreachablef creates a controller connectivity error.
func ErrControllerUnreachablef(url string, err error) *AppError {
	return &AppError{
		Code:       CodeControllerUnreachable,
		Message:    "controller unreachable: " + url,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// ErrClientNotFoundf creates a client lookup miss error.
func ErrClientNotFoundf(identifier string) *AppError {
	return &AppError{
		Code:       CodeClientNotFound,
		Message:    "client not found: " + identifier,
		HTTPStatus: http.StatusNotFound,
	}
}

// ErrClientAmbiguousf creates an ambiguous client lookup error carrying
// the matching candidates for caller-side disambiguation.
func ErrClientAmbiguousf(identifier string, candidates []string) *AppError {
	return (&AppError{
		Code:       CodeClientAmbiguous,
		Message:    fmt.Sprintf("identifier %q matches %d clients: %s", identifier, len(candidates), strings.Join(candidates, ", ")),
		HTTPStatus: http.StatusConflict,
	}).WithParams(map[string]interface{}{"candidates": candidates})
}

// ErrGroupNotFoundf creates a group lookup miss error.
func ErrGroupNotFoundf(id string) *AppError {
	return &AppError{
		Code:       CodeGroupNotFound,
		Message:    "group not found: " + id,
		HTTPStatus: http.StatusNotFound,
	}
}

// ErrGroupExistsf creates a duplicate group error.
func ErrGroupExistsf(id string) *AppError {
	return &AppError{
		Code:       CodeGroupExists,
		Message:    "group already exists: " + id,
		HTTPStatus: http.StatusConflict,
	}
}

// ErrInvalidOperationf creates an error for an operation that does not
// apply to the target, such as member edits on an auto group.
func ErrInvalidOperationf(reason string) *AppError {
	return &AppError{
		Code:       CodeInvalidOperation,
		Message:    reason,
		HTTPStatus: http.StatusBadRequest,
	}
}

// ErrInvalidRulef creates a rule validation error.
func ErrInvalidRulef(ruleType, pattern, reason string) *AppError {
	return (&AppError{
		Code:       CodeInvalidRule,
		Message:    fmt.Sprintf("invalid %s rule %q: %s", ruleType, pattern, reason),
		HTTPStatus: http.StatusBadRequest,
	}).WithParams(map[string]interface{}{"type": ruleType, "pattern": pattern})
}

// ErrControllerErrorf creates an error for a controller-reported failure
// (envelope meta.rc != "ok" or an unexpected HTTP status).
func ErrControllerErrorf(op, detail string) *AppError {
	return &AppError{
		Code:       CodeControllerError,
		Message:    fmt.Sprintf("controller rejected %s: %s", op, detail),
		HTTPStatus: http.StatusBadGateway,
	}
}
