package usecase

import (
	"errors"
	"net/http"
)

// ValidationError rejects a create request. Check and Reason come straight
// from the failing validation step.
type ValidationError struct {
	Check  string `json:"check"`
	Status string `json:"status"`
	Reason string `json:"reason"`
	Code   int    `json:"code"`
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Check + " check failed"
	}
	return e.Reason
}

// IllegalStateError is returned when an operation is not allowed from the
// lead's current status.
type IllegalStateError struct {
	Operation string
	Current   string
	Message   string
}

func (e *IllegalStateError) Error() string {
	return e.Message
}

// BadRequestError covers malformed ids and undecodable requests.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// CorruptStateError means a stored record failed schema validation. It is
// never retried.
type CorruptStateError struct {
	LeadID string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return "stored lead " + e.LeadID + " is corrupt: " + e.Err.Error()
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// TechnicalError wraps infrastructure failures (store, journal, lock).
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

// RecordedError is a failure replayed from a completed invocation.
type RecordedError struct {
	Code    string `json:"code"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *RecordedError) Error() string {
	return e.Message
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsIllegalState(err error) bool {
	var target *IllegalStateError
	return errors.As(err, &target)
}

func IsCorruptState(err error) bool {
	var target *CorruptStateError
	return errors.As(err, &target)
}

func IsTechnicalError(err error) bool {
	var target *TechnicalError
	return errors.As(err, &target)
}

// IsTerminal reports whether retrying the same call can never succeed.
func IsTerminal(err error) bool {
	var bad *BadRequestError
	var recorded *RecordedError
	if errors.As(err, &recorded) {
		return recorded.Status < http.StatusInternalServerError || recorded.Code == "CORRUPT_STATE"
	}
	return IsValidationError(err) || IsIllegalState(err) || IsCorruptState(err) || errors.As(err, &bad)
}

// HTTPStatus maps an orchestrator error to the status code callers see.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		if validation.Code != 0 {
			return validation.Code
		}
		return http.StatusBadRequest
	}
	var recorded *RecordedError
	if errors.As(err, &recorded) && recorded.Status != 0 {
		return recorded.Status
	}
	var bad *BadRequestError
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	if IsIllegalState(err) {
		return http.StatusConflict
	}
	var technical *TechnicalError
	if errors.As(err, &technical) && technical.Code == "LOCK_UNAVAILABLE" {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorCode is the machine readable code used in JSON error bodies.
func ErrorCode(err error) string {
	var validation *ValidationError
	var bad *BadRequestError
	var technical *TechnicalError
	var recorded *RecordedError
	switch {
	case errors.As(err, &recorded):
		return recorded.Code
	case errors.As(err, &validation):
		return "VALIDATION_ERROR"
	case errors.As(err, &bad):
		return "BAD_REQUEST"
	case IsIllegalState(err):
		return "ILLEGAL_STATE"
	case IsCorruptState(err):
		return "CORRUPT_STATE"
	case errors.As(err, &technical):
		return technical.Code
	default:
		return "INTERNAL_ERROR"
	}
}
