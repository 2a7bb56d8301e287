package apperror

import "net/http"

type Code string

const (
	Validation  Code = "VALIDATION"
	NotFound    Code = "NOT_FOUND"
	Unavailable Code = "UNAVAILABLE"
	Provider    Code = "PROVIDER_UNAVAILABLE"
	Rate        Code = "RATE_UNAVAILABLE"
)

type AppError struct {
	code    Code
	message string
	status  int // optional explicit HTTP status, e.g. propagated from upstream
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// WithStatus returns a copy carrying an explicit HTTP status that overrides
// the default mapping for the code.
func (e *AppError) WithStatus(status int) *AppError {
	return &AppError{code: e.code, message: e.message, status: status}
}

func (e *AppError) Error() string   { return e.message }
func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }

func (e *AppError) HTTPStatus() int {
	if e.status != 0 {
		return e.status
	}
	switch e.code {
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Provider:
		return http.StatusBadGateway
	case Unavailable, Rate:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err is an *AppError with the given code.
func Is(err error, code Code) bool {
	ae, ok := err.(*AppError)
	return ok && ae.code == code
}
