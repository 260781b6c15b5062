package core

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeNetwork      = "NETWORK_ERROR"
	ErrorCodeTimeout      = "TIMEOUT"
	ErrorCodeUnknown      = "UNKNOWN_ERROR"
	ErrorCodeBadInput     = "BAD_INPUT"
	ErrorCodeStoreFailure = "STORE_FAILURE"

	httpErrorCodePrefix = "HTTP_"
)

// HTTPErrorCode returns the HTTP_<status> failure code.
func HTTPErrorCode(status int) string {
	return httpErrorCodePrefix + strconv.Itoa(status)
}

func NewError(message string, category goerrors.Category, textCode string, code int) *goerrors.Error {
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
}

func BadInputError(format string, args ...any) *goerrors.Error {
	return NewError(fmt.Sprintf(format, args...), goerrors.CategoryBadInput, ErrorCodeBadInput, http.StatusBadRequest)
}

func StoreError(source error, message string) *goerrors.Error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorCodeStoreFailure)
}

// DefaultErrorMapper converts any error into a rich error carrying a text
// code from the envelope taxonomy.
func DefaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"):
		return NewError(err.Error(), goerrors.CategoryBadInput, ErrorCodeBadInput, http.StatusBadRequest)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadInput
	case goerrors.CategoryExternal:
		return ErrorCodeNetwork
	default:
		return ErrorCodeUnknown
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
