package transport

import (
	"context"
	"errors"
	"net"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/iscanabdulhalik/go-esim/core"
)

func transportError(
	message string,
	category goerrors.Category,
	textCode string,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	textCode string,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, textCode, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// classifyExchangeError wraps a failure where no response was received.
func classifyExchangeError(source error, metadata map[string]any) error {
	if IsTimeout(source) {
		return transportWrapError(
			source,
			goerrors.CategoryExternal,
			core.ErrorCodeTimeout,
			"transport: request timed out",
			http.StatusGatewayTimeout,
			metadata,
		)
	}
	message := "transport: execute http request"
	if errors.Is(source, context.Canceled) {
		message = "transport: request canceled"
	}
	return transportWrapError(
		source,
		goerrors.CategoryExternal,
		core.ErrorCodeNetwork,
		message,
		http.StatusBadGateway,
		metadata,
	)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// TextCode returns the envelope text code carried by a transport error, or
// UNKNOWN_ERROR when err is not a rich error.
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return rich.TextCode
	}
	return core.ErrorCodeUnknown
}
