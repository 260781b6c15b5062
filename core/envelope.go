package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the normalized outcome of every gateway operation.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Status  int             `json:"status"`
	// ServerCode is the application code the backend put in an error body,
	// if any. Code always stays HTTP_<status> for received responses.
	ServerCode string `json:"serverCode,omitempty"`
}

func SuccessEnvelope(status int, data json.RawMessage, message string) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Message: message,
		Status:  status,
	}
}

func FailureEnvelope(status int, code string, message string) Envelope {
	return Envelope{
		Success: false,
		Error:   message,
		Code:    code,
		Status:  status,
	}
}

// Failed reports whether the envelope carries the given failure code.
func (e Envelope) Failed(code string) bool {
	return !e.Success && strings.EqualFold(strings.TrimSpace(e.Code), strings.TrimSpace(code))
}

func (e Envelope) HasData() bool {
	trimmed := strings.TrimSpace(string(e.Data))
	return trimmed != "" && trimmed != "null"
}

// Decode unmarshals the envelope payload into T. Failed envelopes and empty
// payloads return the zero value with an error.
func Decode[T any](env Envelope) (T, error) {
	var out T
	if !env.Success {
		return out, fmt.Errorf("core: cannot decode failed envelope (%s): %s", env.Code, env.Error)
	}
	if !env.HasData() {
		return out, fmt.Errorf("core: envelope has no data")
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("core: decode envelope data: %w", err)
	}
	return out, nil
}

// Result pairs a decoded payload with the envelope it came from.
type Result[T any] struct {
	Envelope Envelope
	Value    T
}

func (r Result[T]) OK() bool {
	return r.Envelope.Success
}

// DecodeResult decodes the payload when the envelope succeeded. A payload
// that does not match T turns the result into an UNKNOWN_ERROR failure.
func DecodeResult[T any](env Envelope) Result[T] {
	if !env.Success {
		return Result[T]{Envelope: env}
	}
	if !env.HasData() {
		return Result[T]{Envelope: env}
	}
	value, err := Decode[T](env)
	if err != nil {
		failed := FailureEnvelope(env.Status, ErrorCodeUnknown, err.Error())
		return Result[T]{Envelope: failed}
	}
	return Result[T]{Envelope: env, Value: value}
}
