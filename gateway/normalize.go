package gateway

import (
	"encoding/json"
	"strings"

	"github.com/iscanabdulhalik/go-esim/core"
	"github.com/iscanabdulhalik/go-esim/transport"
	"github.com/tidwall/gjson"
)

const (
	messageOK      = "OK"
	messageServer  = "server error"
	messageNetwork = "network unavailable, check your internet connection"
	messageTimeout = "request timed out"
	messageUnknown = "an unexpected error occurred"
)

func normalizeResponse(resp transport.Response) core.Envelope {
	body := resp.Body
	valid := len(body) > 0 && gjson.ValidBytes(body)

	if resp.IsSuccess() {
		message := messageOK
		var data json.RawMessage
		if valid {
			parsed := gjson.ParseBytes(body)
			if msg := parsed.Get("message"); msg.Type == gjson.String && strings.TrimSpace(msg.String()) != "" {
				message = msg.String()
			}
			if nested := parsed.Get("data"); nested.Exists() && nested.Type != gjson.Null {
				data = json.RawMessage(nested.Raw)
			} else {
				data = json.RawMessage(body)
			}
		} else if len(body) > 0 {
			data = rawString(string(body))
		}
		return core.SuccessEnvelope(resp.StatusCode, data, message)
	}

	env := core.FailureEnvelope(resp.StatusCode, core.HTTPErrorCode(resp.StatusCode), messageServer)
	if valid {
		parsed := gjson.ParseBytes(body)
		if msg := firstString(parsed, "message", "error", "error.message"); msg != "" {
			env.Error = msg
		}
		if code := parsed.Get("code"); code.Exists() && code.Type != gjson.Null {
			env.ServerCode = code.String()
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		env.Error = text
	}
	return env
}

func normalizeError(err error) core.Envelope {
	switch transport.TextCode(err) {
	case core.ErrorCodeTimeout:
		return core.FailureEnvelope(0, core.ErrorCodeTimeout, messageTimeout)
	case core.ErrorCodeNetwork:
		return core.FailureEnvelope(0, core.ErrorCodeNetwork, messageNetwork)
	case core.ErrorCodeBadInput:
		return core.FailureEnvelope(0, core.ErrorCodeBadInput, err.Error())
	default:
		return core.FailureEnvelope(0, core.ErrorCodeUnknown, messageUnknown)
	}
}

func firstString(parsed gjson.Result, paths ...string) string {
	for _, path := range paths {
		value := parsed.Get(path)
		if value.Type == gjson.String && strings.TrimSpace(value.String()) != "" {
			return value.String()
		}
	}
	return ""
}

func rawString(value string) json.RawMessage {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return encoded
}
