package usage

import (
	"encoding/json"
)

const maxArgValueBytes = 500

const truncatedSuffix = "...(truncated)"

// Redact prepares a tool call's raw JSON arguments for storage in a usage
// log. Any top-level key in sensitiveKeys is replaced wholesale with
// "[REDACTED]"; every other top-level string value longer than
// maxArgValueBytes is cut down and suffixed with truncatedSuffix. Values
// nested inside objects or arrays are stored unchanged. The result is
// always valid JSON, even
// when raw isn't (a decode failure yields a marker object rather than an
// error, since a malformed usage log entry must never fail the request it
// describes).
func Redact(raw json.RawMessage, sensitiveKeys map[string]bool) string {
	if len(raw) == 0 {
		return "{}"
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return `{"_unparsed":true}`
	}

	redacted := make(map[string]any, len(args))
	for key, value := range args {
		if sensitiveKeys[key] {
			redacted[key] = "[REDACTED]"
			continue
		}
		redacted[key] = redactValue(value)
	}

	out, err := json.Marshal(redacted)
	if err != nil {
		return `{"_unparsed":true}`
	}
	return string(out)
}

func redactValue(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if len(s) <= maxArgValueBytes {
		return s
	}
	return s[:maxArgValueBytes] + truncatedSuffix
}
