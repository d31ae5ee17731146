// Package fields turns an arbitrary, attacker-controlled inbound JSON
// object into a bounded flat mapping suitable for cheap predicate
// evaluation by the rule engine.
package fields

import (
	"regexp"
	"strings"
)

// MessageTextKey is the derived free-text field injected into the mapping
// when the payload carries a recognized text container.
const MessageTextKey = "message_text"

// textContainerKeys are the top-level keys recognized as text-like
// containers, checked in order.
var textContainerKeys = []string{"text", "markdown"}

// kvLinePattern matches a "key = value" line inside the derived message
// text: identifier, optional whitespace, '=', remainder trimmed.
var kvLinePattern = regexp.MustCompile(`^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*(.+?)\s*$`)

// Extract flattens a payload into a map of matchable scalar fields.
//
// Only top-level keys with scalar values (string, number, bool) are taken;
// nested objects and arrays are not flattened. A free-text message_text
// field is derived from a text or markdown container's content string, and
// any "key = value" lines inside it are injected as additional fields.
// Injected keys never overwrite a key that is already present, so top-level
// payload scalars take precedence over inline key=value lines.
func Extract(payload map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{})

	for key, value := range payload {
		if isScalar(value) {
			fields[key] = value
		}
	}

	messageText := extractMessageText(payload)
	if messageText == "" {
		return fields
	}
	fields[MessageTextKey] = messageText

	for _, line := range strings.Split(messageText, "\n") {
		match := kvLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		key, value := match[1], match[2]
		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}

	return fields
}

// MessageText returns the message_text value from an extracted mapping,
// or the empty string when absent or not a string.
func MessageText(fields map[string]interface{}) string {
	text, _ := fields[MessageTextKey].(string)
	return text
}

func extractMessageText(payload map[string]interface{}) string {
	for _, key := range textContainerKeys {
		container, ok := payload[key].(map[string]interface{})
		if !ok {
			continue
		}
		if content, ok := container["content"].(string); ok && strings.TrimSpace(content) != "" {
			return content
		}
	}
	return ""
}

func isScalar(value interface{}) bool {
	switch value.(type) {
	case string, float64, bool:
		return true
	default:
		return false
	}
}
