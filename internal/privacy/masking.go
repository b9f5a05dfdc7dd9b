package privacy

import (
	"strconv"
	"strings"

	"messengerhub/internal/constants"
)

// MaskPSID masks a page-scoped user id showing only the last 4 characters
// Example: "24811234567890" -> "**********7890"
func MaskPSID(psid string) string {
	return maskString(psid, constants.DefaultIDMaskLength)
}

// MaskConversationID masks the customer part of a conversation id
// Example: "fb_1001_24811234567890" -> "fb_1001_**********7890"
func MaskConversationID(conversationID string) string {
	if conversationID == "" {
		return ""
	}
	parts := strings.SplitN(conversationID, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_" + MaskPSID(parts[2])
	}
	return maskString(conversationID, constants.DefaultIDMaskLength)
}

// MaskMessageID masks a platform message id while keeping its prefix for debugging
// Example: "m_AbCdEfGhIjKlMnOp" -> "m_************MnOp"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	if strings.HasPrefix(messageID, "m_") {
		return "m_" + maskString(messageID[2:], 4)
	}
	return maskString(messageID, 8)
}

// MaskToken reduces an access token to a short prefix
// Example: "EAAGm0PX4ZCpsBA..." -> "EAAG...(128)"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "...(" + strconv.Itoa(len(token)) + ")"
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "psid", "sender_id", "recipient_id", "customer_psid":
			masked[k] = MaskPSID(s)
		case "conversation_id":
			masked[k] = MaskConversationID(s)
		case "message_id", "mid":
			masked[k] = MaskMessageID(s)
		case "access_token", "token":
			masked[k] = MaskToken(s)
		default:
			masked[k] = v
		}
	}

	return masked
}
