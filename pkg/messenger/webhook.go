package messenger

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"messengerhub/internal/constants"
)

// VerifySubscription checks a webhook subscription handshake.
// It returns the challenge to echo and 200 on success, 403 on a token mismatch
// and 400 when hub.mode or hub.verify_token is missing.
func VerifySubscription(query url.Values, verifyToken string) (string, int) {
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	if mode == "" || token == "" {
		return "", http.StatusBadRequest
	}
	if mode != constants.WebhookModeSubscribe ||
		verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) != 1 {
		return "", http.StatusForbidden
	}
	return query.Get("hub.challenge"), http.StatusOK
}

// ParseWebhookPayload decodes a webhook POST body
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return &payload, nil
}

// IsPageEvent reports whether the payload belongs to a page subscription
func (p *WebhookPayload) IsPageEvent() bool {
	return p.Object == constants.WebhookObjectPage
}
