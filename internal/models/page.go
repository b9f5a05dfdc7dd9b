package models

import (
	"strings"

	"messengerhub/internal/constants"
)

// PageConfig is the static configuration of one Facebook page
type PageConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// HasValidToken reports whether the access token looks like a real page token.
// Short tokens and template placeholders count as absent.
func (p PageConfig) HasValidToken() bool {
	return IsValidAccessToken(p.AccessToken)
}

// DisplayName returns the configured page name or a fallback label
func (p PageConfig) DisplayName() string {
	if strings.TrimSpace(p.Name) == "" {
		return constants.UnknownPageName
	}
	return p.Name
}

// IsValidAccessToken applies the token validity predicate. Only template shapes
// count as placeholders: a template prefix such as "your_", a token wrapped in
// angle brackets, or a run of x characters.
func IsValidAccessToken(token string) bool {
	token = strings.TrimSpace(token)
	if len(token) < constants.MinAccessTokenLength {
		return false
	}
	return !isPlaceholderToken(token)
}

func isPlaceholderToken(token string) bool {
	lower := strings.ToLower(token)
	for _, prefix := range constants.TokenPlaceholderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if strings.HasPrefix(token, "<") && strings.HasSuffix(token, ">") {
		return true
	}
	return strings.Trim(lower, "x") == ""
}
