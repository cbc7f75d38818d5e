package middleware

import (
	"crypto/subtle"
	"net/http"

	"snapybara-server/utils/errors"
)

const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecret admits requests carrying the shared secret. With no secret
// configured every request is refused.
func WebhookSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				WriteError(w, errors.WithDetails(errors.ErrUnavailable, "webhooks are not configured"))
				return
			}
			got := r.Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
