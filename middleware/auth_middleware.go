package middleware

import (
	"net/http"

	"snapybara-server/auth"
	"snapybara-server/utils/errors"
)

// RequireAuth rejects requests without a valid bearer token and attaches
// the caller's identity to the request context.
func RequireAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, err)
				return
			}
			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth lets anonymous requests through. A token that is present
// but invalid is still rejected.
func OptionalAuth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, err := auth.BearerToken(header)
			if err != nil {
				WriteError(w, err)
				return
			}
			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.FromContext(r.Context())
		if id == nil {
			WriteError(w, errors.ErrUnauthorized)
			return
		}
		if !id.IsAdmin() {
			WriteError(w, errors.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
