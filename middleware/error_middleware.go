package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"snapybara-server/auth"
	"snapybara-server/utils/errors"
)

// ErrorMiddleware recovers panics and answers them with a standardized JSON error.
func ErrorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					zap.L().Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestIDFrom(r.Context())),
						zap.Stack("stack"))
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// toAPIError finds the API error carried by err, falling back to a 500.
func toAPIError(err error) *errors.APIError {
	if apiErr, ok := errors.As(err); ok {
		return apiErr
	}
	if authErr, ok := err.(*auth.AuthError); ok {
		return errors.WithDetails(errors.ErrUnauthorized, "token "+string(authErr.Reason))
	}
	return errors.Wrap(err, "UNKNOWN_ERROR", "Unexpected error", errors.ErrInternal.Status)
}

// WriteError writes err as a JSON API error.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= 500 {
		zap.L().Error("server error",
			zap.String("code", apiErr.Code),
			zap.String("details", apiErr.Details),
			zap.Error(err))
		if apiErr.Status == http.StatusInternalServerError {
			// internals stay in the log
			apiErr = errors.WithDetails(apiErr, "")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
