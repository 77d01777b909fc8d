package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"canvasdesk/internal/auth"
	"canvasdesk/internal/httputil"
)

// OptionalAuth resolves the workspace owner from a bearer token. Requests
// without a token continue as the anonymous owner; a token that fails
// verification is rejected. With a nil verifier every request is anonymous.
//
// Browsers cannot set headers on WebSocket upgrades, so the token may also
// arrive as the access_token query parameter.
func OptionalAuth(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("rejected bearer token", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, httputil.WithOwnerID(r, claims.GetOwnerID()))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
