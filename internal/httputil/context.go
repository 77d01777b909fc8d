package httputil

import (
	"context"
	"net/http"
)

// Context key type to avoid collisions
type contextKey string

const (
	ownerIDKey contextKey = "ownerID"
)

// WithOwnerID adds the workspace owner to the request context
func WithOwnerID(r *http.Request, ownerID string) *http.Request {
	ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
	return r.WithContext(ctx)
}

// GetOwnerID retrieves the owner from context, returns empty string if not found
func GetOwnerID(r *http.Request) string {
	ownerID, _ := r.Context().Value(ownerIDKey).(string)
	return ownerID
}
