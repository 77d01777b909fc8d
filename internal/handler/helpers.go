package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/domain"
	"canvasdesk/internal/httputil"
	"canvasdesk/internal/session"
)

// SessionProvider hands out the live session of an owner.
type SessionProvider interface {
	Get(ctx context.Context, ownerID string) (*session.Session, error)
}

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var httpErr domain.HTTPError

	switch {
	case errors.Is(err, domain.ErrStale):
		httputil.RespondError(w, http.StatusConflict, "superseded by a newer request")
	case errors.Is(err, domain.ErrBackendUnavailable):
		httputil.RespondErrorWithExtras(w, http.StatusServiceUnavailable, err.Error(), map[string]interface{}{
			"degraded": true,
		})
	case errors.As(err, &httpErr):
		httputil.RespondError(w, httpErr.StatusCode(), err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// PathParam returns a required path id, writing a 400 when it is empty and
// a 404 when it is not a well-formed id.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	v := r.PathValue(name)
	if v == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	// Nothing can exist under an id the allocator would never hand out
	if !allocator.IsID(v) {
		handleError(w, domain.NewNotFound(strings.ToLower(strings.TrimSuffix(label, " ID")), v))
		return "", false
	}
	return v, true
}

// sessionFor resolves the caller's session, writing the error response on failure.
func sessionFor(sessions SessionProvider, logger *slog.Logger, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	ownerID := httputil.GetOwnerID(r)
	s, err := sessions.Get(r.Context(), ownerID)
	if err != nil {
		logger.Error("failed to open session", "owner_id", ownerID, "error", err)
		handleError(w, err)
		return nil, false
	}
	return s, true
}
