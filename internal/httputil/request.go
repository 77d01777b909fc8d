package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 32 << 20

// ParseJSON decodes JSON from the request body into the given destination.
// It limits the request body size to prevent abuse and provides clear error messages.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	// Canvas scenes with embedded images get large (requires w for proper 413 response)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	// Unknown fields are ignored; scene content is validated downstream.

	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
