package httputil

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent JSON field from an explicit null
// in PATCH bodies (RFC 7396), which *string cannot do.
type OptionalString struct {
	Present bool
	Value   *string // nil when the field was null
}

// UnmarshalJSON is only called for fields present in the document.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Patch converts the field to the *string convention of partial updates:
// nil leaves the value alone, and an explicit null becomes "" (cleared).
func (o OptionalString) Patch() *string {
	if !o.Present {
		return nil
	}
	if o.Value == nil {
		empty := ""
		return &empty
	}
	v := *o.Value
	return &v
}
