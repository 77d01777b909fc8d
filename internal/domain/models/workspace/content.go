package workspace

import (
	"bytes"
	"encoding/json"
)

// Content is the serialized scene of a canvas, a JSON object owned by the
// editing surface. The workspace never interprets it beyond schema checks.
type Content json.RawMessage

// BlankContent is the payload new canvases start with.
func BlankContent() Content {
	return Content(`{"elements":[],"appState":{}}`)
}

// Clone returns an independent copy.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	copy(out, c)
	return out
}

// Equal compares two payloads byte for byte.
func (c Content) Equal(other Content) bool {
	return bytes.Equal(c, other)
}

// MarshalJSON embeds the payload as raw JSON.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(c).MarshalJSON()
}

// UnmarshalJSON keeps the payload verbatim.
func (c *Content) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*c = nil
		return nil
	}
	*c = Content(bytes.Clone(data))
	return nil
}
