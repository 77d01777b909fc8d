package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOptionalStringPatch(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *string
	}{
		{"absent", `{}`, nil},
		{"null clears", `{"thumbnail":null}`, ptr("")},
		{"value", `{"thumbnail":"data:image/png;base64,AA=="}`, ptr("data:image/png;base64,AA==")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Thumbnail OptionalString `json:"thumbnail"`
			}
			if err := json.Unmarshal([]byte(tt.body), &body); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			got := body.Thumbnail.Patch()
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil || *got != *tt.want:
				t.Errorf("Patch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestRespondErrorWithExtras(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusServiceUnavailable, "remote down", map[string]interface{}{"degraded": true})

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["degraded"] != true || got["detail"] != "remote down" || got["title"] != "Service Unavailable" {
		t.Errorf("problem = %v", got)
	}
	if !strings.HasSuffix(got["type"].(string), "section-6.6.4") {
		t.Errorf("type = %v, want 503 type URI", got["type"])
	}
}

func TestParseJSONRejectsOversizedBody(t *testing.T) {
	big := `{"title":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/canvases", strings.NewReader(big))
	var dest map[string]string
	if err := ParseJSON(httptest.NewRecorder(), req, &dest); err == nil {
		t.Error("ParseJSON() accepted a body over the limit")
	}
}

func TestOwnerIDContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetOwnerID(req); got != "" {
		t.Errorf("GetOwnerID() = %q on a bare request", got)
	}
	if got := GetOwnerID(WithOwnerID(req, "user-1")); got != "user-1" {
		t.Errorf("GetOwnerID() = %q, want user-1", got)
	}
}
