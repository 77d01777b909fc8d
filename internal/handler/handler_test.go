package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/config"
	models "canvasdesk/internal/domain/models/workspace"
	"canvasdesk/internal/repository/local"
	"canvasdesk/internal/service/dragdrop"
	"canvasdesk/internal/service/eventstream"
	"canvasdesk/internal/service/workspace"
	"canvasdesk/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := local.Open("", logger)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.DefaultWorkspaceConfig()
	cfg.DeleteSettleDelay = 0
	registry := session.NewRegistry(nil, store, cfg, logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux, registry, nil, logger)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { registry.Close(context.Background()) })
	return srv, registry
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	return doWithHeader(t, srv, method, path, body, nil)
}

func doWithHeader(t *testing.T, srv *httptest.Server, method, path string, body any, header http.Header) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d; body: %s",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func snapshot(t *testing.T, srv *httptest.Server) models.Snapshot {
	t.Helper()
	resp := do(t, srv, http.MethodGet, "/api/workspace", nil)
	expectStatus(t, resp, http.StatusOK)
	return decode[models.Snapshot](t, resp)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/health", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]string](t, resp); got["status"] != "ok" {
		t.Errorf("status = %q, want ok", got["status"])
	}
}

func TestSnapshotHasDefaultCanvas(t *testing.T) {
	srv, _ := newTestServer(t)
	snap := snapshot(t, srv)
	if len(snap.Canvases) != 1 {
		t.Fatalf("canvases = %d, want 1", len(snap.Canvases))
	}
	if snap.CurrentCanvasID != snap.Canvases[0].ID {
		t.Errorf("current = %q, want the default canvas", snap.CurrentCanvasID)
	}
	if snap.OwnerID != session.AnonymousOwner {
		t.Errorf("owner = %q, want %q", snap.OwnerID, session.AnonymousOwner)
	}
}

func TestCanvasRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/canvases", map[string]any{"title": "Sketch"})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[models.Canvas](t, resp)
	if created.Title != "Sketch" {
		t.Errorf("title = %q, want Sketch", created.Title)
	}
	if snap := snapshot(t, srv); len(snap.Canvases) != 2 {
		t.Fatalf("canvases = %d, want 2", len(snap.Canvases))
	}

	t.Run("rename", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/canvases/"+created.ID, map[string]any{"title": "  Plan "})
		expectStatus(t, resp, http.StatusOK)
		if got := decode[models.Canvas](t, resp); got.Title != "Plan" {
			t.Errorf("title = %q, want Plan", got.Title)
		}
	})

	t.Run("thumbnail set and cleared", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/canvases/"+created.ID, map[string]any{"thumbnail": "data:image/png;base64,AA=="})
		expectStatus(t, resp, http.StatusOK)
		if got := decode[models.Canvas](t, resp); got.Thumbnail == nil || *got.Thumbnail != "data:image/png;base64,AA==" {
			t.Fatalf("thumbnail = %v, want set", got.Thumbnail)
		}
		resp = do(t, srv, http.MethodPatch, "/api/canvases/"+created.ID, `{"thumbnail":null}`)
		expectStatus(t, resp, http.StatusOK)
		if got := decode[models.Canvas](t, resp); got.Thumbnail != nil && *got.Thumbnail != "" {
			t.Errorf("thumbnail = %q, want cleared", *got.Thumbnail)
		}
	})

	t.Run("blank rename is rejected", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/canvases/"+created.ID, map[string]any{"title": "   "})
		expectStatus(t, resp, http.StatusBadRequest)
		if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
			t.Errorf("Content-Type = %q, want problem+json", ct)
		}
	})

	t.Run("unknown canvas", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/canvases/nope/switch", nil)
		expectStatus(t, resp, http.StatusNotFound)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/canvases", "{not json")
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("switch", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/canvases/"+created.ID+"/switch", nil)
		expectStatus(t, resp, http.StatusOK)
		if got := decode[models.Snapshot](t, resp); got.CurrentCanvasID != created.ID {
			t.Errorf("current = %q, want %q", got.CurrentCanvasID, created.ID)
		}
	})

	t.Run("delete current", func(t *testing.T) {
		resp := do(t, srv, http.MethodDelete, "/api/canvases/"+created.ID, nil)
		expectStatus(t, resp, http.StatusNoContent)
		snap := snapshot(t, srv)
		if _, ok := snap.Canvas(created.ID); ok {
			t.Error("deleted canvas still listed")
		}
		if _, ok := snap.Canvas(snap.CurrentCanvasID); !ok {
			t.Errorf("current %q is not a listed canvas", snap.CurrentCanvasID)
		}
	})
}

func TestCurrentContentRoutes(t *testing.T) {
	srv, registry := newTestServer(t)
	edited := `{"elements":[{"id":"rect-1","type":"rectangle"}],"appState":{"viewBackgroundColor":"#fff"}}`

	resp := do(t, srv, http.MethodGet, "/api/canvases/current/content", nil)
	expectStatus(t, resp, http.StatusOK)
	shown := resp.Header.Get(CanvasIDHeader)
	if shown == "" {
		t.Fatalf("%s header missing", CanvasIDHeader)
	}

	push := func(canvasID, body string) *http.Response {
		header := http.Header{}
		if canvasID != "" {
			header.Set(CanvasIDHeader, canvasID)
		}
		return doWithHeader(t, srv, http.MethodPut, "/api/canvases/current/content", body, header)
	}

	expectStatus(t, push(shown, edited), http.StatusNoContent)

	s, err := registry.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !s.Workspace.Dirty() {
		t.Error("workspace not dirty after content push")
	}

	resp = do(t, srv, http.MethodGet, "/api/canvases/current/content", nil)
	expectStatus(t, resp, http.StatusOK)
	if id := resp.Header.Get(CanvasIDHeader); id != s.Workspace.Snapshot().CurrentCanvasID {
		t.Errorf("%s = %q, want current canvas", CanvasIDHeader, id)
	}
	body, _ := io.ReadAll(resp.Body)
	if !models.Content(body).Equal(models.Content(edited)) {
		t.Errorf("content = %s, want %s", body, edited)
	}

	resp = do(t, srv, http.MethodPost, "/api/canvases/current/flush", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[map[string]bool](t, resp); got["dirty"] {
		t.Error("still dirty after flush")
	}

	t.Run("rejects non-scene content", func(t *testing.T) {
		expectStatus(t, push(shown, `{"shapes":[]}`), http.StatusBadRequest)
	})

	t.Run("requires the canvas id", func(t *testing.T) {
		expectStatus(t, push("", edited), http.StatusBadRequest)
	})

	t.Run("edit for a canvas switched away from is rejected", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/canvases", map[string]any{"title": "Other"})
		expectStatus(t, resp, http.StatusCreated)
		other := decode[models.Canvas](t, resp)
		expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases/"+other.ID+"/switch", nil), http.StatusOK)

		late := `{"elements":[{"id":"late","type":"ellipse"}],"appState":{}}`
		expectStatus(t, push(shown, late), http.StatusConflict)

		if s.Workspace.Dirty() {
			t.Error("stale edit marked the new canvas dirty")
		}
		_, content, err := s.Workspace.CurrentContent()
		if err != nil {
			t.Fatalf("CurrentContent() error = %v", err)
		}
		if content.Equal(models.Content(late)) {
			t.Error("stale edit replaced the new canvas's scene")
		}
	})
}

func TestPreloadAndUnload(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/api/canvases", map[string]any{"title": "Second"})
	expectStatus(t, resp, http.StatusCreated)
	second := decode[models.Canvas](t, resp)

	current := snapshot(t, srv).CurrentCanvasID

	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases/"+second.ID+"/preload", nil), http.StatusNoContent)
	if !slices.Contains(snapshot(t, srv).LoadedCanvasIDs, second.ID) {
		t.Error("preloaded canvas not resident")
	}

	resp = do(t, srv, http.MethodGet, "/api/workspace/cache", nil)
	expectStatus(t, resp, http.StatusOK)
	entries := decode[[]struct {
		CanvasID string `json:"canvas_id"`
		Bytes    int    `json:"bytes"`
		Current  bool   `json:"current"`
	}](t, resp)
	if len(entries) != 2 || entries[0].CanvasID != second.ID {
		t.Fatalf("cache entries = %+v, want the preloaded canvas first of 2", entries)
	}
	if entries[0].Current || !entries[1].Current || entries[1].CanvasID != current {
		t.Errorf("cache entries = %+v, want only %s marked current", entries, current)
	}
	if entries[0].Bytes == 0 {
		t.Error("cache entry reports no content")
	}
	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases/"+second.ID+"/unload", nil), http.StatusNoContent)
	if slices.Contains(snapshot(t, srv).LoadedCanvasIDs, second.ID) {
		t.Error("unloaded canvas still resident")
	}
	// Unloading the current canvas is refused without an error
	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases/"+current+"/unload", nil), http.StatusNoContent)
	if !slices.Contains(snapshot(t, srv).LoadedCanvasIDs, current) {
		t.Error("current canvas was unloaded")
	}
	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases/missing/preload", nil), http.StatusNotFound)
	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases/"+allocator.NewID()+"/preload", nil), http.StatusNotFound)
}

func TestFolderRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/folders", map[string]any{"name": "Warmups"})
	expectStatus(t, resp, http.StatusCreated)
	folder := decode[models.Folder](t, resp)

	t.Run("slash in name", func(t *testing.T) {
		expectStatus(t, do(t, srv, http.MethodPost, "/api/folders", map[string]any{"name": "a/b"}), http.StatusBadRequest)
	})

	t.Run("rename", func(t *testing.T) {
		resp := do(t, srv, http.MethodPatch, "/api/folders/"+folder.ID, map[string]any{"name": "Drills"})
		expectStatus(t, resp, http.StatusOK)
		if got := decode[models.Folder](t, resp); got.Name != "Drills" {
			t.Errorf("name = %q, want Drills", got.Name)
		}
	})

	canvasID := snapshot(t, srv).CurrentCanvasID
	resp = do(t, srv, http.MethodPost, "/api/canvases/"+canvasID+"/move", map[string]any{"folder_id": folder.ID})
	expectStatus(t, resp, http.StatusOK)
	moved := decode[models.Snapshot](t, resp)
	if c, _ := moved.Canvas(canvasID); c.FolderID != folder.ID {
		t.Fatalf("folder = %q, want %q", c.FolderID, folder.ID)
	}

	t.Run("non-empty folder cannot be deleted", func(t *testing.T) {
		resp := do(t, srv, http.MethodDelete, "/api/folders/"+folder.ID, nil)
		expectStatus(t, resp, http.StatusConflict)
	})

	t.Run("root cannot be deleted", func(t *testing.T) {
		resp := do(t, srv, http.MethodDelete, "/api/folders/"+moved.RootFolderID, nil)
		expectStatus(t, resp, http.StatusConflict)
	})

	t.Run("move requires folder", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/canvases/"+canvasID+"/move", map[string]any{})
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("empty folder is deleted", func(t *testing.T) {
		resp := do(t, srv, http.MethodPost, "/api/canvases/"+canvasID+"/move", map[string]any{"folder_id": moved.RootFolderID})
		expectStatus(t, resp, http.StatusOK)
		expectStatus(t, do(t, srv, http.MethodDelete, "/api/folders/"+folder.ID, nil), http.StatusNoContent)
	})
}

func TestReorderRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, title := range []string{"B", "C"} {
		expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases", map[string]any{"title": title}), http.StatusCreated)
	}
	snap := snapshot(t, srv)
	ids := make([]string, 0, len(snap.Canvases))
	for i := len(snap.Canvases) - 1; i >= 0; i-- {
		ids = append(ids, snap.Canvases[i].ID)
	}

	resp := do(t, srv, http.MethodPost, "/api/folders/"+snap.RootFolderID+"/reorder", map[string]any{"ordered_ids": ids})
	expectStatus(t, resp, http.StatusOK)
	got := decode[models.Snapshot](t, resp)
	for i, c := range got.Canvases {
		if c.ID != ids[i] {
			t.Fatalf("canvas %d = %q, want %q", i, c.ID, ids[i])
		}
	}

	resp = do(t, srv, http.MethodPost, "/api/folders/"+snap.RootFolderID+"/reorder", map[string]any{"ordered_ids": ids[:1]})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDragRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/api/folders", map[string]any{"name": "Warmups"})
	expectStatus(t, resp, http.StatusCreated)
	folder := decode[models.Folder](t, resp)
	dragged := snapshot(t, srv).CurrentCanvasID

	resp = do(t, srv, http.MethodPost, "/api/drag/start", map[string]any{"canvas_id": dragged})
	expectStatus(t, resp, http.StatusOK)
	if st := decode[dragdrop.State](t, resp); st.Phase != dragdrop.PhaseDragging {
		t.Fatalf("phase = %q, want dragging", st.Phase)
	}

	resp = do(t, srv, http.MethodPost, "/api/drag/over", map[string]any{
		"candidates": []dragdrop.Candidate{{Kind: dragdrop.TargetFolder, ID: folder.ID}},
	})
	expectStatus(t, resp, http.StatusOK)
	if st := decode[dragdrop.State](t, resp); st.Target == nil || st.Target.FolderID != folder.ID {
		t.Fatalf("target = %+v, want folder %s", st.Target, folder.ID)
	}

	resp = do(t, srv, http.MethodPost, "/api/drag/end", map[string]any{
		"target": dragdrop.Candidate{Kind: dragdrop.TargetFolder, ID: folder.ID},
	})
	expectStatus(t, resp, http.StatusOK)
	if res := decode[dragdrop.Result](t, resp); res.Intent.Kind != dragdrop.IntentMove {
		t.Errorf("intent = %q, want move", res.Intent.Kind)
	}
	after := snapshot(t, srv)
	if c, _ := after.Canvas(dragged); c.FolderID != folder.ID {
		t.Errorf("folder = %q, want %q", c.FolderID, folder.ID)
	}

	t.Run("end without drag", func(t *testing.T) {
		expectStatus(t, do(t, srv, http.MethodPost, "/api/drag/end", map[string]any{}), http.StatusConflict)
	})

	t.Run("abort", func(t *testing.T) {
		expectStatus(t, do(t, srv, http.MethodPost, "/api/drag/start", map[string]any{"canvas_id": dragged}), http.StatusOK)
		resp := do(t, srv, http.MethodPost, "/api/drag/end", map[string]any{})
		expectStatus(t, resp, http.StatusOK)
		if res := decode[dragdrop.Result](t, resp); !res.Aborted {
			t.Error("drag without target not aborted")
		}
	})

	t.Run("folder open state", func(t *testing.T) {
		resp := do(t, srv, http.MethodPut, "/api/drag/folders/"+folder.ID, map[string]any{"open": true})
		expectStatus(t, resp, http.StatusOK)
		st := decode[dragdrop.State](t, resp)
		if len(st.OpenFolders) != 1 || st.OpenFolders[0] != folder.ID {
			t.Errorf("open folders = %v, want [%s]", st.OpenFolders, folder.ID)
		}
	})
}

func TestEventStream(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dial := func(t *testing.T, query string) *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/workspace/events"+query, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		t.Cleanup(func() { conn.CloseNow() })
		return conn
	}
	read := func(t *testing.T, conn *websocket.Conn) eventstream.Message {
		t.Helper()
		var msg eventstream.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return msg
	}
	// waitCanvases reads until a snapshot lists n canvases and returns its id
	waitCanvases := func(t *testing.T, conn *websocket.Conn, n int) string {
		t.Helper()
		for {
			msg := read(t, conn)
			if msg.Type == workspace.EventSnapshot && msg.Snapshot != nil && len(msg.Snapshot.Canvases) == n {
				return msg.ID
			}
		}
	}

	conn := dial(t, "")
	first := read(t, conn)
	if first.Type != workspace.EventSnapshot || first.Snapshot == nil || len(first.Snapshot.Canvases) != 1 {
		t.Fatalf("initial event = %+v, want snapshot with one canvas", first)
	}
	if first.ID != "" {
		t.Errorf("initial snapshot id = %q, want none", first.ID)
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases", map[string]any{"title": "Live"}), http.StatusCreated)
	lastID := waitCanvases(t, conn, 2)
	if lastID == "" {
		t.Fatal("forwarded snapshot has no id")
	}

	expectStatus(t, do(t, srv, http.MethodPost, "/api/canvases", map[string]any{"title": "Missed"}), http.StatusCreated)
	waitCanvases(t, conn, 3)
	conn.Close(websocket.StatusNormalClosure, "")

	t.Run("resume replays missed events", func(t *testing.T) {
		conn := dial(t, "?last_event_id="+lastID)
		for {
			msg := read(t, conn)
			if msg.ID == "" {
				t.Fatalf("resumed stream sent %+v without an id", msg)
			}
			if msg.Type == workspace.EventSnapshot && msg.Snapshot != nil && len(msg.Snapshot.Canvases) == 3 {
				break
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})

	t.Run("unknown id starts from a snapshot", func(t *testing.T) {
		conn := dial(t, "?last_event_id=bogus")
		msg := read(t, conn)
		if msg.ID != "" || msg.Type != workspace.EventSnapshot || msg.Snapshot == nil || len(msg.Snapshot.Canvases) != 3 {
			t.Errorf("first event = %+v, want fresh snapshot with three canvases", msg)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})
}

func TestOriginPatterns(t *testing.T) {
	got := OriginPatterns([]string{"http://localhost:3000", " https://app.example.com ", "", "*.example.org"})
	want := []string{"localhost:3000", "app.example.com", "*.example.org"}
	if len(got) != len(want) {
		t.Fatalf("OriginPatterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern %d = %q, want %q", i, got[i], want[i])
		}
	}
}
