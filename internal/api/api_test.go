package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/vertext/internal/editbuf"
	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/metrics"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/session"
	"github.com/starford/vertext/internal/sse"
	"github.com/starford/vertext/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	router http.Handler
	sess   *session.Session
	remote *RemoteSurface
	broker *sse.Broker
	root   string
}

// newTestEnv sets up a temp document root, preference DB, session and router.
// An empty token means auth disabled.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	root, store := testutil.TestRoot(t)
	db := testutil.TestPrefs(t)

	broker := sse.NewBroker(10 * time.Millisecond)
	t.Cleanup(broker.Close)

	remote := NewRemoteSurface(broker)
	sess := session.New(remote, store,
		session.WithClock(func() time.Time { return fixedNow }),
		session.WithLogger(testutil.Logger()),
		session.WithPrefs(db),
		session.WithNotifier(broker),
	)
	if err := sess.Mount(context.Background()); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(sess, remote, store, format.Frontmatter)
	router := NewRouter(h, token != "", token, broker)
	return &testEnv{router: router, sess: sess, remote: remote, broker: broker, root: root}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) signal(t *testing.T, req SignalRequest) SignalResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/surface/events", req)
	if w.Code != http.StatusOK {
		t.Fatalf("signal status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SignalResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestGetDocument(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodGet, "/document", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody[DocumentResponse](t, w)
	if resp.Document.Meta.Title != models.UntitledTitle || resp.Document.Dirty {
		t.Errorf("document = %+v", resp.Document)
	}
	if resp.Settings.Direction != models.DirectionRTL || resp.State != "idle" {
		t.Errorf("settings = %+v state = %q", resp.Settings, resp.State)
	}
}

func TestSurfaceInputCommits(t *testing.T) {
	e := newTestEnv(t, "")
	resp := e.signal(t, SignalRequest{
		Kind:  "input",
		State: SurfaceState{Text: "春眠", Selection: rangeAt(2), Focused: true},
	})
	if resp.Handled || !resp.Dirty || resp.Words != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if got := e.sess.Snapshot().Content; got != "春眠" {
		t.Errorf("content = %q", got)
	}
}

func TestSurfaceTabReturnsCommands(t *testing.T) {
	e := newTestEnv(t, "")
	e.signal(t, SignalRequest{Kind: "input", State: SurfaceState{Text: "AB", Selection: rangeAt(2), Focused: true}})

	resp := e.signal(t, SignalRequest{
		Kind:  "key",
		Key:   "Tab",
		State: SurfaceState{Text: "AB", Selection: rangeAt(1), Focused: true},
	})
	if !resp.Handled {
		t.Fatal("Tab not handled")
	}
	if len(resp.Commands) != 3 {
		t.Fatalf("commands = %+v, want set_text, set_caret, reveal_caret", resp.Commands)
	}
	if resp.Commands[0].Op != OpSetText || resp.Commands[0].Text != "A　　B" {
		t.Errorf("command 0 = %+v", resp.Commands[0])
	}
	if resp.Commands[1].Op != OpSetCaret || resp.Commands[1].Offset != 3 {
		t.Errorf("command 1 = %+v", resp.Commands[1])
	}
	if resp.Commands[2].Op != OpRevealCaret {
		t.Errorf("command 2 = %+v", resp.Commands[2])
	}
	for i, c := range resp.Commands {
		if c.Rev != 1 {
			t.Errorf("command %d rev = %d, want 1", i, c.Rev)
		}
	}
	if e.remote.State().Text != "A　　B" {
		t.Errorf("mirror = %q", e.remote.State().Text)
	}
}

func TestSurfaceCompositionSuppressed(t *testing.T) {
	e := newTestEnv(t, "")
	e.signal(t, SignalRequest{Kind: "compositionstart", State: SurfaceState{Focused: true}})
	e.signal(t, SignalRequest{Kind: "input", State: SurfaceState{Text: "chun", Selection: rangeAt(4), Focused: true}})
	if e.sess.Snapshot().Dirty {
		t.Fatal("composition input committed")
	}
	resp := e.signal(t, SignalRequest{Kind: "compositionend", State: SurfaceState{Text: "春", Selection: rangeAt(1), Focused: true}})
	if !resp.Dirty || e.sess.Snapshot().Content != "春" {
		t.Errorf("resp = %+v content = %q", resp, e.sess.Snapshot().Content)
	}
}

func TestSurfaceStaleSnapshotAfterOpen(t *testing.T) {
	e := newTestEnv(t, "")
	testutil.WriteFile(t, e.root, "b.md", "---\ntitle: B\n---\nBBB body")

	e.signal(t, SignalRequest{Kind: "input", State: SurfaceState{Text: "old draft", Selection: rangeAt(9), Focused: true}})
	if w := e.do(t, http.MethodPost, "/document/open", OpenRequest{Path: "b.md", Discard: true}); w.Code != http.StatusOK {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}

	// The client has not applied the set_text of the open yet.
	w := e.do(t, http.MethodPost, "/surface/events", SignalRequest{
		Kind:  "input",
		State: SurfaceState{Text: "old draft!", Selection: rangeAt(10), Focused: true},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("stale status = %d, want 409", w.Code)
	}
	stale := decodeBody[StaleSurfaceResponse](t, w)
	if stale.Surface.Text != "BBB body" || stale.Surface.Rev == 0 {
		t.Errorf("surface = %+v", stale.Surface)
	}

	doc := e.sess.Snapshot()
	if doc.Content != "BBB body" || doc.Dirty {
		t.Fatalf("document = %q dirty=%v, want the opened file untouched", doc.Content, doc.Dirty)
	}

	// Resynced snapshot goes through.
	resp := e.signal(t, SignalRequest{Kind: "input", State: SurfaceState{
		Text: "BBB body!", Selection: rangeAt(9), Focused: true, Rev: stale.Surface.Rev,
	}})
	if !resp.Dirty || e.sess.Snapshot().Content != "BBB body!" {
		t.Errorf("resp = %+v content = %q", resp, e.sess.Snapshot().Content)
	}
}

func TestSurfaceUnknownKind(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/surface/events", SignalRequest{Kind: "scroll"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOpenSaveRoundTrip(t *testing.T) {
	e := newTestEnv(t, "")
	testutil.WriteFile(t, e.root, "spring.txt", "[編號]=1 | [標題]=春曉 | [日期]=2024-01-01\n-----\n春眠不覺曉")

	w := e.do(t, http.MethodPost, "/document/open", OpenRequest{Path: "spring.txt"})
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d, body = %s", w.Code, w.Body.String())
	}
	op := decodeBody[OperationResponse](t, w)
	if op.Cancelled || op.Document.Meta.Title != "春曉" || op.Document.Meta.WordCount != 5 {
		t.Errorf("open = %+v", op)
	}

	rev := e.remote.State().Rev
	e.signal(t, SignalRequest{Kind: "input", State: SurfaceState{Text: "春眠不覺曉。", Selection: rangeAt(6), Focused: true, Rev: rev}})

	w = e.do(t, http.MethodPost, "/document/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	data, _ := os.ReadFile(filepath.Join(e.root, "spring.txt"))
	if !strings.HasSuffix(string(data), "-----\n春眠不覺曉。") {
		t.Errorf("saved = %q", data)
	}
	if e.sess.Snapshot().Dirty {
		t.Error("dirty after save")
	}
}

func TestOpenNotFound(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPost, "/document/open", OpenRequest{Path: "missing.md"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := decodeBody[errResponse](t, w); !strings.HasPrefix(body.Error, "開啟檔案失敗: ") {
		t.Errorf("error = %q", body.Error)
	}
}

func TestOpenDirtyConflict(t *testing.T) {
	e := newTestEnv(t, "")
	testutil.WriteFile(t, e.root, "a.md", "body")
	e.signal(t, SignalRequest{Kind: "input", State: SurfaceState{Text: "x", Focused: true}})

	w := e.do(t, http.MethodPost, "/document/open", OpenRequest{Path: "a.md"})
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	w = e.do(t, http.MethodPost, "/document/open", OpenRequest{Path: "a.md", Discard: true})
	if w.Code != http.StatusOK {
		t.Errorf("discard status = %d", w.Code)
	}
}

func TestSaveAsCancelledAndSuggested(t *testing.T) {
	e := newTestEnv(t, "")

	w := e.do(t, http.MethodPost, "/document/save-as", SaveRequest{})
	if w.Code != http.StatusOK || !decodeBody[OperationResponse](t, w).Cancelled {
		t.Fatalf("cancel = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/document/suggested-name?format=txt", nil)
	if got := decodeBody[map[string]string](t, w)["name"]; got != models.UntitledTitle+".txt" {
		t.Errorf("suggested = %q", got)
	}

	w = e.do(t, http.MethodPost, "/document/save-as", SaveRequest{AcceptSuggested: true, Format: "txt"})
	if w.Code != http.StatusOK {
		t.Fatalf("save-as status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(e.root, models.UntitledTitle+".txt")); err != nil {
		t.Errorf("file not written: %v", err)
	}

	w = e.do(t, http.MethodPost, "/document/save-as", SaveRequest{Path: "x", Format: "docx"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d", w.Code)
	}
}

func TestUpdateMetaValidation(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPatch, "/document/meta", map[string]any{"slug": "Bad Slug"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	w = e.do(t, http.MethodPatch, "/document/meta", map[string]any{"title": "春曉", "categories": []string{"唐詩"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	doc := decodeBody[models.Document](t, w)
	if doc.Meta.Title != "春曉" || !doc.Dirty || len(doc.Meta.Categories) != 1 {
		t.Errorf("doc = %+v", doc)
	}
}

func TestSettings(t *testing.T) {
	e := newTestEnv(t, "")
	w := e.do(t, http.MethodPut, "/settings", SettingsRequest{Direction: models.DirectionLTR, Theme: models.ThemeDark})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeBody[session.Settings](t, w)
	if got.Direction != models.DirectionLTR || got.Theme != models.ThemeDark {
		t.Errorf("settings = %+v", got)
	}

	w = e.do(t, http.MethodPut, "/settings", SettingsRequest{Theme: "neon"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad theme status = %d", w.Code)
	}
}

func TestRecentAndDocuments(t *testing.T) {
	e := newTestEnv(t, "")
	testutil.WriteFile(t, e.root, "a.md", "---\ntitle: A\n---\nbody")
	testutil.WriteFile(t, e.root, "b.txt", "plain")
	e.do(t, http.MethodPost, "/document/open", OpenRequest{Path: "a.md"})

	w := e.do(t, http.MethodGet, "/recent", nil)
	recent := decodeBody[map[string][]models.RecentDocument](t, w)["recent"]
	if len(recent) != 1 || recent[0].Path != "a.md" || recent[0].Title != "A" {
		t.Errorf("recent = %+v", recent)
	}

	w = e.do(t, http.MethodGet, "/documents", nil)
	var listing struct {
		Documents []struct {
			Path string `json:"path"`
		} `json:"documents"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &listing)
	if len(listing.Documents) != 2 {
		t.Errorf("documents = %+v", listing.Documents)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := newTestEnv(t, "secret123")
	w := e.do(t, http.MethodGet, "/document", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := newTestEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/document", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := newTestEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/document", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newTestEnv(t, "secret")
	w := e.do(t, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_StreamsSurfaceCommands(t *testing.T) {
	e := newTestEnv(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		e.router.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	e.signal(t, SignalRequest{Kind: "key", Key: "Tab", State: SurfaceState{Focused: true}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	for _, want := range []string{"event: surface.command", `"op":"set_text"`, "event: stats.updated", "event: document.changed"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %q in %q", want, body)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	e := newTestEnv(t, "")
	h := MetricsMiddleware(m)(e.router)

	req := httptest.NewRequest(http.MethodGet, "/document", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		`vertext_http_requests_total{method="GET",status="200"} 1`,
		`vertext_http_requests_total{method="GET",status="404"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func rangeAt(off int) editbuf.Range {
	return editbuf.Range{Start: off, End: off}
}
