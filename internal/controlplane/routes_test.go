package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/master"
	"github.com/VersBinarii/thesamo/internal/minion"
	"github.com/VersBinarii/thesamo/internal/syncmsg"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopDispatcher struct {
	sent []*syncmsg.Packet
}

func (d *nopDispatcher) Dispatch(_ context.Context, _ string, p *syncmsg.Packet) error {
	d.sent = append(d.sent, p)
	return nil
}

func newMasterBackend(t *testing.T) (*MasterBackend, *nopDispatcher) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.conf")
	require.NoError(t, os.WriteFile(path, []byte("%%>a<%%"), 0o644))

	d := &nopDispatcher{}
	c, err := master.New(&config.Config{
		Role:     "master",
		OpenTag:  "%%>",
		CloseTag: "<%%",
		Network:  config.Network{BindAddress: "127.0.0.1", BindPort: 7400},
		Files:    []config.FileEntry{{Path: path}},
	}, master.WithDispatcher(d), master.WithInterval(time.Hour))
	require.NoError(t, err)
	return &MasterBackend{Controller: c}, d
}

func newMinionBackend(t *testing.T, stateDir string) *MinionBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.conf")
	require.NoError(t, os.WriteFile(path, []byte("%%>a<%%"), 0o644))

	l, err := minion.New(&config.Config{
		Role:     "minion",
		OpenTag:  "%%>",
		CloseTag: "<%%",
		StateDir: stateDir,
		Network:  config.Network{BindAddress: "127.0.0.1"},
		Files:    []config.FileEntry{{Path: path}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return &MinionBackend{Listener: l}
}

func do(t *testing.T, h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_TokenAuth(t *testing.T) {
	backend, _ := newMasterBackend(t)
	h := SetupRoutes(backend, &RouteConfig{Auth: TokenAuthConfig{Token: "secret"}})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/status", "nope").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/status", "secret").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/status?token=secret", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/status", "secre").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/status", "secrets").Code)

	// index is public
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/", "").Code)
}

func TestRoutes_MasterStatusAndSync(t *testing.T) {
	backend, d := newMasterBackend(t)
	h := SetupRoutes(backend, &RouteConfig{})

	w := do(t, h, http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var status struct {
		Role    string        `json:"role"`
		Summary MasterSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "master", status.Role)
	assert.Equal(t, "idle", status.Summary.State)
	assert.Equal(t, "1h0m0s", status.Summary.Interval)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/sync?id=missing.conf", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/sync?id=app.conf", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/v1/sync", "").Code)

	backend.Controller.Poll(context.Background())
	assert.Len(t, d.sent, 1)

	w = do(t, h, http.MethodGet, "/v1/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	var files struct {
		Files []master.FileStatus `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	require.Len(t, files.Files, 1)
	assert.Equal(t, "app.conf", files.Files[0].ID)
	assert.Equal(t, 1, files.Files[0].Syncs)

	// masters keep no journal
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/journal", "").Code)
}

func TestRoutes_MinionJournal(t *testing.T) {
	backend := newMinionBackend(t, t.TempDir())
	_, err := backend.Listener.Apply(syncmsg.NewPacket("app.conf", []string{"b"}), "127.0.0.1:1")
	require.NoError(t, err)

	h := SetupRoutes(backend, &RouteConfig{})

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/sync", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/journal?limit=0x", "").Code)

	w := do(t, h, http.MethodGet, "/v1/journal?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []minion.JournalEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, minion.OutcomeApplied, resp.Entries[0].Outcome)
}

func TestRoutes_MinionWithoutStateDir(t *testing.T) {
	backend := newMinionBackend(t, "")
	h := SetupRoutes(backend, &RouteConfig{})

	w := do(t, h, http.MethodGet, "/v1/journal", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), ErrCodeNotSupported)
}

func TestHandler_StatusWithoutBackend(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/status", nil)

	NewHandler(nil).Status(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutes_NotFound(t *testing.T) {
	backend, _ := newMasterBackend(t)
	h := SetupRoutes(backend, &RouteConfig{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
}

func TestServer_StartStop(t *testing.T) {
	backend, _ := newMasterBackend(t)
	s, err := NewServer(&Config{Addr: "127.0.0.1:0"}, backend)
	require.NoError(t, err)
	require.NoError(t, s.Listen())

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, <-done)
}

func TestNewServer_EmptyAddr(t *testing.T) {
	_, err := NewServer(&Config{}, nil)
	assert.Error(t, err)
}
