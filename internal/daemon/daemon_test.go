package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/master"
	"github.com/VersBinarii/thesamo/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func baseConfig(role string, port int, files ...string) *config.Config {
	cfg := &config.Config{
		Role:     role,
		OpenTag:  "%%>",
		CloseTag: "<%%",
		Network: config.Network{
			BindAddress: "127.0.0.1",
			BindPort:    port,
			DialTimeout: time.Second,
			IOTimeout:   time.Second,
		},
	}
	for _, f := range files {
		cfg.Files = append(cfg.Files, config.FileEntry{Path: f})
	}
	return cfg
}

func TestRunMaster_SetupErrorReturnsImmediately(t *testing.T) {
	cfg := baseConfig("master", 7400, filepath.Join(t.TempDir(), "missing.conf"))
	err := RunMaster(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, syncerr.IsSetup(err))
}

func TestRunMinion_WrongRole(t *testing.T) {
	cfg := baseConfig("master", 0, filepath.Join(t.TempDir(), "app.conf"))
	err := RunMinion(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, syncerr.IsSetup(err))
}

func TestRun_MasterToMinionWithWatcher(t *testing.T) {
	port := freePort(t)
	src := filepath.Join(t.TempDir(), "app.conf")
	dst := filepath.Join(t.TempDir(), "app.conf")
	require.NoError(t, os.WriteFile(src, []byte("%%>one<%%"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("local %%>old<%% tail"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	minionCfg := baseConfig("minion", port, dst)
	minionCfg.StateDir = t.TempDir()
	minionCfg.Control.Addr = "127.0.0.1:" + strconv.Itoa(freePort(t))
	minionDone := make(chan error, 1)
	go func() { minionDone <- RunMinion(ctx, minionCfg) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", minionCfg.BindAddr())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	masterCfg := baseConfig("master", port, src)
	masterCfg.Watch = true
	masterDone := make(chan error, 1)
	go func() { masterDone <- RunMaster(ctx, masterCfg, master.WithInterval(time.Hour)) }()

	read := func() string {
		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		return string(data)
	}
	require.Eventually(t, func() bool { return read() == "local %%>one<%% tail" }, 3*time.Second, 20*time.Millisecond)

	// the hour long interval means only the watcher can cause this sync
	require.NoError(t, os.WriteFile(src, []byte("%%>two<%%"), 0o644))
	require.Eventually(t, func() bool { return read() == "local %%>two<%% tail" }, 3*time.Second, 20*time.Millisecond)

	cancel()
	for _, done := range []chan error{masterDone, minionDone} {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}
