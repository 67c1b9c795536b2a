// Package minion receives sync packets and splices their blocks into the
// local copies of the watched files.
package minion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/syncerr"
	"github.com/VersBinarii/thesamo/internal/syncfile"
	"github.com/VersBinarii/thesamo/internal/tags"
	"github.com/VersBinarii/thesamo/internal/utils"
	"github.com/VersBinarii/thesamo/internal/wireproto"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

// LockFile is the instance lock kept inside the state directory.
const LockFile = "thesamo.lock"

var ErrStateDirLocked = errors.New("state directory is locked by another minion")

// Stats counts connections handled since start.
type Stats struct {
	Accepted int64 `json:"accepted"`
	Dropped  int64 `json:"dropped"`
	Invalid  int64 `json:"invalid"`
	Packets  int64 `json:"packets"`
}

type Listener struct {
	files   map[string]*localFile
	order   []*localFile
	markers tags.MarkerPair

	ln          net.Listener
	readTimeout time.Duration
	maxPacket   int64
	limiter     *ipLimiter

	journal     *Journal
	lock        *flock.Flock
	releaseOnce sync.Once

	wg       sync.WaitGroup
	accepted atomic.Int64
	dropped  atomic.Int64
	invalid  atomic.Int64
	packets  atomic.Int64
}

// New binds the listening socket described by cfg. It fails with a
// SetupError when the configuration is not a minion configuration, when two
// files share an identifier, or when the socket cannot be bound.
func New(cfg *config.Config) (*Listener, error) {
	role, err := cfg.ResolvedRole()
	if err != nil {
		return nil, syncerr.Setup("role", err)
	}
	if role != config.RoleMinion {
		return nil, syncerr.Setupf("role", "configuration marks this process as a %s, not a minion", role)
	}

	markers, err := tags.NewMarkerPair(cfg.OpenTag, cfg.CloseTag)
	if err != nil {
		return nil, syncerr.Setup("tags", err)
	}

	entries := make([]syncfile.Entry, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		entries = append(entries, f.Entry())
	}
	watched, err := syncfile.FromEntries(entries)
	if err != nil {
		return nil, syncerr.Setup("files", err)
	}
	if err := syncfile.CheckUniqueIDs(watched); err != nil {
		return nil, syncerr.Setup("files", err)
	}

	l := &Listener{
		files:       make(map[string]*localFile, len(watched)),
		markers:     markers,
		readTimeout: cfg.Network.IOTimeout,
		maxPacket:   cfg.Network.MaxPacketSize,
		limiter:     newIPLimiter(cfg.Network.AcceptRate, cfg.Network.AcceptBurst, maxTrackedIPs),
	}
	for _, f := range watched {
		lf := &localFile{file: f, status: FileStatus{ID: f.ID, Path: f.Path}}
		l.files[f.ID] = lf
		l.order = append(l.order, lf)
	}

	if cfg.StateDir != "" {
		if err := l.openState(cfg.StateDir); err != nil {
			return nil, err
		}
	}

	ln, err := net.Listen("tcp", cfg.BindAddr())
	if err != nil {
		l.closeState()
		return nil, syncerr.Setup("bind", err)
	}
	l.ln = ln

	return l, nil
}

func (l *Listener) openState(stateDir string) error {
	dir, err := utils.ResolvePath(stateDir)
	if err != nil {
		return syncerr.Setup("state dir", err)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return syncerr.Setup("state dir", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return syncerr.Setup("lock", err)
	}
	if !locked {
		return syncerr.Setup("lock", fmt.Errorf("%w: %s", ErrStateDirLocked, dir))
	}
	l.lock = lock

	journal, err := OpenJournal(filepath.Join(dir, JournalFile))
	if err != nil {
		l.closeState()
		return syncerr.Setup("journal", err)
	}
	l.journal = journal
	return nil
}

func (l *Listener) closeState() {
	if l.journal != nil {
		if err := l.journal.Close(); err != nil {
			slog.Warn("journal close", "error", err)
		}
		l.journal = nil
	}
	if l.lock != nil && l.lock.Locked() {
		if err := l.lock.Unlock(); err != nil {
			slog.Warn("state dir unlock", "error", err)
		}
	}
	l.lock = nil
}

func (l *Listener) release() {
	l.releaseOnce.Do(l.closeState)
}

// Addr is the bound listen address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Journal returns the apply journal, or nil when no state dir is configured.
func (l *Listener) Journal() *Journal {
	return l.journal
}

func (l *Listener) Stats() Stats {
	return Stats{
		Accepted: l.accepted.Load(),
		Dropped:  l.dropped.Load(),
		Invalid:  l.invalid.Load(),
		Packets:  l.packets.Load(),
	}
}

// Serve accepts connections until ctx is done, then waits for in-flight
// handlers and releases the state directory.
func (l *Listener) Serve(ctx context.Context) error {
	slog.Info("minion listening", "addr", l.ln.Addr(), "files", len(l.order), "markers", l.markers)

	stop := context.AfterFunc(ctx, func() {
		l.ln.Close()
	})
	defer stop()

	defer func() {
		l.wg.Wait()
		l.release()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				slog.Info("minion stop")
				return nil
			}
			slog.Error("accept", "error", syncerr.Transport("accept", l.ln.Addr().String(), err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		l.accepted.Add(1)
		if !l.limiter.Allow(remoteIP(conn.RemoteAddr())) {
			l.dropped.Add(1)
			slog.Warn("connection dropped", "from", conn.RemoteAddr(), "reason", "rate limited")
			conn.Close()
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handle(conn)
		}()
	}
}

// Close stops accepting and releases the state directory without waiting
// for in-flight handlers. It is only needed when Serve was never called.
func (l *Listener) Close() error {
	err := l.ln.Close()
	l.release()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	if l.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			slog.Error("sync read", "error", syncerr.Transport("deadline", remote, err))
			return
		}
	}

	p, enc, n, err := wireproto.ReadPacket(conn, l.maxPacket)
	if err != nil {
		l.invalid.Add(1)
		slog.Error("sync read", "error", syncerr.Transport("decode", remote, err))
		return
	}

	l.packets.Add(1)
	slog.Debug("sync received", "file", p.File, "packet", p.ID, "from", remote, "encoding", enc, "size", humanize.Bytes(uint64(n)))

	// errors are logged and journaled by Apply
	_, _ = l.Apply(p, remote)
}

func remoteIP(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
