// Package master polls the watched files of the source of truth and pushes
// the blocks of every changed file to its minion.
package master

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/syncerr"
	"github.com/VersBinarii/thesamo/internal/syncfile"
	"github.com/VersBinarii/thesamo/internal/syncmsg"
	"github.com/VersBinarii/thesamo/internal/tags"
	"github.com/dustin/go-humanize"
)

type State int32

const (
	StateIdle State = iota
	StatePolling
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	default:
		return "idle"
	}
}

// PollResult counts what happened to each file during one poll cycle.
type PollResult struct {
	Dispatched int       `json:"dispatched"`
	Unchanged  int       `json:"unchanged"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	Duration   string    `json:"duration"`
}

// FileStatus is a point in time view of one watched file.
type FileStatus struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Destination  string    `json:"destination"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	Blocks       int       `json:"blocks"`
	Syncs        int       `json:"syncs"`
	LastPacketID string    `json:"last_packet_id,omitempty"`
	LastChecked  time.Time `json:"last_checked,omitzero"`
	LastSynced   time.Time `json:"last_synced,omitzero"`
	LastError    string    `json:"last_error,omitempty"`
}

type target struct {
	file   *syncfile.WatchedFile
	addr   string
	status FileStatus
}

type Controller struct {
	targets    []*target
	markers    tags.MarkerPair
	interval   time.Duration
	dispatcher Dispatcher

	state   atomic.Int32
	trigger chan struct{}

	mu       sync.RWMutex
	forced   map[string]bool
	lastPoll PollResult
}

type Option func(*Controller)

// WithDispatcher replaces the TCP dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Controller) {
		c.dispatcher = d
	}
}

// WithInterval overrides the configured poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.interval = d
	}
}

// New builds a controller from cfg. It fails with a SetupError when the
// configuration is not a master configuration, when a destination cannot be
// resolved, or when a watched file cannot be read.
func New(cfg *config.Config, opts ...Option) (*Controller, error) {
	role, err := cfg.ResolvedRole()
	if err != nil {
		return nil, syncerr.Setup("role", err)
	}
	if role != config.RoleMaster {
		return nil, syncerr.Setupf("role", "configuration marks this process as a %s, not a master", role)
	}

	markers, err := tags.NewMarkerPair(cfg.OpenTag, cfg.CloseTag)
	if err != nil {
		return nil, syncerr.Setup("tags", err)
	}

	c := &Controller{
		markers:  markers,
		interval: cfg.Interval(),
		dispatcher: &TCPDispatcher{
			Encoding:     cfg.WireEncoding(),
			DialTimeout:  cfg.Network.DialTimeout,
			WriteTimeout: cfg.Network.IOTimeout,
		},
		trigger: make(chan struct{}, 1),
		forced:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	seen := make(map[string]string)
	for _, entry := range cfg.Files {
		addr := cfg.Destination(entry)
		if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
			return nil, syncerr.Setup("resolve", fmt.Errorf("%s: %w", addr, err))
		}

		files, err := syncfile.FromEntries([]syncfile.Entry{entry.Entry()})
		if err != nil {
			return nil, syncerr.Setup("files", err)
		}

		for _, f := range files {
			key := f.ID + "@" + addr
			if other, ok := seen[key]; ok {
				return nil, syncerr.Setupf("files", "%s and %s both send %q to %s", other, f.Path, f.ID, addr)
			}
			seen[key] = f.Path

			c.targets = append(c.targets, &target{
				file: f,
				addr: addr,
				status: FileStatus{
					ID:          f.ID,
					Path:        f.Path,
					Destination: addr,
				},
			})
		}
	}

	if err := c.checkFiles(); err != nil {
		return nil, err
	}

	return c, nil
}

// checkFiles fingerprints every file once so that unreadable files fail the
// setup instead of the loop. Every file stays dirty: the first poll after
// start always syncs.
func (c *Controller) checkFiles() error {
	for _, t := range c.targets {
		content, _, err := t.file.Refresh()
		if err != nil {
			return syncerr.Setup("read", err)
		}
		t.file.MarkDirty()
		t.status.Fingerprint = hex.EncodeToString(t.file.Fingerprint())

		n, err := tags.Count(string(content), c.markers)
		if err != nil {
			slog.Warn("unbalanced markers", "file", t.file.Path, "error", err)
			t.status.LastError = err.Error()
			continue
		}
		t.status.Blocks = n
	}
	return nil
}

// Start polls until ctx is done. Between cycles it waits for the poll
// interval or for a Trigger call, whichever comes first.
func (c *Controller) Start(ctx context.Context) error {
	slog.Info("master start", "files", len(c.targets), "interval", c.interval, "markers", c.markers)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		c.Poll(ctx)

		timer.Reset(c.interval)
		select {
		case <-ctx.Done():
			slog.Info("master stop")
			return nil
		case <-timer.C:
		case <-c.trigger:
			slog.Debug("poll triggered")
			if !timer.Stop() {
				<-timer.C
			}
		}
	}
}

// Trigger asks the running loop to poll now. It never blocks.
func (c *Controller) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Resync forces the file with the given identifier to be sent on the next
// poll even if unchanged, and triggers that poll. It reports whether the
// identifier is known.
func (c *Controller) Resync(id string) bool {
	found := false
	for _, t := range c.targets {
		if t.file.ID == id {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	c.mu.Lock()
	c.forced[id] = true
	c.mu.Unlock()

	c.Trigger()
	return true
}

// Poll runs one cycle over every watched file, in configuration order.
// Failures are logged per file and never stop the cycle.
func (c *Controller) Poll(ctx context.Context) PollResult {
	c.state.Store(int32(StatePolling))
	defer c.state.Store(int32(StateIdle))

	res := PollResult{StartedAt: time.Now()}
	for _, t := range c.targets {
		if ctx.Err() != nil {
			break
		}
		c.pollOne(ctx, t, &res)
	}
	res.Duration = time.Since(res.StartedAt).String()

	slog.Debug("poll done", "dispatched", res.Dispatched, "unchanged", res.Unchanged, "failed", res.Failed)

	c.mu.Lock()
	c.lastPoll = res
	c.mu.Unlock()
	return res
}

func (c *Controller) pollOne(ctx context.Context, t *target, res *PollResult) {
	c.mu.Lock()
	if c.forced[t.file.ID] {
		t.file.MarkDirty()
		delete(c.forced, t.file.ID)
	}
	c.mu.Unlock()

	content, changed, err := t.file.Refresh()
	now := time.Now()
	if err != nil {
		slog.Error("poll read", "file", t.file.Path, "error", err)
		res.Failed++
		c.updateStatus(t, func(s *FileStatus) {
			s.LastChecked = now
			s.LastError = err.Error()
		})
		return
	}

	fingerprint := hex.EncodeToString(t.file.Fingerprint())
	if !changed {
		slog.Debug("no changes", "file", t.file.Path)
		res.Unchanged++
		c.updateStatus(t, func(s *FileStatus) {
			s.LastChecked = now
			s.Fingerprint = fingerprint
		})
		return
	}

	blocks, err := tags.Extract(string(content), c.markers)
	if err != nil {
		slog.Error("poll extract", "file", t.file.Path, "error", err)
		res.Failed++
		c.updateStatus(t, func(s *FileStatus) {
			s.LastChecked = now
			s.Fingerprint = fingerprint
			s.LastError = err.Error()
		})
		return
	}

	packet := syncmsg.NewPacket(t.file.ID, blocks)
	if err := c.dispatcher.Dispatch(ctx, t.addr, packet); err != nil {
		slog.Error("sync dispatch", "file", t.file.Path, "to", t.addr, "packet", packet.ID, "error", err)
		res.Failed++
		c.updateStatus(t, func(s *FileStatus) {
			s.LastChecked = now
			s.Fingerprint = fingerprint
			s.Blocks = len(blocks)
			s.LastError = err.Error()
		})
		return
	}

	slog.Info("sync sent",
		"file", t.file.Path,
		"id", t.file.ID,
		"to", t.addr,
		"packet", packet.ID,
		"blocks", len(blocks),
		"size", humanize.Bytes(uint64(packet.Size())),
	)
	res.Dispatched++
	c.updateStatus(t, func(s *FileStatus) {
		s.LastChecked = now
		s.LastSynced = now
		s.Fingerprint = fingerprint
		s.Blocks = len(blocks)
		s.Syncs++
		s.LastPacketID = packet.ID
		s.LastError = ""
	})
}

func (c *Controller) updateStatus(t *target, fn func(*FileStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&t.status)
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Status returns a snapshot of every watched file.
func (c *Controller) Status() []FileStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]FileStatus, len(c.targets))
	for i, t := range c.targets {
		out[i] = t.status
	}
	return out
}

func (c *Controller) LastPoll() PollResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPoll
}

// Paths returns the local paths of every watched file.
func (c *Controller) Paths() []string {
	paths := make([]string, len(c.targets))
	for i, t := range c.targets {
		paths[i] = t.file.Path
	}
	return paths
}
