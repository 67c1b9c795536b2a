package controlplane

import (
	"errors"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/master"
	"github.com/VersBinarii/thesamo/internal/minion"
)

var (
	ErrUnknownFile  = errors.New("unknown file identifier")
	ErrNotSupported = errors.New("not supported by this role")
	ErrNoJournal    = errors.New("no state_dir configured, journal disabled")
)

// Backend is the running role the control plane reports on.
type Backend interface {
	Role() config.Role
	Summary() any
	Files() any
}

// Syncer is implemented by backends that can push files on demand. An empty
// id syncs every file.
type Syncer interface {
	Sync(id string) error
}

// JournalSource is implemented by backends that keep an apply journal.
type JournalSource interface {
	Journal(limit int) ([]minion.JournalEntry, error)
}

type MasterBackend struct {
	Controller *master.Controller
}

type MasterSummary struct {
	State    string            `json:"state"`
	Interval string            `json:"interval"`
	LastPoll master.PollResult `json:"last_poll"`
}

func (b *MasterBackend) Role() config.Role {
	return config.RoleMaster
}

func (b *MasterBackend) Summary() any {
	return &MasterSummary{
		State:    b.Controller.State().String(),
		Interval: b.Controller.Interval().String(),
		LastPoll: b.Controller.LastPoll(),
	}
}

func (b *MasterBackend) Files() any {
	return b.Controller.Status()
}

func (b *MasterBackend) Sync(id string) error {
	if id == "" {
		b.Controller.Trigger()
		return nil
	}
	if !b.Controller.Resync(id) {
		return ErrUnknownFile
	}
	return nil
}

type MinionBackend struct {
	Listener *minion.Listener
}

type MinionSummary struct {
	Addr  string       `json:"addr"`
	Stats minion.Stats `json:"stats"`
}

func (b *MinionBackend) Role() config.Role {
	return config.RoleMinion
}

func (b *MinionBackend) Summary() any {
	return &MinionSummary{
		Addr:  b.Listener.Addr().String(),
		Stats: b.Listener.Stats(),
	}
}

func (b *MinionBackend) Files() any {
	return b.Listener.Status()
}

func (b *MinionBackend) Journal(limit int) ([]minion.JournalEntry, error) {
	j := b.Listener.Journal()
	if j == nil {
		return nil, ErrNoJournal
	}
	return j.Recent(limit)
}
