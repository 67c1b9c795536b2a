package minion

import (
	"log/slog"
	"sync"
	"time"

	"github.com/VersBinarii/thesamo/internal/syncerr"
	"github.com/VersBinarii/thesamo/internal/syncfile"
	"github.com/VersBinarii/thesamo/internal/syncmsg"
	"github.com/VersBinarii/thesamo/internal/tags"
	"github.com/VersBinarii/thesamo/internal/utils"
)

// Outcome is what applying one packet did to the local file.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

// FileStatus is a point in time view of one local file.
type FileStatus struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Applied      int       `json:"applied"`
	Failed       int       `json:"failed"`
	LastPacketID string    `json:"last_packet_id,omitempty"`
	LastOutcome  Outcome   `json:"last_outcome,omitempty"`
	LastApplied  time.Time `json:"last_applied,omitzero"`
	LastError    string    `json:"last_error,omitempty"`
}

// localFile serializes the read-modify-write of one file.
type localFile struct {
	file *syncfile.WatchedFile

	mu     sync.Mutex
	status FileStatus
}

// Apply splices the blocks of p into the local file it names. A packet for
// an unknown identifier is ignored. On any error the local file is left as
// it was.
func (l *Listener) Apply(p *syncmsg.Packet, remote string) (Outcome, error) {
	lf, ok := l.files[p.File]
	if !ok {
		slog.Debug("packet not for us", "file", p.File, "packet", p.ID, "from", remote)
		return OutcomeIgnored, nil
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()

	outcome, err := l.splice(lf.file, p)

	lf.status.LastPacketID = p.ID
	lf.status.LastOutcome = outcome
	if err != nil {
		lf.status.Failed++
		lf.status.LastError = err.Error()
	} else {
		lf.status.Applied++
		lf.status.LastApplied = time.Now()
		lf.status.LastError = ""
	}

	l.record(lf.file, p, remote, outcome, err)
	return outcome, err
}

func (l *Listener) splice(f *syncfile.WatchedFile, p *syncmsg.Packet) (Outcome, error) {
	current, err := f.Read()
	if err != nil {
		return OutcomeFailed, err
	}

	updated, err := tags.Substitute(string(current), p.Blocks, l.markers)
	if err != nil {
		return OutcomeFailed, err
	}

	if updated == string(current) {
		return OutcomeUnchanged, nil
	}

	if err := utils.WriteFileAtomic(f.Path, []byte(updated), 0o644); err != nil {
		return OutcomeFailed, syncerr.FileIO("write", f.Path, err)
	}
	return OutcomeApplied, nil
}

func (l *Listener) record(f *syncfile.WatchedFile, p *syncmsg.Packet, remote string, outcome Outcome, err error) {
	attrs := []any{"file", f.Path, "packet", p.ID, "from", remote, "blocks", len(p.Blocks)}
	switch {
	case err != nil:
		slog.Error("sync apply", append(attrs, "error", err)...)
	case outcome == OutcomeUnchanged:
		slog.Debug("sync unchanged", attrs...)
	default:
		slog.Info("sync applied", attrs...)
	}

	if l.journal == nil {
		return
	}

	entry := &JournalEntry{
		PacketID:  p.ID,
		FileID:    p.File,
		Path:      f.Path,
		Remote:    remote,
		Blocks:    len(p.Blocks),
		Outcome:   outcome,
		AppliedAt: time.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := l.journal.Record(entry); jerr != nil {
		slog.Warn("journal record", "packet", p.ID, "error", jerr)
	}
}

// Status returns a snapshot of every local file in configuration order.
func (l *Listener) Status() []FileStatus {
	out := make([]FileStatus, 0, len(l.order))
	for _, lf := range l.order {
		lf.mu.Lock()
		out = append(out, lf.status)
		lf.mu.Unlock()
	}
	return out
}
