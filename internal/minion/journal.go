package minion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/VersBinarii/thesamo/internal/db"
	"github.com/jmoiron/sqlx"
)

// JournalFile is the name of the journal database inside the state directory.
const JournalFile = "journal.db"

const journalSchema = `
CREATE TABLE IF NOT EXISTS apply_journal (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    packet_id TEXT NOT NULL,
    file_id TEXT NOT NULL,
    path TEXT NOT NULL,
    remote TEXT NOT NULL,
    blocks INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    applied_at TEXT NOT NULL -- RFC3339
);

CREATE INDEX IF NOT EXISTS idx_apply_journal_file ON apply_journal(file_id);
`

// JournalEntry records what happened to one packet.
type JournalEntry struct {
	PacketID  string    `json:"packet_id"`
	FileID    string    `json:"file_id"`
	Path      string    `json:"path"`
	Remote    string    `json:"remote"`
	Blocks    int       `json:"blocks"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

type dbJournalEntry struct {
	PacketID  string `db:"packet_id"`
	FileID    string `db:"file_id"`
	Path      string `db:"path"`
	Remote    string `db:"remote"`
	Blocks    int    `db:"blocks"`
	Outcome   string `db:"outcome"`
	Error     string `db:"error"`
	AppliedAt string `db:"applied_at"`
}

// Journal is the sqlite backed history of packets handled by a minion.
type Journal struct {
	db   *sqlx.DB
	path string
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	conn, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if _, err := conn.Exec(journalSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &Journal{db: conn, path: path}, nil
}

func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Record(e *JournalEntry) error {
	if e == nil {
		return fmt.Errorf("cannot record nil entry")
	}

	row := dbJournalEntry{
		PacketID:  e.PacketID,
		FileID:    e.FileID,
		Path:      e.Path,
		Remote:    e.Remote,
		Blocks:    e.Blocks,
		Outcome:   string(e.Outcome),
		Error:     e.Error,
		AppliedAt: e.AppliedAt.UTC().Format(time.RFC3339Nano),
	}

	query := `INSERT INTO apply_journal (packet_id, file_id, path, remote, blocks, outcome, error, applied_at)
	          VALUES (:packet_id, :file_id, :path, :remote, :blocks, :outcome, :error, :applied_at)`
	if _, err := j.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("record packet %s: %w", e.PacketID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (j *Journal) Recent(limit int) ([]JournalEntry, error) {
	query := `SELECT packet_id, file_id, path, remote, blocks, outcome, error, applied_at
	          FROM apply_journal ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []dbJournalEntry
	if err := j.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	entries := make([]JournalEntry, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(time.RFC3339Nano, r.AppliedAt)
		if err != nil {
			slog.Warn("journal timestamp", "packet", r.PacketID, "value", r.AppliedAt, "error", err)
			continue
		}
		entries = append(entries, JournalEntry{
			PacketID:  r.PacketID,
			FileID:    r.FileID,
			Path:      r.Path,
			Remote:    r.Remote,
			Blocks:    r.Blocks,
			Outcome:   Outcome(r.Outcome),
			Error:     r.Error,
			AppliedAt: at,
		})
	}
	return entries, nil
}

func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.Get(&n, "SELECT COUNT(*) FROM apply_journal"); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	slog.Debug("journal closed", "path", j.path)
	return nil
}
