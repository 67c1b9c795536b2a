// Package syncfile tracks the files a process keeps in sync and detects when
// their content changes.
package syncfile

import (
	"os"
	"path/filepath"

	"github.com/VersBinarii/thesamo/internal/syncerr"
)

// WatchedFile is a file tracked by one master controller or one minion
// listener. Its fingerprint is nil until the first successful read.
//
// A WatchedFile is not safe for concurrent use; its owner serializes access.
type WatchedFile struct {
	// Path is the absolute local path of the file.
	Path string
	// ID is the identifier carried in sync packets. Defaults to the base name.
	ID string

	fingerprint []byte
	dirty       bool
}

func NewWatchedFile(path, id string) *WatchedFile {
	if id == "" {
		id = filepath.Base(path)
	}
	return &WatchedFile{Path: path, ID: id}
}

// Read returns the current on-disk content of the file.
func (f *WatchedFile) Read() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, syncerr.FileIO("read", f.Path, err)
	}
	return data, nil
}

// Refresh reads the file and stores its new fingerprint. changed is true when
// no fingerprint was stored yet, when the file was marked dirty, or when the
// content differs from the previous read.
func (f *WatchedFile) Refresh() (content []byte, changed bool, err error) {
	content, err = f.Read()
	if err != nil {
		return nil, false, err
	}

	sum := Fingerprint(content)
	changed = f.dirty || !SameFingerprint(f.fingerprint, sum)

	f.fingerprint = sum
	f.dirty = false
	return content, changed, nil
}

// MarkDirty forces the next Refresh to report a change.
func (f *WatchedFile) MarkDirty() {
	f.dirty = true
}

func (f *WatchedFile) Dirty() bool {
	return f.dirty
}

// Fingerprint returns a copy of the stored fingerprint, or nil.
func (f *WatchedFile) Fingerprint() []byte {
	if f.fingerprint == nil {
		return nil
	}
	out := make([]byte, len(f.fingerprint))
	copy(out, f.fingerprint)
	return out
}

func (f *WatchedFile) Name() string {
	return filepath.Base(f.Path)
}
