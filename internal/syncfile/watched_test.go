package syncfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/VersBinarii/thesamo/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint([]byte("listen 80;\n"))
	b := Fingerprint([]byte("listen 80;\n"))
	c := Fingerprint([]byte("listen 81;\n"))

	assert.Len(t, a, FingerprintSize)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, SameFingerprint(a, b))
	assert.False(t, SameFingerprint(a, c))
	assert.False(t, SameFingerprint(nil, nil))
	assert.False(t, SameFingerprint([]byte{1}, []byte{1}))
}

func TestFingerprint_EmptyContent(t *testing.T) {
	assert.Len(t, Fingerprint(nil), FingerprintSize)
	assert.Equal(t, Fingerprint(nil), Fingerprint([]byte{}))
}

func TestNewWatchedFile_DefaultID(t *testing.T) {
	f := NewWatchedFile("/etc/app/app.conf", "")
	assert.Equal(t, "app.conf", f.ID)
	assert.Equal(t, "app.conf", f.Name())
	assert.Nil(t, f.Fingerprint())

	g := NewWatchedFile("/etc/app/app.conf", "frontend-app")
	assert.Equal(t, "frontend-app", g.ID)
}

func TestWatchedFile_Refresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	f := NewWatchedFile(path, "")

	content, changed, err := f.Refresh()
	require.NoError(t, err)
	assert.True(t, changed, "first read is always a change")
	assert.Equal(t, "v1", string(content))
	first := f.Fingerprint()
	require.NotNil(t, first)

	_, changed, err = f.Refresh()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	content, changed, err = f.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "v2", string(content))
	assert.NotEqual(t, first, f.Fingerprint())
}

func TestWatchedFile_MarkDirty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	f := NewWatchedFile(path, "")
	_, _, err := f.Refresh()
	require.NoError(t, err)

	f.MarkDirty()
	assert.True(t, f.Dirty())

	_, changed, err := f.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, f.Dirty())
}

func TestWatchedFile_ReadMissing(t *testing.T) {
	f := NewWatchedFile(filepath.Join(t.TempDir(), "missing.conf"), "")
	_, _, err := f.Refresh()
	require.Error(t, err)
	assert.True(t, syncerr.IsFileIO(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, f.Fingerprint())
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conf.d"), 0o755))
	for _, name := range []string{"b.conf", "a.conf", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "conf.d", name), []byte("x"), 0o644))
	}

	paths, err := Expand(filepath.Join(dir, "conf.d", "*.conf"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "conf.d", "a.conf"),
		filepath.Join(dir, "conf.d", "b.conf"),
	}, paths)

	plain := filepath.Join(dir, "not-there.conf")
	paths, err = Expand(plain)
	require.NoError(t, err)
	assert.Equal(t, []string{plain}, paths)

	_, err = Expand(filepath.Join(dir, "*.nothing"))
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFromEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.conf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.conf"), []byte("x"), 0o644))

	files, err := FromEntries([]Entry{
		{Path: filepath.Join(dir, "b.conf"), ID: "bee"},
		{Path: filepath.Join(dir, "*.conf")},
	})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "bee", files[0].ID)
	assert.Equal(t, "a.conf", files[1].ID)
	assert.Equal(t, "b.conf", files[2].ID)

	_, err = FromEntries([]Entry{{Path: filepath.Join(dir, "*.conf"), ID: "x"}})
	assert.ErrorIs(t, err, ErrIDOnGlob)
}

func TestCheckUniqueIDs(t *testing.T) {
	ok := []*WatchedFile{
		NewWatchedFile("/a/app.conf", ""),
		NewWatchedFile("/b/app.conf", "b-app"),
	}
	assert.NoError(t, CheckUniqueIDs(ok))

	dup := []*WatchedFile{
		NewWatchedFile("/a/app.conf", ""),
		NewWatchedFile("/b/app.conf", ""),
	}
	assert.ErrorIs(t, CheckUniqueIDs(dup), ErrDuplicateID)
}
