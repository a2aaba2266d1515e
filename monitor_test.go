package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheck_FirstRun(t *testing.T) {
	root := t.TempDir()
	m := New(filepath.Join(root, "cache"))

	res, err := m.Check(root, 1)
	require.NoError(t, err)
	require.Equal(t, ReasonFirstRun, res.Reason)
}

func TestCheckUpdateRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o644))

	m := New(filepath.Join(root, "..cache"))
	paths := []MonitorPath{
		SinglePath{FileKind: FileExistsKind, DirKind: DirNotExists, Path: "a"},
	}

	start, err := m.BeginUpdate()
	require.NoError(t, err)
	require.NoError(t, m.Update(root, &start, paths, 1, "v1"))

	res, err := m.Check(root, 1)
	require.NoError(t, err)
	require.Equal(t, ReasonNone, res.Reason)
	require.Equal(t, "v1", res.CachedResult)
	require.Len(t, res.DeclaredPaths, 1)
}

func TestCheck_ContentChangeWithHashedTouchBack(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "a")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	m := New(filepath.Join(root, "..cache"))
	paths := []MonitorPath{
		SinglePath{FileKind: FileHashedKind, DirKind: DirNotExists, Path: "a"},
	}
	require.NoError(t, m.Update(root, nil, paths, 1, "v"))

	fi, err := os.Stat(filePath)
	require.NoError(t, err)
	mtime := fi.ModTime()

	require.NoError(t, os.WriteFile(filePath, []byte("y"), 0o644))
	require.NoError(t, os.Chtimes(filePath, mtime, mtime))

	res, err := m.Check(root, 1)
	require.NoError(t, err)
	require.Equal(t, ReasonFileChanged, res.Reason)
	require.Equal(t, "a", res.ChangedPath)
}

func TestCheck_KeyChangedNoFileChange(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o644))

	m := New(filepath.Join(root, "..cache"))
	paths := []MonitorPath{
		SinglePath{FileKind: FileExistsKind, DirKind: DirNotExists, Path: "a"},
	}
	require.NoError(t, m.Update(root, nil, paths, 1, "v"))

	res, err := m.Check(root, 2)
	require.NoError(t, err)
	require.Equal(t, ReasonKeyChanged, res.Reason)
	require.Equal(t, 1, res.OldKey)
}

func TestCheck_KeyOnlyGuaranteeWithValueChangeOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o644))

	m := New(filepath.Join(root, "..cache"), WithValueChangeOnly(true))
	paths := []MonitorPath{
		SinglePath{FileKind: FileExistsKind, DirKind: DirNotExists, Path: "a"},
	}
	require.NoError(t, m.Update(root, nil, paths, 1, "v"))

	res, err := m.Check(root, 2)
	require.NoError(t, err)
	require.Equal(t, ReasonKeyChanged, res.Reason, "key-only guarantee: no file changed, so it must not report FileChanged")
	require.Equal(t, 1, res.OldKey)
}

func TestCheck_KeyOnlyGuaranteePrefersFileChanged(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "a")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	m := New(filepath.Join(root, "..cache"), WithValueChangeOnly(true))
	paths := []MonitorPath{
		SinglePath{FileKind: FileExistsKind, DirKind: DirNotExists, Path: "a"},
	}
	require.NoError(t, m.Update(root, nil, paths, 1, "v"))

	require.NoError(t, os.Remove(filePath))

	res, err := m.Check(root, 2)
	require.NoError(t, err)
	require.Equal(t, ReasonFileChanged, res.Reason, "a real file change must take priority over a key change even under the key-only guarantee")
}

func TestCheck_ConservativeDuringActionDetection(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "a")

	m := New(filepath.Join(root, "..cache"))
	paths := []MonitorPath{
		SinglePath{FileKind: FileModTimeKind, DirKind: DirNotExists, Path: "a"},
	}

	start, err := m.BeginUpdate()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	require.NoError(t, m.Update(root, &start, paths, 1, "v"))

	res, err := m.Check(root, 1)
	require.NoError(t, err)
	require.Equal(t, ReasonFileChanged, res.Reason)
	require.Equal(t, "a", res.ChangedPath)
}

func TestCheck_CorruptCacheIsBenign(t *testing.T) {
	root := t.TempDir()
	cachePath := filepath.Join(root, "..cache")
	require.NoError(t, os.WriteFile(cachePath, []byte("definitely not a gob stream"), 0o644))

	m := New(cachePath)
	res, err := m.Check(root, 1)
	require.NoError(t, err)
	require.Equal(t, ReasonCorruptCache, res.Reason)

	paths := []MonitorPath{
		SinglePath{FileKind: FileNotExists, DirKind: DirNotExists, Path: "missing"},
	}
	require.NoError(t, m.Update(root, nil, paths, 1, "v"), "update must succeed normally after a corrupt cache")

	res2, err := m.Check(root, 1)
	require.NoError(t, err)
	require.Equal(t, ReasonNone, res2.Reason)
}

func TestInspectDoesNotTouchCacheFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o644))

	cachePath := filepath.Join(root, "..cache")
	m := New(cachePath)

	paths := []MonitorPath{
		SinglePath{FileKind: FileExistsKind, DirKind: DirNotExists, Path: "a"},
	}
	snap, err := m.Inspect(root, paths)
	require.NoError(t, err)
	require.Len(t, snap.Files, 1)

	_, statErr := os.Stat(cachePath)
	require.True(t, os.IsNotExist(statErr), "Inspect must not create a cache file")
}

func TestBeginUpdateTimestampPrecedesFutureMTimes(t *testing.T) {
	root := t.TempDir()
	m := New(filepath.Join(root, "..cache"))

	start, err := m.BeginUpdate()
	require.NoError(t, err)
	require.False(t, time.Time(start).After(time.Now()))
}
