package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kbuild/filemonitor/internal/globmatch"
)

// hashCacheEntry is one (mtime, hash) pair the builder can reuse instead
// of re-reading a file's content.
type hashCacheEntry struct {
	MTime time.Time
	Hash  string
}

// FileHashCache maps a path uniquely identifying a declared file or glob
// entry to the (mtime, hash) observed for it in a prior snapshot,
// letting the builder skip re-hashing files whose mtime has not changed.
// For a SinglePath, the key is its declared Path. For a glob entry, the
// key is its path relative to the glob's own root, joined with
// relJoin — never the bare basename, since two entries under different
// subdirectories (e.g. "d1/x.txt" and "d2/x.txt") can share a basename.
type FileHashCache map[string]hashCacheEntry

// newHashCache extracts a FileHashCache from every FileHashed entry in a
// prior snapshot, covering both single paths and glob entries.
func newHashCache(prev MonitorStateFileSet) FileHashCache {
	cache := FileHashCache{}
	for _, f := range prev.Files {
		if h, ok := f.Status.(FileHashed); ok {
			cache[f.Path] = hashCacheEntry{MTime: h.MTime, Hash: h.Hash}
		}
	}
	for _, g := range prev.Globs {
		collectGlobHashes(g.GlobState, "", cache)
	}
	return cache
}

func collectGlobHashes(gs GlobState, relPrefix string, cache FileHashCache) {
	switch v := gs.(type) {
	case GlobStateDirs:
		for _, c := range v.Children {
			collectGlobHashes(c.State, relJoin(relPrefix, c.Name), cache)
		}
	case GlobStateFiles:
		for _, e := range v.Entries {
			if h, ok := e.Status.(FileHashed); ok {
				cache[relJoin(relPrefix, e.Name)] = hashCacheEntry{MTime: h.MTime, Hash: h.Hash}
			}
		}
	}
}

// buildSnapshot builds a fresh MonitorStateFileSet for the declared
// paths, rooted at root. start, if non-nil, is the timestamp the calling
// action began at; any file or directory observed with an mtime at or
// after start is marked AlreadyChanged (spec's changed-during-update
// heuristic).
func buildSnapshot(start *Timestamp, hashCache FileHashCache, root string, paths []MonitorPath) (MonitorStateFileSet, error) {
	var set MonitorStateFileSet
	for _, p := range paths {
		switch v := p.(type) {
		case SinglePath:
			status, err := buildSingleStatus(start, hashCache, root, v.Path, v.Path, v.FileKind, v.DirKind)
			if err != nil {
				return MonitorStateFileSet{}, err
			}
			set.Files = append(set.Files, MonitorStateFile{FileKind: v.FileKind, DirKind: v.DirKind, Path: v.Path, Status: status})
		case GlobPath:
			absRoot, err := resolveRoot(root, v.Glob.Root)
			if err != nil {
				return MonitorStateFileSet{}, err
			}
			gs, err := buildGlobRel(start, hashCache, absRoot, "", v.Glob.Glob, v.FileKind, v.DirKind)
			if err != nil {
				return MonitorStateFileSet{}, err
			}
			set.Globs = append(set.Globs, MonitorStateGlob{FileKind: v.FileKind, DirKind: v.DirKind, Root: v.Glob.Root, GlobState: gs})
		default:
			return MonitorStateFileSet{}, fmt.Errorf("monitor: unknown MonitorPath type %T", p)
		}
	}
	return set, nil
}

// resolveRoot resolves a FilePathRoot to an absolute directory,
// contextualized against the caller-supplied relative root.
func resolveRoot(root string, frp FilePathRoot) (string, error) {
	switch frp.Kind {
	case RootRelative:
		abs, err := filepath.Abs(root)
		if err != nil {
			return "", fmt.Errorf("monitor: resolve relative root: %w", err)
		}
		return abs, nil
	case RootAbsolute:
		if !filepath.IsAbs(frp.Path) {
			return "", fmt.Errorf("monitor: RootAbsolute path %q is not absolute", frp.Path)
		}
		return frp.Path, nil
	case RootHome:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("monitor: resolve home root: %w", err)
		}
		return filepath.Join(home, frp.Path), nil
	case RootDrive:
		if frp.Drive != "" {
			return filepath.Join(frp.Drive+":\\", frp.Path), nil
		}
		return frp.Path, nil
	default:
		return "", fmt.Errorf("monitor: unknown FilePathRoot kind %v", frp.Kind)
	}
}

// buildSingleStatus implements the (is-file, file-kind, is-dir, dir-kind)
// dispatch table for one path. relPath is resolved against root to find
// the path on disk; cacheKey is the FileHashCache key for this path,
// which for glob entries differs from relPath (a bare basename) to stay
// unique across subdirectories.
func buildSingleStatus(start *Timestamp, hashCache FileHashCache, root, relPath, cacheKey string, fk FileKind, dk DirKind) (FileStatus, error) {
	full := relPath
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, relPath)
	}

	fi, statErr := os.Stat(full)
	isFile := statErr == nil && !fi.IsDir()
	isDir := statErr == nil && fi.IsDir()

	switch {
	case !isFile && !isDir:
		if fk == FileNotExists && dk == DirNotExists {
			return NonExistent{}, nil
		}
		return AlreadyChanged{}, nil

	case isFile:
		switch fk {
		case FileExistsKind:
			return FileExists{}, nil
		case FileModTimeKind:
			mtime := fi.ModTime()
			if changedDuringUpdate(start, mtime) {
				return AlreadyChanged{}, nil
			}
			return FileModTime{MTime: mtime}, nil
		case FileHashedKind:
			mtime := fi.ModTime()
			if changedDuringUpdate(start, mtime) {
				return AlreadyChanged{}, nil
			}
			if entry, ok := hashCache[cacheKey]; ok && entry.MTime.Equal(mtime) {
				return FileHashed{MTime: mtime, Hash: entry.Hash}, nil
			}
			hash, err := hashFile(full)
			if err != nil {
				return AlreadyChanged{}, nil
			}
			return FileHashed{MTime: mtime, Hash: hash}, nil
		default: // FileNotExists required but a file is present
			return AlreadyChanged{}, nil
		}

	default: // isDir
		switch dk {
		case DirExistsKind:
			return DirExists{}, nil
		case DirModTimeKind:
			mtime := fi.ModTime()
			if changedDuringUpdate(start, mtime) {
				return AlreadyChanged{}, nil
			}
			return DirModTime{MTime: mtime}, nil
		default: // DirNotExists required but a directory is present
			return AlreadyChanged{}, nil
		}
	}
}

// changedDuringUpdate returns true iff start is present and mtime is at
// or after it — the conservative "the action may have already read a
// stale copy of this file" heuristic.
func changedDuringUpdate(start *Timestamp, mtime time.Time) bool {
	if start == nil {
		return false
	}
	return !mtime.Before(time.Time(*start))
}

// buildGlobRel implements Build-glob-rel: list dir's entries and mtime,
// then dispatch on the glob node type. relPrefix is the path, relative
// to the glob's own root, accumulated so far; it is used only to key
// the hash cache uniquely across subdirectories, never for filesystem
// access (dir already encodes the subdirectory on disk).
func buildGlobRel(start *Timestamp, hashCache FileHashCache, dir, relPrefix string, g Glob, fk FileKind, dk DirKind) (GlobState, error) {
	switch v := g.(type) {
	case GlobDir:
		entries, dirMTime, err := listDir(dir)
		if err != nil {
			return nil, err
		}
		var subdirs []string
		for _, name := range entries {
			if !globmatch.Match(v.Pieces, name) {
				continue
			}
			fi, err := os.Lstat(filepath.Join(dir, name))
			if err != nil || !fi.IsDir() {
				continue
			}
			subdirs = append(subdirs, name)
		}
		sort.Strings(subdirs)

		children := make([]GlobChild, 0, len(subdirs))
		for _, name := range subdirs {
			sub, err := buildGlobRel(start, hashCache, filepath.Join(dir, name), relJoin(relPrefix, name), v.SubGlob, fk, dk)
			if err != nil {
				return nil, err
			}
			children = append(children, GlobChild{Name: name, State: sub})
		}
		return GlobStateDirs{Pieces: v.Pieces, SubGlob: v.SubGlob, DirMTime: dirMTime, Children: children}, nil

	case GlobFile:
		entries, dirMTime, err := listDir(dir)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, name := range entries {
			if globmatch.Match(v.Pieces, name) {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		out := make([]GlobEntry, 0, len(names))
		for _, name := range names {
			status, err := buildSingleStatus(start, hashCache, dir, name, relJoin(relPrefix, name), fk, dk)
			if err != nil {
				return nil, err
			}
			out = append(out, GlobEntry{Name: name, Status: status})
		}
		return GlobStateFiles{Pieces: v.Pieces, DirMTime: dirMTime, Entries: out}, nil

	case GlobDirTrailing:
		return GlobStateDirTrailing{}, nil

	case GlobDirRecursive:
		return nil, ErrUnsupportedGlob

	default:
		return nil, fmt.Errorf("monitor: unknown Glob type %T", g)
	}
}

// listDir returns dir's entry basenames (excluding "." and "..", which
// os.ReadDir never includes) and dir's own mtime.
func listDir(dir string) ([]string, time.Time, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("monitor: stat glob dir %q: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("monitor: list glob dir %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, fi.ModTime(), nil
}

// hashFile computes the SHA-256 content hash of path.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
