package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kbuild/filemonitor/internal/globmatch"
)

// probeSnapshot walks a previously built snapshot against the current
// filesystem state under root. It returns the first changed path it
// finds (changedPath != ""), or an updated snapshot plus a flag saying
// whether that snapshot differs enough from set to be worth persisting
// even though nothing monitored changed.
//
// A changed path short-circuits by being threaded back as an ordinary
// return value and checked by the caller at each level, rather than via
// a panic/recover or sentinel-error short-circuit.
func probeSnapshot(root string, set MonitorStateFileSet) (changedPath string, updated MonitorStateFileSet, cacheChanged bool, err error) {
	newFiles := make([]MonitorStateFile, 0, len(set.Files))
	for _, f := range set.Files {
		full := f.Path
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, f.Path)
		}
		if probeStatus(full, f.Status) {
			return f.Path, MonitorStateFileSet{}, false, nil
		}
		newFiles = append(newFiles, f)
	}

	newGlobs := make([]MonitorStateGlob, 0, len(set.Globs))
	for _, g := range set.Globs {
		absRoot, rerr := resolveRoot(root, g.Root)
		if rerr != nil {
			return "", MonitorStateFileSet{}, false, rerr
		}
		path, newState, changed, perr := probeGlobState(absRoot, "", g.GlobState, g.FileKind, g.DirKind)
		if perr != nil {
			return "", MonitorStateFileSet{}, false, perr
		}
		if path != "" {
			return path, MonitorStateFileSet{}, false, nil
		}
		if changed {
			cacheChanged = true
		}
		newGlobs = append(newGlobs, MonitorStateGlob{FileKind: g.FileKind, DirKind: g.DirKind, Root: g.Root, GlobState: newState})
	}

	return "", MonitorStateFileSet{Files: newFiles, Globs: newGlobs}, cacheChanged, nil
}

// probeStatus reports whether the path at fullPath no longer matches
// the recorded FileStatus. I/O errors other than "does not exist" are
// treated as unchanged, per the policy that ambiguous probe failures
// should surface on the action's own next real attempt rather than
// force a spurious rebuild now — except for AlreadyChanged, which
// always reports a change, and NonExistent, where any stat success
// means something now exists where nothing should.
func probeStatus(fullPath string, status FileStatus) bool {
	switch v := status.(type) {
	case FileExists:
		fi, err := os.Stat(fullPath)
		return err != nil || fi.IsDir()
	case FileModTime:
		fi, err := os.Stat(fullPath)
		if err != nil {
			return os.IsNotExist(err)
		}
		if fi.IsDir() {
			return true
		}
		return !fi.ModTime().Equal(v.MTime)
	case FileHashed:
		fi, err := os.Stat(fullPath)
		if err != nil {
			return os.IsNotExist(err)
		}
		if fi.IsDir() {
			return true
		}
		// Equal mtime is not trusted here the way FileModTime trusts it:
		// a touch-back (content overwritten, mtime restored to its old
		// value) would otherwise read as unchanged, which is exactly the
		// under-report the Hashed kind exists to rule out. Always rehash.
		hash, err := hashFile(fullPath)
		if err != nil {
			return false
		}
		return hash != v.Hash
	case DirExists:
		fi, err := os.Stat(fullPath)
		return err != nil || !fi.IsDir()
	case DirModTime:
		fi, err := os.Stat(fullPath)
		if err != nil {
			return os.IsNotExist(err)
		}
		if !fi.IsDir() {
			return true
		}
		return !fi.ModTime().Equal(v.MTime)
	case NonExistent:
		_, err := os.Stat(fullPath)
		return err == nil
	case AlreadyChanged:
		return true
	default:
		return true
	}
}

// probeGlobState probes one node of a glob tree. dir is the absolute
// directory the node is rooted at; relPrefix is the path (relative to
// the glob's own root) accumulated so far, used only to label a
// detected change.
func probeGlobState(dir, relPrefix string, gs GlobState, fk FileKind, dk DirKind) (changedPath string, updated GlobState, cacheChanged bool, err error) {
	switch v := gs.(type) {
	case GlobStateDirs:
		return probeGlobStateDirs(dir, relPrefix, v, fk, dk)
	case GlobStateFiles:
		return probeGlobStateFiles(dir, relPrefix, v)
	case GlobStateDirTrailing:
		return "", GlobStateDirTrailing{}, false, nil
	default:
		return "", nil, false, fmt.Errorf("monitor: unknown GlobState type %T", gs)
	}
}

func relJoin(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + string(filepath.Separator) + name
}

// firstMatchingFilePath walks a built (but not yet probed) GlobState
// looking for the first path that matches the glob's own file pattern,
// used to decide whether a disappeared or newly appeared subtree is
// "empty" for the purposes of the asymmetric cacheChanged policy.
func firstMatchingFilePath(relPrefix string, gs GlobState) (string, bool) {
	switch v := gs.(type) {
	case GlobStateDirs:
		for _, c := range v.Children {
			if p, ok := firstMatchingFilePath(relJoin(relPrefix, c.Name), c.State); ok {
				return p, true
			}
		}
		return "", false
	case GlobStateFiles:
		if len(v.Entries) == 0 {
			return "", false
		}
		return relJoin(relPrefix, v.Entries[0].Name), true
	case GlobStateDirTrailing:
		return "", false
	default:
		return "", false
	}
}

func probeGlobStateDirs(dir, relPrefix string, v GlobStateDirs, fk FileKind, dk DirKind) (string, GlobState, bool, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		// Directory itself vanished; treat exactly like every child
		// being OnlyInLeft below, without re-deriving a usable mtime.
		return mergeVanishedDirs(relPrefix, v)
	}
	dirMTime := fi.ModTime()

	if dirMTime.Equal(v.DirMTime) {
		children := make([]GlobChild, 0, len(v.Children))
		cacheChanged := false
		for _, c := range v.Children {
			path, newState, changed, err := probeGlobState(filepath.Join(dir, c.Name), relJoin(relPrefix, c.Name), c.State, fk, dk)
			if err != nil {
				return "", nil, false, err
			}
			if path != "" {
				return path, nil, false, nil
			}
			if changed {
				cacheChanged = true
			}
			children = append(children, GlobChild{Name: c.Name, State: newState})
		}
		return "", GlobStateDirs{Pieces: v.Pieces, SubGlob: v.SubGlob, DirMTime: dirMTime, Children: children}, cacheChanged, nil
	}

	// Directory mtime changed: re-list, filter, keep directories only,
	// sort, and three-way merge against the previous children.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return mergeVanishedDirs(relPrefix, v)
	}
	var names []string
	for _, e := range entries {
		if !globmatch.Match(v.Pieces, e.Name()) {
			continue
		}
		if fi, err := os.Lstat(filepath.Join(dir, e.Name())); err == nil && fi.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	steps := mergeByKey(v.Children, names,
		func(c GlobChild) string { return c.Name },
		func(n string) string { return n })

	cacheChanged := false
	children := make([]GlobChild, 0, len(steps))
	for _, step := range steps {
		switch step.Side {
		case inBoth:
			path, newState, changed, err := probeGlobState(filepath.Join(dir, step.Left.Name), relJoin(relPrefix, step.Left.Name), step.Left.State, fk, dk)
			if err != nil {
				return "", nil, false, err
			}
			if path != "" {
				return path, nil, false, nil
			}
			if changed {
				cacheChanged = true
			}
			children = append(children, GlobChild{Name: step.Left.Name, State: newState})

		case onlyInLeft:
			// Subdirectory disappeared. If it still held a matching
			// file, that is a real change; otherwise keep the stale
			// entry silently (pruning is deferred to save writes).
			if p, ok := firstMatchingFilePath(relJoin(relPrefix, step.Left.Name), step.Left.State); ok {
				return p, nil, false, nil
			}
			children = append(children, step.Left)

		case onlyInRight:
			// New subdirectory. Build fresh state for it; if it
			// already contains a matching file, that is a real
			// change. Otherwise it is worth persisting.
			sub, err := buildGlobRel(nil, nil, filepath.Join(dir, step.Right), relJoin(relPrefix, step.Right), v.SubGlob, fk, dk)
			if err != nil {
				return "", nil, false, err
			}
			if p, ok := firstMatchingFilePath(relJoin(relPrefix, step.Right), sub); ok {
				return p, nil, false, nil
			}
			cacheChanged = true
			children = append(children, GlobChild{Name: step.Right, State: sub})
		}
	}

	return "", GlobStateDirs{Pieces: v.Pieces, SubGlob: v.SubGlob, DirMTime: dirMTime, Children: children}, cacheChanged, nil
}

// mergeVanishedDirs handles the directory-itself-vanished case the same
// way an OnlyInLeft merge against an empty listing would: any child that
// still holds a matching file is a real change, otherwise stale entries
// are kept as-is.
func mergeVanishedDirs(relPrefix string, v GlobStateDirs) (string, GlobState, bool, error) {
	for _, c := range v.Children {
		if p, ok := firstMatchingFilePath(relJoin(relPrefix, c.Name), c.State); ok {
			return p, nil, false, nil
		}
	}
	return "", GlobStateDirs{Pieces: v.Pieces, SubGlob: v.SubGlob, DirMTime: v.DirMTime, Children: v.Children}, false, nil
}

func probeGlobStateFiles(dir, relPrefix string, v GlobStateFiles) (string, GlobState, bool, error) {
	fi, statErr := os.Stat(dir)
	var dirMTime time.Time
	dirChanged := true
	if statErr == nil {
		dirMTime = fi.ModTime()
		dirChanged = !dirMTime.Equal(v.DirMTime)
	} else {
		dirMTime = v.DirMTime
	}

	entries := v.Entries
	if dirChanged {
		var names []string
		if statErr == nil {
			if dirEntries, err := os.ReadDir(dir); err == nil {
				for _, e := range dirEntries {
					if globmatch.Match(v.Pieces, e.Name()) {
						names = append(names, e.Name())
					}
				}
			}
		}
		sort.Strings(names)

		steps := mergeByKey(v.Entries, names,
			func(e GlobEntry) string { return e.Name },
			func(n string) string { return n })

		filtered := make([]GlobEntry, 0, len(steps))
		for _, step := range steps {
			switch step.Side {
			case onlyInLeft:
				// Disappeared. No filetype check here — the glob-files
				// probe matches by name only, same as the builder.
				return relJoin(relPrefix, step.Left.Name), nil, false, nil
			case onlyInRight:
				// Appeared.
				return relJoin(relPrefix, step.Right), nil, false, nil
			case inBoth:
				filtered = append(filtered, step.Left)
			}
		}
		entries = filtered
	}

	// Whichever way the set of names went, probe each still-present
	// entry's own FileStatus — this is what catches content changes of
	// files that stayed put.
	newEntries := make([]GlobEntry, 0, len(entries))
	for _, e := range entries {
		full := filepath.Join(dir, e.Name)
		if probeStatus(full, e.Status) {
			return relJoin(relPrefix, e.Name), nil, false, nil
		}
		newEntries = append(newEntries, e)
	}

	return "", GlobStateFiles{Pieces: v.Pieces, DirMTime: dirMTime, Entries: newEntries}, false, nil
}
