package monitor

import "time"

// FileStatus is what the snapshot builder recorded about a single path
// (or glob entry) at build time. FileExists, FileModTime, FileHashed,
// DirExists, DirModTime, NonExistent, and AlreadyChanged implement it.
type FileStatus interface {
	fileStatus()
}

// FileExists records that a file was present and only its existence
// matters.
type FileExists struct{}

func (FileExists) fileStatus() {}

// FileModTime records that a file was present with the given mtime.
type FileModTime struct {
	MTime time.Time
}

func (FileModTime) fileStatus() {}

// FileHashed records that a file was present with the given mtime and
// content hash.
type FileHashed struct {
	MTime time.Time
	Hash  string
}

func (FileHashed) fileStatus() {}

// DirExists records that a directory was present and only its existence
// matters.
type DirExists struct{}

func (DirExists) fileStatus() {}

// DirModTime records that a directory was present with the given mtime.
type DirModTime struct {
	MTime time.Time
}

func (DirModTime) fileStatus() {}

// NonExistent records that neither a file nor a directory was present,
// which was acceptable for the declared kinds.
type NonExistent struct{}

func (NonExistent) fileStatus() {}

// AlreadyChanged marks a path as already stale. The next probe reports
// a change unconditionally, regardless of current filesystem state.
type AlreadyChanged struct{}

func (AlreadyChanged) fileStatus() {}

// GlobState is a node in a built glob tree, mirroring the Glob pattern
// tree but carrying observed filesystem state. GlobStateDirs,
// GlobStateFiles, and GlobStateDirTrailing implement it.
type GlobState interface {
	globState()
}

// GlobChild is one sorted (by Name) entry of a GlobStateDirs node.
type GlobChild struct {
	Name  string
	State GlobState
}

// GlobStateDirs records a directory level of a glob: the directories
// under it matching Pieces, recursed into via SubGlob.
type GlobStateDirs struct {
	Pieces   []string
	SubGlob  Glob
	DirMTime time.Time
	// Children is sorted ascending by Name.
	Children []GlobChild
}

func (GlobStateDirs) globState() {}

// GlobEntry is one sorted (by Name) file entry of a GlobStateFiles node.
type GlobEntry struct {
	Name   string
	Status FileStatus
}

// GlobStateFiles records a directory level of a glob whose leaves are
// files matching Pieces.
type GlobStateFiles struct {
	Pieces   []string
	DirMTime time.Time
	// Entries is sorted ascending by Name.
	Entries []GlobEntry
}

func (GlobStateFiles) globState() {}

// GlobStateDirTrailing is a terminal node for the trailing-slash glob
// form (matches the containing directory itself).
type GlobStateDirTrailing struct{}

func (GlobStateDirTrailing) globState() {}

// MonitorStateFile is the built state of one declared SinglePath.
type MonitorStateFile struct {
	FileKind FileKind
	DirKind  DirKind
	Path     string
	Status   FileStatus
}

// MonitorStateGlob is the built state of one declared GlobPath.
type MonitorStateGlob struct {
	FileKind  FileKind
	DirKind   DirKind
	Root      FilePathRoot
	GlobState GlobState
}

// MonitorStateFileSet is a complete snapshot: the built state of every
// declared MonitorPath, in declaration order.
type MonitorStateFileSet struct {
	Files []MonitorStateFile
	Globs []MonitorStateGlob
}

// DeclaredPaths reconstructs the original []MonitorPath from a snapshot.
// The reconstruction is lossless modulo FileKind/DirKind values already
// recorded on each entry and the shape of nested globs; declaration
// order within each of Files/Globs is preserved but the two sequences
// are concatenated in Files-then-Globs order rather than the caller's
// original interleaving, since the snapshot does not record it.
func (s MonitorStateFileSet) DeclaredPaths() []MonitorPath {
	out := make([]MonitorPath, 0, len(s.Files)+len(s.Globs))
	for _, f := range s.Files {
		out = append(out, SinglePath{FileKind: f.FileKind, DirKind: f.DirKind, Path: f.Path})
	}
	for _, g := range s.Globs {
		out = append(out, GlobPath{FileKind: g.FileKind, DirKind: g.DirKind, Glob: RootedGlob{Root: g.Root, Glob: declaredGlob(g.GlobState)}})
	}
	return out
}

// declaredGlob reconstructs a Glob pattern tree from a built GlobState.
func declaredGlob(gs GlobState) Glob {
	switch v := gs.(type) {
	case GlobStateDirs:
		return GlobDir{Pieces: v.Pieces, SubGlob: v.SubGlob}
	case GlobStateFiles:
		return GlobFile{Pieces: v.Pieces}
	case GlobStateDirTrailing:
		return GlobDirTrailing{}
	default:
		return nil
	}
}
