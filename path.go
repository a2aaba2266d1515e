package monitor

// FileKind says what to check about a file if one is present at a
// monitored path.
type FileKind int

const (
	// FileNotExists means the path must not resolve to a file.
	FileNotExists FileKind = iota
	// FileExistsKind means only the file's presence matters.
	FileExistsKind
	// FileModTimeKind means the file's mtime must be unchanged.
	FileModTimeKind
	// FileHashedKind means the file's content hash must be unchanged,
	// with mtime used to skip re-hashing when possible.
	FileHashedKind
)

func (k FileKind) String() string {
	switch k {
	case FileNotExists:
		return "not-exists"
	case FileExistsKind:
		return "exists"
	case FileModTimeKind:
		return "mtime"
	case FileHashedKind:
		return "hashed"
	default:
		return "unknown"
	}
}

// DirKind says what to check about a directory if one is present at a
// monitored path.
type DirKind int

const (
	// DirNotExists means the path must not resolve to a directory.
	DirNotExists DirKind = iota
	// DirExistsKind means only the directory's presence matters.
	DirExistsKind
	// DirModTimeKind means the directory's mtime must be unchanged.
	DirModTimeKind
)

func (k DirKind) String() string {
	switch k {
	case DirNotExists:
		return "not-exists"
	case DirExistsKind:
		return "exists"
	case DirModTimeKind:
		return "mtime"
	default:
		return "unknown"
	}
}

// MonitorPath is a declared input: either a single path or a rooted
// glob. Both SinglePath and GlobPath implement it.
type MonitorPath interface {
	monitorPath()
}

// SinglePath monitors one path, which may turn out to be a file, a
// directory, or neither.
type SinglePath struct {
	FileKind FileKind
	DirKind  DirKind
	Path     string
}

func (SinglePath) monitorPath() {}

// GlobPath monitors every path matched by a glob anchored at a root.
type GlobPath struct {
	FileKind FileKind
	DirKind  DirKind
	Glob     RootedGlob
}

func (GlobPath) monitorPath() {}

// FilePathRootKind identifies how a RootedGlob's root should be resolved
// against the filesystem.
type FilePathRootKind int

const (
	// RootRelative resolves against the caller-supplied root directory.
	RootRelative FilePathRootKind = iota
	// RootAbsolute is already an absolute path.
	RootAbsolute
	// RootHome resolves against the current user's home directory.
	RootHome
	// RootDrive resolves Path under the drive Drive (as Drive + `:\`),
	// on every platform; with an empty Drive, Path is used as given and
	// is not checked to be absolute.
	RootDrive
)

func (k FilePathRootKind) String() string {
	switch k {
	case RootRelative:
		return "relative"
	case RootAbsolute:
		return "absolute"
	case RootHome:
		return "home"
	case RootDrive:
		return "drive"
	default:
		return "unknown"
	}
}

// FilePathRoot is the anchor of a RootedGlob.
type FilePathRoot struct {
	Kind FilePathRootKind
	// Path is the absolute path for RootAbsolute, the subpath under the
	// home directory for RootHome, and the path under Drive for
	// RootDrive. It is ignored for RootRelative.
	Path string
	// Drive is the drive letter (e.g. "C") for RootDrive; empty
	// otherwise.
	Drive string
}

// RootedGlob anchors a Glob tree at a FilePathRoot.
type RootedGlob struct {
	Root FilePathRoot
	Glob Glob
}

// Glob is a node in a glob pattern tree. GlobDir, GlobFile,
// GlobDirTrailing, and GlobDirRecursive implement it.
type Glob interface {
	glob()
}

// GlobDir matches directories whose basename matches Pieces, recursing
// into each match with SubGlob.
type GlobDir struct {
	Pieces  []string
	SubGlob Glob
}

func (GlobDir) glob() {}

// GlobFile matches files (by basename only — no filetype check, per the
// documented asymmetry with GlobDir) whose basename matches Pieces.
type GlobFile struct {
	Pieces []string
}

func (GlobFile) glob() {}

// GlobDirTrailing matches the containing directory itself (the trailing
// slash form of a glob, e.g. "build/").
type GlobDirTrailing struct{}

func (GlobDirTrailing) glob() {}

// GlobDirRecursive represents a recursive (**) glob segment. It is not
// supported; the snapshot builder fails hard if it encounters one.
type GlobDirRecursive struct{}

func (GlobDirRecursive) glob() {}
