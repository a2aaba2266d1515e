// Package monitor implements a file-monitor cache: given a set of
// declared paths (single files/directories or rooted globs) and an
// opaque caller key, it decides whether a previously cached action
// result can be reused or must be recomputed because some input
// changed.
//
// The package polls on demand. It does not watch the filesystem
// proactively, does not catch modifications that preserve the mtime of
// a path monitored by existence or mtime (only Hashed files are compared
// by content), does not treat symlinks specially, and does not support
// recursive (**) globs.
//
// A typical cycle:
//
//	m := monitor.New(cachePath)
//	switch res, err := m.Check(root, key); {
//	case err != nil:
//		// handle I/O error on the cache path itself
//	case res.Reason == monitor.ReasonNone:
//		use(res.CachedResult)
//	default:
//		start, _ := m.BeginUpdate()
//		result := runAction()
//		m.Update(root, &start, declaredPaths, key, result)
//	}
//
// Concurrency: a Monitor is not safe for concurrent Check/Update calls
// against the same cache file — callers must serialize those
// themselves. Distinct Monitors over distinct cache files need no
// coordination.
//
// Keys and results are persisted through encoding/gob. Any concrete
// type used as a key or result must be registered with gob.Register
// before it is first encoded or decoded, exactly as for any other value
// stored behind a gob interface field.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"go.uber.org/zap"
)

// Timestamp is an opaque point in time comparable against file mtimes,
// returned by BeginUpdate.
type Timestamp time.Time

// Monitor mediates between callers, the cache-file codec, the snapshot
// builder, and the probe engine for one cache file.
type Monitor struct {
	cachePath            string
	keyEqual             func(a, b any) bool
	checkOnlyValueChange bool
	log                  *zap.Logger
}

// Option configures a Monitor constructed by New.
type Option func(*Monitor)

// WithKeyEqual overrides the default structural-equality key
// comparison. The predicate need only be reflexive (e.g. a subset
// check), matching spec's "key-equal? ... may be any reflexive
// predicate."
func WithKeyEqual(eq func(a, b any) bool) Option {
	return func(m *Monitor) { m.keyEqual = eq }
}

// WithValueChangeOnly, when enabled, makes Check probe files before
// comparing keys, guaranteeing that a returned KeyChanged reason implies
// no monitored file changed. The default (disabled) checks the key
// first, which is faster in the common case where nothing changed.
func WithValueChangeOnly(enabled bool) Option {
	return func(m *Monitor) { m.checkOnlyValueChange = enabled }
}

// WithLogger attaches a zap logger used for diagnostic logging of
// corrupt caches, write failures, and opportunistic header rewrites. It
// never affects control flow. The default, also used when log is nil, is
// a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// New constructs a Monitor backed by the cache file at cachePath.
func New(cachePath string, opts ...Option) *Monitor {
	m := &Monitor{
		cachePath: cachePath,
		keyEqual:  reflect.DeepEqual,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BeginUpdate reads the filesystem clock's current mtime resolution and
// returns it as an opaque Timestamp. It must be called before the
// action whose inputs are being monitored starts reading files, so that
// Update can conservatively detect files the action may have raced
// against.
func (m *Monitor) BeginUpdate() (Timestamp, error) {
	dir := filepath.Dir(m.cachePath)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, ".monitor-begin-*")
	if err != nil {
		// Fall back to the wall clock if we cannot touch the cache
		// directory. The wall clock can run ahead of the coarser
		// filesystem timestamp, so this fallback may mark fewer racing
		// files as AlreadyChanged than a filesystem timestamp would.
		return Timestamp(time.Now()), nil
	}
	name := f.Name()
	f.Close()
	defer os.Remove(name)

	fi, err := os.Stat(name)
	if err != nil {
		return Timestamp(time.Now()), nil
	}
	return Timestamp(fi.ModTime()), nil
}

// Reason, the type of CheckResult.Reason, is defined in errors.go.

// CheckResult is the outcome of Check.
type CheckResult struct {
	Reason Reason

	// CachedResult and DeclaredPaths are populated when Reason is
	// ReasonNone (Unchanged).
	CachedResult  any
	DeclaredPaths []MonitorPath

	// OldKey is populated when Reason is ReasonKeyChanged.
	OldKey any

	// ChangedPath is populated when Reason is ReasonFileChanged.
	ChangedPath string
}

// Check decides whether the cached result for currentKey can still be
// reused given the current state of root's monitored paths.
func (m *Monitor) Check(root string, currentKey any) (CheckResult, error) {
	entry, resultThunk, err := decodeCacheFile(m.cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Reason: ReasonFirstRun}, nil
		}
		m.log.Debug("monitor: cache header undecodable, treating as corrupt", zap.String("path", m.cachePath), zap.Error(err))
		return CheckResult{Reason: ReasonCorruptCache}, nil
	}

	keyChanged := !m.keyEqual(entry.Key, currentKey)

	if !m.checkOnlyValueChange && keyChanged {
		return CheckResult{Reason: ReasonKeyChanged, OldKey: entry.Key}, nil
	}

	changedPath, updated, cacheChanged, err := probeSnapshot(root, entry.Snapshot)
	if err != nil {
		return CheckResult{}, fmt.Errorf("monitor: probe snapshot: %w", err)
	}
	if changedPath != "" {
		return CheckResult{Reason: ReasonFileChanged, ChangedPath: changedPath}, nil
	}

	if m.checkOnlyValueChange && keyChanged {
		return CheckResult{Reason: ReasonKeyChanged, OldKey: entry.Key}, nil
	}

	result, decodeErr := resultThunk()
	if decodeErr != nil {
		m.log.Debug("monitor: cached result undecodable with no file change, treating as corrupt",
			zap.String("path", m.cachePath), zap.Error(decodeErr))
		return CheckResult{Reason: ReasonCorruptCache}, nil
	}

	if cacheChanged {
		if err := writeCacheFile(m.cachePath, updated, entry.Key, result); err != nil {
			m.log.Warn("monitor: opportunistic cache rewrite failed", zap.String("path", m.cachePath), zap.Error(err))
		}
	}

	return CheckResult{
		Reason:        ReasonNone,
		CachedResult:  result,
		DeclaredPaths: updated.DeclaredPaths(),
	}, nil
}

// Update rebuilds the snapshot for declared paths and atomically
// overwrites the cache file with (snapshot, key, result). start, if
// non-nil, is the Timestamp returned by a prior BeginUpdate call and
// lets the builder mark any path whose mtime raced past it as already
// stale.
func (m *Monitor) Update(root string, start *Timestamp, paths []MonitorPath, key, result any) error {
	hashCache := FileHashCache{}
	if entry, _, err := decodeCacheFile(m.cachePath); err == nil {
		hashCache = newHashCache(entry.Snapshot)
	}

	snapshot, err := buildSnapshot(start, hashCache, root, paths)
	if err != nil {
		return fmt.Errorf("monitor: build snapshot: %w", err)
	}

	if err := writeCacheFile(m.cachePath, snapshot, key, result); err != nil {
		return fmt.Errorf("monitor: write cache file: %w", err)
	}
	return nil
}

// Inspect builds and returns a fresh snapshot for paths without
// touching the cache file, for diagnostic use.
func (m *Monitor) Inspect(root string, paths []MonitorPath) (MonitorStateFileSet, error) {
	return buildSnapshot(nil, FileHashCache{}, root, paths)
}
