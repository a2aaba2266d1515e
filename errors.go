package monitor

import "errors"

// ErrUnsupportedGlob is returned by the snapshot builder when a declared
// glob uses recursive (**) matching, which this package does not
// implement.
var ErrUnsupportedGlob = errors.New("monitor: recursive glob (**) is not supported")

// Reason identifies why Check reports that a cached result cannot be
// reused.
type Reason int

const (
	// ReasonNone is the zero value; only meaningful on an Unchanged result.
	ReasonNone Reason = iota
	// ReasonFirstRun means no cache file exists yet.
	ReasonFirstRun
	// ReasonCorruptCache means the cache file exists but could not be
	// decoded (header, or result when no file changed).
	ReasonCorruptCache
	// ReasonKeyChanged means the caller's key differs from the cached
	// key. It implies that no monitored path changed only when the
	// Monitor was built with WithValueChangeOnly(true); by default the
	// key is compared before any path is probed.
	ReasonKeyChanged
	// ReasonFileChanged means a monitored path changed.
	ReasonFileChanged
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonFirstRun:
		return "first-run"
	case ReasonCorruptCache:
		return "corrupt-cache"
	case ReasonKeyChanged:
		return "key-changed"
	case ReasonFileChanged:
		return "file-changed"
	default:
		return "unknown"
	}
}
