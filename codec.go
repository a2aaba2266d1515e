package monitor

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/kbuild/filemonitor/internal/atomicfile"
)

// cacheFormatTag is the structural tag for the on-disk format. It is
// checked explicitly (rather than relying only on gob's own type
// tagging) so that a deliberate format change can invalidate every
// existing cache file by bumping this constant, without changing any
// Go type.
const cacheFormatTag = "github.com/kbuild/filemonitor/cache/v1"

func init() {
	gob.Register(SinglePath{})
	gob.Register(GlobPath{})
	gob.Register(GlobDir{})
	gob.Register(GlobFile{})
	gob.Register(GlobDirTrailing{})
	gob.Register(GlobDirRecursive{})
	gob.Register(FileExists{})
	gob.Register(FileModTime{})
	gob.Register(FileHashed{})
	gob.Register(DirExists{})
	gob.Register(DirModTime{})
	gob.Register(NonExistent{})
	gob.Register(AlreadyChanged{})
	gob.Register(GlobStateDirs{})
	gob.Register(GlobStateFiles{})
	gob.Register(GlobStateDirTrailing{})
}

// cacheHeader is the eagerly-decoded portion of a cache file: everything
// needed to decide staleness without paying to decode Result.
type cacheHeader struct {
	Tag      string
	Snapshot MonitorStateFileSet
	Key      any
}

// countingReader tracks how many bytes have been read through it, so
// the codec can locate where the header's gob stream ends and the
// Result's begins within one buffer.
type countingReader struct {
	r rdr
	n int
}

type rdr interface {
	Read(p []byte) (int, error)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

// ReadByte makes countingReader an io.ByteReader, so gob.NewDecoder
// reads from it directly instead of wrapping it in a read-ahead buffer
// that would count bytes past the end of the header.
func (c *countingReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(c, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// decodeCacheFile reads and validates a cache file's header (Tag,
// Snapshot, Key), returning it eagerly along with a thunk that decodes
// Result only when called. The thunk is safe to call at most once per
// call to decodeCacheFile; callers that don't need Result never pay to
// decode it.
func decodeCacheFile(path string) (cacheHeader, func() (any, error), error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cacheHeader{}, nil, err
	}

	cr := &countingReader{r: bytes.NewReader(data)}
	dec := gob.NewDecoder(cr)

	var hdr cacheHeader
	if err := dec.Decode(&hdr); err != nil {
		return cacheHeader{}, nil, fmt.Errorf("monitor: decode cache header: %w", err)
	}
	if hdr.Tag != cacheFormatTag {
		return cacheHeader{}, nil, fmt.Errorf("monitor: cache format tag mismatch: got %q", hdr.Tag)
	}

	rest := data[cr.n:]
	thunk := func() (any, error) {
		var result any
		if len(rest) == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		if err := gob.NewDecoder(bytes.NewReader(rest)).Decode(&result); err != nil {
			return nil, fmt.Errorf("monitor: decode cache result: %w", err)
		}
		return result, nil
	}

	return hdr, thunk, nil
}

// writeCacheFile atomically overwrites path with (snapshot, key,
// result), encoded as a header (Tag, Snapshot, Key) followed by Result
// as a second, independently-decodable gob stream.
func writeCacheFile(path string, snapshot MonitorStateFileSet, key, result any) error {
	return atomicfile.Write(path, func(f *os.File) error {
		enc := gob.NewEncoder(f)
		hdr := cacheHeader{Tag: cacheFormatTag, Snapshot: snapshot, Key: key}
		if err := enc.Encode(hdr); err != nil {
			return fmt.Errorf("encode cache header: %w", err)
		}
		// result's static type here is any, so Encode would otherwise see
		// through the interface and write the concrete value at the top
		// level. gob's decoder then refuses to read that concrete value
		// back into the *any that decodeCacheFile's thunk decodes into ("local
		// interface type interface {} can only be decoded from remote
		// interface type"). Encoding &result keeps the interface wrapper
		// on the wire, matching the decode side.
		if err := gob.NewEncoder(f).Encode(&result); err != nil {
			return fmt.Errorf("encode cache result: %w", err)
		}
		return nil
	})
}
