package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Kind tells a local file source apart from a fetched in-memory buffer.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Source is what the engine plays: a path on disk or a fully fetched buffer.
// Remote buffers belong to the session that opens them.
type Source struct {
	kind Kind
	name string
	path string
	data []byte
}

// Local returns a source reading the file at path.
func Local(path string) Source {
	return Source{kind: KindLocal, name: filepath.Base(path), path: path}
}

// Remote returns a source over an already fetched buffer.
func Remote(name string, data []byte) Source {
	return Source{kind: KindRemote, name: name, data: data}
}

// WithName returns a copy of s carrying a different display name.
func (s Source) WithName(name string) Source {
	if name != "" {
		s.name = name
	}
	return s
}

func (s Source) Kind() Kind {
	return s.kind
}

// Name is the display name shown while the source plays.
func (s Source) Name() string {
	return s.name
}

// Path returns the file path for local sources and the name for remote ones.
// Decoders use it as a format hint.
func (s Source) Path() string {
	if s.kind == KindLocal {
		return s.path
	}
	return s.name
}

// Size reports the number of bytes in a remote buffer. Local sources report 0.
func (s Source) Size() int {
	return len(s.data)
}

// Open returns random access to the source bytes.
func (s Source) Open() (ByteSource, error) {
	switch s.kind {
	case KindLocal:
		return openFile(s.path)
	case KindRemote:
		if len(s.data) == 0 {
			return nil, Wrap("open", s.name, fmt.Errorf("%w: empty buffer", ErrSourceUnavailable))
		}
		return &memorySource{data: s.data}, nil
	default:
		return nil, Wrap("open", s.name, fmt.Errorf("%w: unknown source kind %d", ErrSourceUnavailable, s.kind))
	}
}

// ByteSource is the capability every source kind provides to decoders.
type ByteSource interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Overrunner is implemented by byte sources that can report reads past their end.
type Overrunner interface {
	Overrun() bool
}

type fileSource struct {
	f    *os.File
	size int64
}

func openFile(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Wrap("open", path, fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Wrap("open", path, fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	if info.IsDir() {
		f.Close()
		return nil, Wrap("open", path, fmt.Errorf("%w: is a directory", ErrSourceUnavailable))
	}
	return &fileSource{f: f, size: info.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileSource) Size() int64 {
	return s.size
}

func (s *fileSource) Close() error {
	return s.f.Close()
}

// memorySource clamps reads to the buffer and remembers when a reader asked for more.
type memorySource struct {
	data    []byte
	overrun atomic.Bool
}

func (m *memorySource) ReadAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, os.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrSeekOutOfRange, off)
	}
	if off >= int64(len(m.data)) {
		if len(p) > 0 {
			m.overrun.Store(true)
		}
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		m.overrun.Store(true)
		return n, io.EOF
	}
	return n, nil
}

func (m *memorySource) Size() int64 {
	return int64(len(m.data))
}

func (m *memorySource) Overrun() bool {
	return m.overrun.Load()
}

// Close drops the buffer reference.
func (m *memorySource) Close() error {
	m.data = nil
	return nil
}

// Reader turns a ByteSource into a seekable stream for decoders.
type Reader struct {
	src ByteSource
	off int64
}

func NewReader(src ByteSource) *Reader {
	return &Reader{src: src}
}

// Read returns the bytes actually available, which may be fewer than len(p)
// near the end of the source.
func (r *Reader) Read(p []byte) (int, error) {
	if r.off >= r.src.Size() {
		if len(p) > 0 {
			// let the source record the attempted overrun
			_, _ = r.src.ReadAt(p[:1], r.off)
		}
		return 0, io.EOF
	}
	n, err := r.src.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek moves relative to the start, current offset or end. Targets outside
// [0, Size] fail with ErrSeekOutOfRange and leave the offset unchanged.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = r.off
	case io.SeekEnd:
		base = r.src.Size()
	default:
		return r.off, fmt.Errorf("invalid whence %d", whence)
	}

	target := base + offset
	if target < 0 || target > r.src.Size() {
		return r.off, fmt.Errorf("%w: offset %d outside [0, %d]", ErrSeekOutOfRange, target, r.src.Size())
	}
	r.off = target
	return target, nil
}

func (r *Reader) Close() error {
	return r.src.Close()
}

// Overrun reports whether any read ran past the end of the underlying source.
func (r *Reader) Overrun() bool {
	if o, ok := r.src.(Overrunner); ok {
		return o.Overrun()
	}
	return false
}
