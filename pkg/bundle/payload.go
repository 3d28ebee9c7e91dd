package bundle

import (
	"fmt"
	"os"
	"sync"
)

// Payload is a bundle's byte content, either held entirely in memory or
// backed by a file on disk. It is reference-counted independently of the
// owning Bundle's own refcount (§5: "payload files are refcounted and
// deleted when the last reference drops"), since a fragment's payload may
// be a slice view over a parent's file-backed payload shared across
// multiple in-flight fragment bundles.
type Payload struct {
	mu       sync.Mutex
	refs     int
	mem      []byte
	filePath string
	length   uint64
	isFile   bool
}

// NewMemoryPayload wraps an in-memory byte slice. The slice is taken by
// reference, not copied; callers must not mutate it afterwards.
func NewMemoryPayload(data []byte) *Payload {
	return &Payload{mem: data, length: uint64(len(data)), refs: 1}
}

// NewFilePayload wraps a file on disk of the given length. The file is
// opened lazily, once per ReadRange/ReadAll call, and never held open between
// calls, so many payloads can reference the same path without exhausting
// file descriptors.
func NewFilePayload(path string, length uint64) *Payload {
	return &Payload{filePath: path, length: length, isFile: true, refs: 1}
}

// Len returns the payload's byte length.
func (p *Payload) Len() uint64 {
	return p.length
}

// IsFile reports whether the payload is file-backed.
func (p *Payload) IsFile() bool {
	return p.isFile
}

// FilePath returns the backing file path; only valid if IsFile().
func (p *Payload) FilePath() string {
	return p.filePath
}

// Retain increments the payload's reference count and returns p, for
// chaining at assignment sites (e.g. fragment[i].Payload = parent.Payload.Retain()).
func (p *Payload) Retain() *Payload {
	p.mu.Lock()
	p.refs++
	p.mu.Unlock()
	return p
}

// Release decrements the reference count, deleting the backing file (if
// any) once it reaches zero. Safe to call more than the matching number of
// Retain calls only once (further calls are no-ops returning false).
func (p *Payload) Release() (deleted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs <= 0 {
		return false
	}
	p.refs--
	if p.refs > 0 {
		return false
	}
	if p.isFile && p.filePath != "" {
		_ = os.Remove(p.filePath)
	}
	return true
}

// ReadAll reads the entire payload into memory.
func (p *Payload) ReadAll() ([]byte, error) {
	return p.ReadRange(0, p.length)
}

// ReadRange reads length bytes starting at offset. offset+length must not
// exceed Len().
func (p *Payload) ReadRange(offset, length uint64) ([]byte, error) {
	if offset+length > p.length {
		return nil, fmt.Errorf("payload: range [%d,%d) exceeds length %d", offset, offset+length, p.length)
	}
	if !p.isFile {
		return p.mem[offset : offset+length], nil
	}
	f, err := os.Open(p.filePath)
	if err != nil {
		return nil, fmt.Errorf("payload: open %s: %w", p.filePath, err)
	}
	defer f.Close()
	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("payload: read %s at %d: %w", p.filePath, offset, err)
	}
	return buf, nil
}

// WriteFilePayload creates a new file-backed payload at path containing data.
func WriteFilePayload(path string, data []byte) (*Payload, error) {
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("payload: write %s: %w", path, err)
	}
	return NewFilePayload(path, uint64(len(data))), nil
}
