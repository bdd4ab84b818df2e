// Package fsutil provides the filesystem seam used by the state parser and
// the output writers, so tests can run against memory.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSystem abstracts the filesystem operations the pipeline needs.
// Use OSFileSystem for production; MemoryFileSystem for testing.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (fs.File, error)

	// Create creates or truncates the named file.
	Create(name string) (io.WriteCloser, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(name string, data []byte, perm os.FileMode) error

	// Stat returns a FileInfo describing the named file.
	Stat(name string) (fs.FileInfo, error)

	// MkdirAll creates a directory and all necessary parents.
	MkdirAll(path string, perm os.FileMode) error
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// Open opens the named file.
func (OSFileSystem) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// Create creates the named file.
func (OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// WriteFile writes data to the named file.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Stat returns file info for the named file.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// MkdirAll creates a directory path.
func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// MemoryFileSystem provides an in-memory filesystem for testing. Open
// failures can be injected per path with FailOpen.
type MemoryFileSystem struct {
	mu       sync.RWMutex
	files    map[string]*memFile
	dirs     map[string]bool
	openErrs map[string]error
}

type memFile struct {
	data    []byte
	mode    os.FileMode
	modTime time.Time
}

// NewMemoryFileSystem creates a new in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files:    make(map[string]*memFile),
		dirs:     make(map[string]bool),
		openErrs: make(map[string]error),
	}
}

// FailOpen makes every Open of name return err. A nil err clears it.
func (m *MemoryFileSystem) FailOpen(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	if err == nil {
		delete(m.openErrs, name)
		return
	}
	m.openErrs[name] = err
}

// Open opens a file for reading.
func (m *MemoryFileSystem) Open(name string) (fs.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	if err, ok := m.openErrs[name]; ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	return &memFileReader{
		name:    name,
		data:    f.data,
		modTime: f.modTime,
	}, nil
}

// Create creates or truncates a file. Contents become visible on Close.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	m.files[name] = &memFile{data: []byte{}, mode: 0644, modTime: time.Now()}

	return &memFileWriter{
		fs:   m,
		name: name,
	}, nil
}

// ReadFile returns a copy of a file's contents.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)
	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}

	result := make([]byte, len(f.data))
	copy(result, f.data)
	return result, nil
}

// WriteFile writes data to a file.
func (m *MemoryFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = filepath.Clean(name)
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.files[name] = &memFile{data: dataCopy, mode: perm, modTime: time.Now()}

	return nil
}

// Stat returns file info.
func (m *MemoryFileSystem) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = filepath.Clean(name)

	if m.dirs[name] {
		return &memFileInfo{name: filepath.Base(name), isDir: true, mode: fs.ModeDir | 0755}, nil
	}

	f, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}

	return &memFileInfo{
		name:    filepath.Base(name),
		size:    int64(len(f.data)),
		mode:    f.mode,
		modTime: f.modTime,
	}, nil
}

// MkdirAll creates directories.
func (m *MemoryFileSystem) MkdirAll(path string, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.dirs[path] = true

	for p := filepath.Dir(path); p != "." && p != "/" && p != path; p = filepath.Dir(p) {
		m.dirs[p] = true
	}

	return nil
}

// Files lists every regular file path held in memory.
func (m *MemoryFileSystem) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	return names
}

// memFileReader implements fs.File for reading.
type memFileReader struct {
	name    string
	data    []byte
	offset  int
	modTime time.Time
}

func (f *memFileReader) Read(p []byte) (int, error) {
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}

	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *memFileReader) Close() error { return nil }

func (f *memFileReader) Stat() (fs.FileInfo, error) {
	return &memFileInfo{name: filepath.Base(f.name), size: int64(len(f.data)), modTime: f.modTime}, nil
}

// memFileWriter buffers writes until Close.
type memFileWriter struct {
	fs   *MemoryFileSystem
	name string
	buf  []byte
}

func (f *memFileWriter) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

func (f *memFileWriter) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	f.fs.files[f.name] = &memFile{data: f.buf, mode: 0644, modTime: time.Now()}
	return nil
}

// memFileInfo implements fs.FileInfo.
type memFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

func (i *memFileInfo) Name() string       { return i.name }
func (i *memFileInfo) Size() int64        { return i.size }
func (i *memFileInfo) Mode() os.FileMode  { return i.mode }
func (i *memFileInfo) ModTime() time.Time { return i.modTime }
func (i *memFileInfo) IsDir() bool        { return i.isDir }
func (i *memFileInfo) Sys() any           { return nil }
