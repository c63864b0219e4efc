// Package storage is the flat-file engine shared by every file-backed store:
// line-oriented read, filter, append, update and delete over text files
// rooted under one data directory, plus whole-file blobs for image bytes.
//
// UpdateMatching and DeleteMatching read the entire file, compute the new
// content and rewrite the file. Two callers doing this concurrently on the
// same file race: the later rewrite silently discards whatever the earlier
// one wrote in between. Engines built WithSerializedWrites hand out one
// mutex per file through Lock; callers hold it for the whole cycle. Without
// that option Lock is a no-op and the race is left to the caller.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/quackstagram/internal/apperr"
)

// Engine implements the flat-file primitives relative to a root directory.
type Engine struct {
	root      string // absolute path to the data root
	serialize bool
	locks     sync.Map // absolute path -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSerializedWrites makes Lock return a real per-file mutex.
func WithSerializedWrites() Option {
	return func(e *Engine) {
		e.serialize = true
	}
}

// NewEngine creates an engine rooted at root, creating the directory if needed.
func NewEngine(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, ioErr("create root", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, ioErr("stat root", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	e := &Engine{root: abs}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Root returns the absolute data root.
func (e *Engine) Root() string {
	return e.root
}

// Serialized reports whether Lock hands out real mutexes.
func (e *Engine) Serialized() bool {
	return e.serialize
}

// Abs resolves a root-relative path, rejecting paths that escape the root.
func (e *Engine) Abs(rel string) (string, error) {
	return e.safePath(rel)
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it (directory traversal).
func (e *Engine) safePath(rel string) (string, error) {
	if rel == "" {
		return e.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(e.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, e.root+string(os.PathSeparator)) && abs != e.root {
		return "", fmt.Errorf("storage: path escapes data root: %s", rel)
	}
	return abs, nil
}

// Lock acquires the write guard of path and returns its release function,
// meant to be deferred:
//
//	defer e.Lock(path)()
//
// The guard is not reentrant.
func (e *Engine) Lock(path string) (unlock func()) {
	if !e.serialize {
		return func() {}
	}
	key := path
	if abs, err := e.safePath(path); err == nil {
		key = abs
	}
	v, _ := e.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// EnsureExists creates the parent directories and an empty file if absent.
// Losing a creation race to another caller is not an error.
func (e *Engine) EnsureExists(path string) error {
	abs, err := e.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return ioErr("mkdir", path, err)
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return ioErr("create", path, err)
	}
	if err := f.Close(); err != nil {
		return ioErr("create", path, err)
	}
	return nil
}

// ReadAll returns every line of path in on-disk order. A missing file reads
// as empty.
func (e *Engine) ReadAll(path string) ([]string, error) {
	return e.ReadMatching(path, func(string) bool { return true })
}

// ReadMatching returns the lines of path for which match holds, in order.
// Lines have no length limit, so one oversized line never fails the read.
func (e *Engine) ReadMatching(path string, match func(line string) bool) ([]string, error) {
	abs, err := e.safePath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("open", path, err)
	}
	defer f.Close()

	var out []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			if match(line) {
				out = append(out, line)
			}
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, ioErr("read", path, err)
		}
	}
}

// AppendLine appends line and a terminator to path in a single write.
func (e *Engine) AppendLine(path, line string) error {
	abs, err := e.safePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return ioErr("mkdir", path, err)
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return ioErr("open", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return ioErr("append", path, err)
	}
	if err := f.Close(); err != nil {
		return ioErr("close", path, err)
	}
	return nil
}

// UpdateMatching rewrites path, replacing every line for which match holds
// with transform(line). It returns the number of matched lines; when none
// matched the file is left untouched.
func (e *Engine) UpdateMatching(path string, match func(line string) bool, transform func(line string) string) (int, error) {
	lines, err := e.ReadAll(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for i, line := range lines {
		if match(line) {
			lines[i] = transform(line)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, e.WriteLines(path, lines)
}

// DeleteMatching rewrites path keeping only the lines for which keep holds.
// It returns the number of removed lines; when none were removed the file
// is left untouched.
func (e *Engine) DeleteMatching(path string, keep func(line string) bool) (int, error) {
	lines, err := e.ReadAll(path)
	if err != nil {
		return 0, err
	}
	kept := lines[:0]
	for _, line := range lines {
		if keep(line) {
			kept = append(kept, line)
		}
	}
	removed := len(lines) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, e.WriteLines(path, kept)
}

// WriteLines replaces the content of path with lines, each terminated.
func (e *Engine) WriteLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return e.WriteFile(path, strings.NewReader(b.String()))
}

// WriteFile atomically replaces path with the content of r:
// tmp file → fsync → rename.
func (e *Engine) WriteFile(path string, r io.Reader) error {
	abs, tmpName, err := e.writeTemp(path, r)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, abs); err != nil {
		_ = os.Remove(tmpName)
		return ioErr("rename", path, err)
	}
	return nil
}

// CreateFile writes the content of r to path only if path does not exist
// yet; otherwise it returns apperr.ErrAlreadyExists and leaves the existing
// file untouched. The file appears complete or not at all.
func (e *Engine) CreateFile(path string, r io.Reader) error {
	abs, tmpName, err := e.writeTemp(path, r)
	if err != nil {
		return err
	}
	defer os.Remove(tmpName)

	if err := os.Link(tmpName, abs); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s: %w", path, apperr.ErrAlreadyExists)
		}
		return ioErr("link", path, err)
	}
	return nil
}

// writeTemp copies r into a synced temp file next to path and returns the
// resolved path and the temp file name.
func (e *Engine) writeTemp(path string, r io.Reader) (abs, tmpName string, err error) {
	abs, err = e.safePath(path)
	if err != nil {
		return "", "", err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", ioErr("mkdir", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".quack-tmp-*")
	if err != nil {
		return "", "", ioErr("create temp", path, err)
	}
	tmpName = tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", "", ioErr("write temp", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", "", ioErr("fsync", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", ioErr("close temp", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", "", ioErr("chmod", path, err)
	}
	success = true
	return abs, tmpName, nil
}

// ReadFile returns the raw bytes of path. A missing file is reported as
// apperr.ErrNotFound.
func (e *Engine) ReadFile(path string) ([]byte, error) {
	abs, err := e.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return nil, ioErr("read", path, err)
	}
	return data, nil
}

// Remove deletes path. Removing a missing file is not an error.
func (e *Engine) Remove(path string) error {
	abs, err := e.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("delete", path, err)
	}
	return nil
}

// List returns the names of the regular files in dir starting with prefix.
// A missing directory lists as empty.
func (e *Engine) List(dir, prefix string) ([]string, error) {
	abs, err := e.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("list", dir, err)
	}
	var out []string
	for _, ent := range entries {
		if ent.Type().IsRegular() && strings.HasPrefix(ent.Name(), prefix) {
			out = append(out, ent.Name())
		}
	}
	return out, nil
}

func ioErr(op, path string, err error) error {
	return fmt.Errorf("storage: %s %s: %w: %w", op, path, apperr.ErrStorage, err)
}
