package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Dir keeps each entry in a file under a root directory, sharded by the
// first two characters of the key.  Entries are written to a temporary
// file in the shard directory and renamed into place on Complete.
type Dir struct {
	root string
	perm os.FileMode

	existsMu sync.RWMutex
	exists   map[string]struct{}
}

var _ Cache = (*Dir)(nil)

func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("directory cache needs a root directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Dir{
		root:   root,
		perm:   0666,
		exists: make(map[string]struct{}),
	}, nil
}

func (d *Dir) path(key string) (string, error) {
	if len(key) < 3 || filepath.Base(key) != key || key[0] == '.' {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(d.root, key[:2], key), nil
}

func (d *Dir) IsCached(_ context.Context, key string) (bool, error) {
	path, err := d.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, fileErr(err)
}

func (d *Dir) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fileErr(err)
	}
	return f, nil
}

func (d *Dir) Create(_ context.Context, key string) (Writer, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	if err := d.checkPath(path); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+key+"-*.tmp")
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(d.perm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &dirWriter{file: f, bw: bufio.NewWriter(f), target: path}, nil
}

func (d *Dir) WriteFromFile(ctx context.Context, key, path string) error {
	return writeFromFile(ctx, d, key, path)
}

func (d *Dir) Delete(_ context.Context, key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	return fileErr(os.Remove(path))
}

func (d *Dir) checkPath(path string) error {
	dir := filepath.Dir(path)
	d.existsMu.RLock()
	_, ok := d.exists[dir]
	d.existsMu.RUnlock()
	if ok {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	d.existsMu.Lock()
	d.exists[dir] = struct{}{}
	d.existsMu.Unlock()
	return nil
}

func fileErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

type dirWriter struct {
	file      *os.File
	bw        *bufio.Writer
	target    string
	completed bool
	closed    bool
}

func (w *dirWriter) Write(p []byte) (int, error) {
	if w.completed || w.closed {
		return 0, errors.New("write to finished cache entry")
	}
	return w.bw.Write(p)
}

func (w *dirWriter) Flush() error {
	return w.bw.Flush()
}

func (w *dirWriter) Complete() error {
	if w.closed {
		return errors.New("complete of closed cache entry")
	}
	if w.completed {
		return nil
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := os.Rename(w.file.Name(), w.target); err != nil {
		return err
	}
	w.completed = true
	return nil
}

func (w *dirWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.file.Close()
	if !w.completed {
		os.Remove(w.file.Name())
	}
	return err
}
