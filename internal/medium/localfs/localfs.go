// Package localfs is a medium over one directory of a mounted filesystem.
//
// Objects are the regular, non-hidden files directly inside the root. Content
// is replaced atomically through a temporary file and rename. Fields live in
// user.* extended attributes and are carried over to the replacement file.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// xattrPrefix namespaces fields among a file's extended attributes.
const xattrPrefix = "user."

// lockName is the hidden file serializing SwapContent across processes.
const lockName = ".covertfs.lock"

type Options struct {
	// Watch enables fsnotify change hints on the root directory.
	Watch bool
}

// Store is a directory-backed medium.
type Store struct {
	root   string
	logger zerolog.Logger

	// mu serializes writers within this process; the lock file covers others.
	mu sync.Mutex

	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// Open binds a store to root, which must be an existing directory.
func Open(root string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open localfs root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open localfs root: %s is not a directory", abs)
	}
	s := &Store{
		root:    abs,
		logger:  log.With().Str("component", "localfs").Str("root", abs).Logger(),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if opts.Watch {
		if err := s.watch(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.root); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}
	s.watcher = w
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if hidden(filepath.Base(ev.Name)) {
					continue
				}
				s.notify()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn().Err(err).Msg("watcher error")
			}
		}
	}()
	return nil
}

// Close stops the watcher, if any.
func (s *Store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Store) Root() string {
	return s.root
}

// Changes yields a hint after files in the root change. It never fires when
// the store was opened without Watch.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (s *Store) path(id string) (string, error) {
	if id == "" || hidden(id) || strings.ContainsRune(id, os.PathSeparator) || strings.ContainsRune(id, '/') {
		return "", fmt.Errorf("%w: %q", medium.ErrInvalidID, id)
	}
	return filepath.Join(s.root, id), nil
}

// stat resolves id to a regular file.
func (s *Store) stat(id string) (string, fs.FileInfo, error) {
	path, err := s.path(id)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("%w: %s", medium.ErrNotFound, id)
	}
	if err != nil {
		return "", nil, err
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %s is not a regular file", medium.ErrNotFound, id)
	}
	return path, info, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if hidden(e.Name()) || !e.Type().IsRegular() {
			continue
		}
		out = append(out, e.Name())
	}
	// os.ReadDir sorts by name.
	return out, nil
}

func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	path, _, err := s.stat(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *Store) WriteContent(ctx context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(id, data)
}

// replace swaps in a new file holding data, keeping mode and fields.
func (s *Store) replace(id string, data []byte) error {
	path, info, err := s.stat(id)
	if err != nil {
		return err
	}
	t, err := renameio.TempFile(s.root, path)
	if err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	defer t.Cleanup()
	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := t.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := copyFields(path, t.File); err != nil && !errors.Is(err, medium.ErrFieldsUnsupported) {
		return fmt.Errorf("write %s: carry fields: %w", id, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

// SwapContent replaces content only if it still equals prev. The check and
// the write run under an exclusive lock on a hidden file in the root.
func (s *Store) SwapContent(ctx context.Context, id string, prev, next []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := lockRoot(filepath.Join(s.root, lockName))
	if err != nil {
		return false, fmt.Errorf("swap %s: %w", id, err)
	}
	defer unlock()

	path, _, err := s.stat(id)
	if err != nil {
		return false, err
	}
	cur, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(cur, prev) {
		return false, nil
	}
	if err := s.replace(id, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) ReadFields(ctx context.Context, id string) (map[string]string, error) {
	path, _, err := s.stat(id)
	if err != nil {
		return nil, err
	}
	return readFields(path)
}

func (s *Store) WriteFields(ctx context.Context, id string, set map[string]string, remove []string) error {
	for k := range set {
		if err := medium.ValidateFieldName(k); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path, _, err := s.stat(id)
	if err != nil {
		return err
	}
	return writeFields(path, set, remove)
}

// Create adds a new object. It fails with medium.ErrExists when id is taken.
func (s *Store) Create(ctx context.Context, id string, content []byte) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", medium.ErrExists, id)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
