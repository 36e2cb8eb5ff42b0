//go:build linux

package localfs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/covertfs/internal/medium"
	"golang.org/x/sys/unix"
)

func fieldErr(err error) error {
	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EOPNOTSUPP) {
		return fmt.Errorf("%w: %v", medium.ErrFieldsUnsupported, err)
	}
	return err
}

// sized retries a size-probing xattr call until the buffer fits.
func sized(call func(buf []byte) (int, error)) ([]byte, error) {
	for {
		n, err := call(nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		buf := make([]byte, n)
		n, err = call(buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
}

func fieldNames(path string) ([]string, error) {
	raw, err := sized(func(buf []byte) (int, error) { return unix.Listxattr(path, buf) })
	if err != nil {
		return nil, fieldErr(err)
	}
	var names []string
	for _, name := range strings.Split(string(raw), "\x00") {
		if strings.HasPrefix(name, xattrPrefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func readFields(path string) (map[string]string, error) {
	names, err := fieldNames(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		val, err := sized(func(buf []byte) (int, error) { return unix.Getxattr(path, name, buf) })
		if errors.Is(err, unix.ENODATA) {
			continue
		}
		if err != nil {
			return nil, fieldErr(err)
		}
		out[strings.TrimPrefix(name, xattrPrefix)] = string(val)
	}
	return out, nil
}

func writeFields(path string, set map[string]string, remove []string) error {
	for _, k := range remove {
		err := unix.Removexattr(path, xattrPrefix+k)
		if err != nil && !errors.Is(err, unix.ENODATA) {
			return fieldErr(err)
		}
	}
	for k, v := range set {
		if err := unix.Setxattr(path, xattrPrefix+k, []byte(v), 0); err != nil {
			return fieldErr(err)
		}
	}
	return nil
}

// copyFields copies every user.* attribute of path onto dst.
func copyFields(path string, dst *os.File) error {
	names, err := fieldNames(path)
	if err != nil {
		return err
	}
	fd := int(dst.Fd())
	for _, name := range names {
		val, err := sized(func(buf []byte) (int, error) { return unix.Getxattr(path, name, buf) })
		if errors.Is(err, unix.ENODATA) {
			continue
		}
		if err != nil {
			return fieldErr(err)
		}
		if err := unix.Fsetxattr(fd, name, val, 0); err != nil {
			return fieldErr(err)
		}
	}
	return nil
}

// lockRoot takes an exclusive flock on the lock file.
func lockRoot(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
