//go:build !linux

package localfs

import (
	"os"

	"github.com/danmuck/covertfs/internal/medium"
)

func readFields(path string) (map[string]string, error) {
	return nil, medium.ErrFieldsUnsupported
}

func writeFields(path string, set map[string]string, remove []string) error {
	return medium.ErrFieldsUnsupported
}

func copyFields(path string, dst *os.File) error {
	return medium.ErrFieldsUnsupported
}

// lockRoot only serializes within this process, which Store.mu already does.
func lockRoot(path string) (func(), error) {
	return func() {}, nil
}
