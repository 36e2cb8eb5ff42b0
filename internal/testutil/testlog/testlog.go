// Package testlog gives every test the same console logger.
package testlog

import (
	"testing"

	"github.com/danmuck/covertfs/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures the test logging profile and marks where t begins in the
// shared output, since parallel session tests interleave their records.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("begin")
}
