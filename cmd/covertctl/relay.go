package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/session"
	"github.com/rs/zerolog"
)

// maxLine bounds one relayed message.
const maxLine = 1 << 20

// relay moves lines between in/out and the channel, one message per turn.
// The active side speaks first. It returns nil once in is exhausted on a
// sending turn.
func relay(ctx context.Context, logger zerolog.Logger, conn *session.Conn, active bool, in io.Reader, out io.Writer) error {
	lines := newLineScanner(in)
	sending := active
	for {
		if sending {
			line, ok := nextMessage(lines, logger)
			if !ok {
				return lines.Err()
			}
			if err := conn.Write(ctx, line); err != nil {
				return err
			}
		} else {
			data, err := conn.Read(ctx)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(out, "%s\n", data); err != nil {
				return err
			}
		}
		sending = !sending
	}
}

func newLineScanner(in io.Reader) *bufio.Scanner {
	lines := bufio.NewScanner(in)
	lines.Buffer(make([]byte, 0, 64*1024), maxLine)
	return lines
}

// nextMessage returns the next line the channel can carry. Lines holding the
// terminator byte are dropped with a warning.
func nextMessage(lines *bufio.Scanner, logger zerolog.Logger) ([]byte, bool) {
	for lines.Scan() {
		line := lines.Bytes()
		if bytes.IndexByte(line, protocol.Terminator) < 0 {
			return line, true
		}
		logger.Warn().Int("bytes", len(line)).Msg("line contains the terminator byte; skipped")
	}
	return nil, false
}
