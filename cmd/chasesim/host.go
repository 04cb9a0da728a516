package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pursuitlab/roadchase/internal/dispatcher"
)

// hostReply is written as one JSON line per command.
type hostReply struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// parseHostLine splits "CMD arg arg". A JSON argument (starting with [ or {)
// is passed through whole.
func parseHostLine(line string) (string, []string) {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return cmd, nil
	}
	if rest[0] == '[' || rest[0] == '{' {
		return cmd, []string{rest}
	}
	return cmd, strings.Fields(rest)
}

// serveHost reads host commands line by line and writes replies until r is
// exhausted, "quit" is read or ctx is cancelled.
func serveHost(ctx context.Context, r io.Reader, w io.Writer, dispatch func(dispatcher.Event) (any, error)) error {
	enc := json.NewEncoder(w)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "quit" {
			return nil
		}

		cmd, args := parseHostLine(line)
		reply := hostReply{Command: cmd}
		res, err := dispatch(dispatcher.Event{Command: cmd, Args: args, Timestamp: time.Now()})
		if err != nil {
			reply.Error = err.Error()
		} else {
			reply.Result = res
		}
		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
	return sc.Err()
}
