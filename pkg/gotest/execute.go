package gotest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Status is the status of one command execution.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusTimeout Status = "TIMEOUT"
)

// hangUpGrace is how long output pipes may stay open after the command is
// killed, e.g. by test binaries that outlive the go command.
const hangUpGrace = 5 * time.Second

// Execution is the result of one command execution.
type Execution struct {
	Status Status
	Stderr string
	// Time is the wall time of the execution in seconds.
	Time float32
}

// Execute executes a command, calling onLine for every line it writes to
// stdout.  onLine is called from a single goroutine.
func Execute(
	ctx context.Context, args []string, deadline time.Duration, env []string,
	onLine func([]byte),
) (*Execution, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("# of args must be larger than 0")
	}
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = hangUpGrace
	stdout := &lineWriter{onLine: onLine}
	stderr := &lockedBuffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %s", err)
	}
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			fmt.Fprintf(os.Stderr, "[DEBUG] failed to wait a command: %s: %s\n",
				strings.Join(args, " "), err)
		}
	}
	stdout.flush()

	result := &Execution{Stderr: stderr.String()}
	if ctx.Err() == context.DeadlineExceeded {
		result.Status = StatusTimeout
		fmt.Fprintf(os.Stderr, "[ERROR] command timed out: %s\n",
			strings.Join(args, " "))
	} else if cmd.ProcessState != nil && cmd.ProcessState.Success() {
		result.Status = StatusSuccess
	} else {
		result.Status = StatusFailed
	}
	result.Time = float32(time.Since(startTime)) / float32(time.Second)
	return result, nil
}

// lineWriter splits written bytes into lines.  os/exec writes to it from one
// goroutine.
type lineWriter struct {
	onLine  func([]byte)
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.pending) > 0 {
		w.emit(w.pending)
		w.pending = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if w.onLine != nil {
		w.onLine(append([]byte(nil), line...))
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
