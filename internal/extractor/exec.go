package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/alessio/shellescape"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/vidgrab/internal/utils"
)

const diagnosticLines = 40

// ToolError keeps the verbatim diagnostic output of a failed tool run.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %v\nOutput: %s", e.Tool, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error { return e.Err }

func newCommand(ctx context.Context, path string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, path, args...)
	if errors.Is(cmd.Err, exec.ErrDot) {
		cmd.Err = nil
	}
	prepareCommand(cmd)
	log.Debug().Str("op", "extractor/exec").Msgf("executing %s", shellescape.QuoteCommand(cmd.Args))
	return cmd
}

// runCaptured runs a tool to completion and returns stdout and stderr separately.
func runCaptured(ctx context.Context, path string, args []string) ([]byte, string, error) {
	cmd := newCommand(ctx, path, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), strings.TrimSpace(stderr.String()), err
}

// tail keeps the last n lines written to it.
type tail struct {
	mu    sync.Mutex
	lines []string
	n     int
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// runStreaming runs a tool while handing every stdout and stderr line to the
// callbacks. It returns the last stderr lines for diagnostics.
func runStreaming(ctx context.Context, path string, args []string, onStdout, onStderr func(string)) (string, error) {
	cmd := newCommand(ctx, path, args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("error creating stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("error creating stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("error starting %s: %v", path, err)
	}
	diag := &tail{n: diagnosticLines}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processStream(stdout, onStdout)
	}()
	go func() {
		defer wg.Done()
		processStream(stderr, func(line string) {
			diag.add(line)
			if onStderr != nil {
				onStderr(line)
			}
		})
	}()
	wg.Wait()
	err = cmd.Wait()
	return diag.String(), err
}

func processStream(reader io.Reader, streamFunc func(string)) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && streamFunc != nil {
			streamFunc(line)
		}
	}
	// drain whatever is left so the child never blocks on a full pipe
	io.Copy(io.Discard, reader)
}

// failure converts a tool error into the structured kind the caller reports.
func failure(ctx context.Context, kind utils.ErrorKind, tool string, err error, output string) error {
	toolErr := &ToolError{Tool: tool, Output: output, Err: err}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return utils.WrapError(utils.KindCancelled, toolErr, "cancelled")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return utils.WrapError(kind, toolErr, fmt.Sprintf("%s timed out", tool))
	}
	if output == "" {
		output = err.Error()
	}
	return utils.WrapError(kind, toolErr, output)
}
