package convert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Runner executes a binary and captures its output. exitCode is -1 when the process
// could not be started or was killed.
type Runner interface {
	Run(ctx context.Context, binary string, args, env []string, dir string) (stdout, stderr []byte, exitCode int, err error)
}

// ExecRunner runs real processes with exec.CommandContext.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the process is killed.
	WaitDelay time.Duration
}

var _ Runner = ExecRunner{}

func (r ExecRunner) Run(ctx context.Context, binary string, args, env []string, dir string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = env
	cmd.Dir = dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 2 * time.Second
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}
	return stdout.Bytes(), stderr.Bytes(), code, err
}
