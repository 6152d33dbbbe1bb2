package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// LocalRunner executes commands on the local host using os/exec.
type LocalRunner struct{}

// NewLocalRunner creates a new LocalRunner.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run validates the command against the allow-list and executes it with the
// given timeout. A timed-out command is encoded with the -1 sentinel return
// code; any other command failure is encoded in the returned result.
func (r *LocalRunner) Run(ctx context.Context, command string, timeout time.Duration) (*api.CommandResult, error) {
	fields, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}

	cmdCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, fields[0], fields[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := &api.CommandResult{
		Stdout:              stdout.String(),
		Stderr:              stderr.String(),
		Command:             command,
		ExecutionTimeMillis: elapsed.Milliseconds(),
	}

	if cmdCtx.Err() == context.DeadlineExceeded {
		result.ReturnCode = api.TimedOutReturnCode
		result.Stdout = ""
		result.Stderr = fmt.Sprintf("Command timed out after %d seconds", int(timeout.Seconds()))
		return result, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ReturnCode = exitErr.ExitCode()
			return result, nil
		}
		// The binary could not be started at all (not found, permissions).
		return nil, fmt.Errorf("executing %q: %w", command, runErr)
	}

	return result, nil
}
