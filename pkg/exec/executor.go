// Package exec runs allow-listed kubectl and helm commands on behalf of the
// agent, and exposes them over HTTP to the rest of the system.
package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"

	"github.com/kubechat-dev/kubechat/pkg/api"
)

// AllowedCommands are the tool prefixes a command line may start with.
var AllowedCommands = []string{"kubectl", "helm"}

// ErrCommandNotAllowed marks a command rejected by the allow-list. The HTTP
// boundary maps it to a 400.
var ErrCommandNotAllowed = errors.New("command not allowed")

// Runner executes a single command line with a timeout. A failing command is
// reported through CommandResult.ReturnCode; an error return means the
// command could not be run at all.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (*api.CommandResult, error)
}

// SplitCommand splits a command line into argv fields and validates it
// against the allow-list. Shell control constructs (pipes, command
// separators, substitutions) are rejected rather than interpreted: the
// executor runs argv directly, it is not a shell.
func SplitCommand(command string) ([]string, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty command", ErrCommandNotAllowed)
	}
	if i := strings.IndexAny(trimmed, ";|&<>`$()"); i >= 0 {
		return nil, fmt.Errorf("%w: shell metacharacter %q", ErrCommandNotAllowed, trimmed[i])
	}

	fields, err := shell.Fields(trimmed, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommandNotAllowed, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrCommandNotAllowed)
	}

	tool := fields[0]
	for _, allowed := range AllowedCommands {
		if tool == allowed {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrCommandNotAllowed, tool, strings.Join(AllowedCommands, ", "))
}
