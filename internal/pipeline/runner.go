package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
)

// Process exit codes. The fatal classes get their own codes so a parent
// orchestrator can tell them apart from transient failures.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitConfig     = 2
	ExitStale      = 3
	ExitAuth       = 4
	ExitValidation = 5
)

// EnvRunID carries the run ID into step processes.
const EnvRunID = "REDDITETL_RUN_ID"

// exitTypes maps the fatal exit codes back to their error category.
var exitTypes = map[int]etlerrors.ErrorType{
	ExitConfig:     etlerrors.ErrorTypeConfig,
	ExitAuth:       etlerrors.ErrorTypeAuthentication,
	ExitValidation: etlerrors.ErrorTypeValidation,
}

// ExitCode maps a step error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrStaleArtifact):
		return ExitStale
	}
	switch etlerrors.TypeOf(err) {
	case etlerrors.ErrorTypeConfig:
		return ExitConfig
	case etlerrors.ErrorTypeAuthentication:
		return ExitAuth
	case etlerrors.ErrorTypeValidation:
		return ExitValidation
	default:
		return ExitError
	}
}

// StepRunner executes one step to completion.
type StepRunner interface {
	RunStep(ctx context.Context, step string) error
}

// FuncRunner runs steps in-process.
type FuncRunner func(ctx context.Context, step string) error

// RunStep calls f.
func (f FuncRunner) RunStep(ctx context.Context, step string) error {
	return f(ctx, step)
}

// ProcessRunner runs each step as "Binary Args... step" in a child process,
// so a step's memory and connections are released when it exits.
type ProcessRunner struct {
	Binary string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// RunStep starts the child and waits for it. ExitStale is mapped back to
// ErrStaleArtifact and the fatal codes to their error category; any other
// failure is internal and retryable.
func (r *ProcessRunner) RunStep(ctx context.Context, step string) error {
	args := append(append([]string(nil), r.Args...), step)
	cmd := exec.CommandContext(ctx, r.Binary, args...) //nolint:gosec // binary is our own executable
	cmd.Env = append(append(os.Environ(), r.Env...), EnvRunID+"="+logger.RunID(ctx))
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code == ExitStale {
				return etlerrors.Wrapf(ErrStaleArtifact, etlerrors.ErrorTypeStale, "step %s found stale input", step)
			}
			if typ, ok := exitTypes[code]; ok {
				return etlerrors.Wrapf(err, typ, "step %s failed in child process", step).
					WithDetail("exit_code", code)
			}
		}
		return etlerrors.Wrapf(err, etlerrors.ErrorTypeInternal, "step %s process failed", step)
	}
	return nil
}
