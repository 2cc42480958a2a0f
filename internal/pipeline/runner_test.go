package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/logger"
)

// shellRunner runs a child that records each invocation in a file, then exits
// with code.
func shellRunner(t *testing.T, code int) (*ProcessRunner, func() int) {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	calls := filepath.Join(t.TempDir(), "calls")
	runner := &ProcessRunner{
		Binary: sh,
		Args:   []string{"-c", fmt.Sprintf(`echo "$0" >> "$CALLS_FILE"; exit %d`, code)},
		Env:    []string{"CALLS_FILE=" + calls},
	}
	count := func() int {
		data, err := os.ReadFile(calls)
		if os.IsNotExist(err) {
			return 0
		}
		require.NoError(t, err)
		return strings.Count(string(data), "\n")
	}
	return runner, count
}

func TestProcessRunnerExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		wantType etlerrors.ErrorType
		stale    bool
	}{
		{"success", ExitOK, "", false},
		{"failure", ExitError, etlerrors.ErrorTypeInternal, false},
		{"config", ExitConfig, etlerrors.ErrorTypeConfig, false},
		{"stale", ExitStale, etlerrors.ErrorTypeStale, true},
		{"auth", ExitAuth, etlerrors.ErrorTypeAuthentication, false},
		{"validation", ExitValidation, etlerrors.ErrorTypeValidation, false},
		{"unknown code", 42, etlerrors.ErrorTypeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, count := shellRunner(t, tt.code)

			err := runner.RunStep(context.Background(), StepLoad)
			assert.Equal(t, 1, count())
			if tt.code == ExitOK {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantType, etlerrors.TypeOf(err))
			assert.Equal(t, tt.stale, errors.Is(err, ErrStaleArtifact))
			assert.Contains(t, err.Error(), StepLoad)
		})
	}
}

func TestProcessRunnerPassesStepAndRunID(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	var out bytes.Buffer
	runner := &ProcessRunner{
		Binary: sh,
		Args:   []string{"-c", `echo "$0 $` + EnvRunID + ` $EXTRA"`},
		Env:    []string{"EXTRA=set"},
		Stdout: &out,
	}

	ctx := logger.WithRunID(context.Background(), "run-42")
	require.NoError(t, runner.RunStep(ctx, StepTransform))
	assert.Equal(t, "transform run-42 set\n", out.String())
}

func TestOrchestratorRetriesChildProcessFailures(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		wantCalls int
		wantExit  int
	}{
		{"transient failure uses the budget", ExitError, 3, ExitError},
		{"stale input uses the budget", ExitStale, 3, ExitStale},
		{"config error is not retried", ExitConfig, 1, ExitConfig},
		{"auth error is not retried", ExitAuth, 1, ExitAuth},
		{"validation error is not retried", ExitValidation, 1, ExitValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, count := shellRunner(t, tt.code)
			orch := NewOrchestrator(Options{
				Runner:     runner,
				Steps:      []string{StepExtract},
				Retries:    2,
				RetryDelay: time.Millisecond,
				Logger:     zaptest.NewLogger(t),
			})

			_, err := orch.RunOnce(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, count())
			assert.Equal(t, tt.wantExit, ExitCode(err))
		})
	}
}
