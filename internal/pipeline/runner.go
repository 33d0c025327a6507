package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external engine binary. The pipeline talks to ffmpeg
// and whisper-cli through this interface so tests can substitute a fake
// without invoking real binaries.
type Runner interface {
	// Run executes name with args in dir ("" = inherit cwd) and returns
	// combined stdout+stderr.
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return out, fmt.Errorf("%s: %s", name, strings.TrimSpace(string(ee.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
