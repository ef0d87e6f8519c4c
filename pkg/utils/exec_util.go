package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/The-Promised-Neverland/navlink/pkg/logger"
)

const commandTimeout = 10 * time.Second

// RunCommand runs a service-manager command with the default timeout.
func RunCommand(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return RunCommandContext(ctx, name, args...)
}

// RunCommandContext returns the combined output. The process is killed when
// ctx ends.
func RunCommandContext(ctx context.Context, name string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	hideWindow(cmd)
	logger.Log.Debug("Running command", "command", name, "args", args)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", name, err)
	}
	err := cmd.Wait()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Log.Warn("Command timed out", "command", name, "args", args)
		return out.String(), fmt.Errorf("%s timed out: %w", name, ctx.Err())
	}
	if err != nil {
		return out.String(), fmt.Errorf("%s %v: %w", name, args, err)
	}
	return out.String(), nil
}
