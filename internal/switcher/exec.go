package switcher

import (
	"context"
	"os/exec"
)

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func runCommandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// runDetached starts a process without waiting for it to exit, matching the
// daemon's shell "&" backgrounding.
func runDetached(name string, args ...string) {
	cmd := exec.Command(name, args...)
	_ = cmd.Start()
	go func() { _ = cmd.Wait() }()
}
