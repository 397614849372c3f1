package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// newWorkerCommand creates an exec.Cmd with process group isolation. The
// Setpgid flag puts the worker in its own process group so that a hard kill
// takes down the whole subprocess tree, not just the immediate child.
func newWorkerCommand(argv []string) *exec.Cmd {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// killProcessGroup sends SIGKILL to the entire process group (negative PID).
// Termination is deliberately a hard kill, not a cooperative request: the
// worker cannot intercept it, in exchange for guaranteed responsiveness to
// cancellation.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}
	return nil
}

// exitStatus converts the error returned by cmd.Wait into an exit code.
// Signal-terminated processes report -1, which counts as abnormal.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// SelfWorkerArgv returns the argv that re-executes the current binary as a
// worker child, used when Config.WorkerArgv is not set.
func SelfWorkerArgv() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating own executable: %w", err)
	}
	return []string{exe, "_worker"}, nil
}
