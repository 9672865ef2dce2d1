//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the toolchain and the test binary it spawns in
// one process group so the timeout kills both.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
