//go:build !windows

package extractor

import (
	"os/exec"
	"syscall"
	"time"
)

// prepareCommand puts the tool in its own process group so cancellation also
// reaches the children it spawns (yt-dlp runs ffmpeg for some formats).
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
