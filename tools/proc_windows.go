//go:build windows

package tools

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
)

func setupProcessGroup(*exec.Cmd) {}

// killProcessGroup uses taskkill /T to take the child tree down with the
// process.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	_ = exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid)).Run()
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func shellCommand(shell, code string) (string, []string) {
	return shell, []string{"/C", code}
}

func defaultShell() (path, name string) {
	return "cmd", "Command Prompt"
}
