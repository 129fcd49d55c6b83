package tools

import (
	"errors"
	"os/exec"
)

// ErrNoPython is returned when no Python interpreter can be found.
var ErrNoPython = errors.New("no python interpreter found on PATH (tried python3, python)")

// FindPython returns configured when set, else the first of python3 and
// python found on PATH.
func FindPython(configured string) (string, error) {
	if configured != "" {
		return exec.LookPath(configured)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrNoPython
}
