//go:build windows

package speech

import (
	"errors"
	"os"
)

var errPauseUnsupported = errors.New("pausing a process is not supported on windows")

func suspendProcess(*os.Process) error {
	return errPauseUnsupported
}

func resumeProcess(*os.Process) error {
	return errPauseUnsupported
}
