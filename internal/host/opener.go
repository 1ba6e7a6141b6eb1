package host

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
)

// Opener opens a directory in the user's environment.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// CommandOpener runs an external command with the path. A "{path}" field is
// replaced by the path; otherwise the path is appended.
type CommandOpener struct {
	Args []string
}

// NewCommandOpener parses command, falling back to the platform opener.
func NewCommandOpener(command string) *CommandOpener {
	args := strings.Fields(command)
	if len(args) == 0 {
		args = defaultOpenArgs(runtime.GOOS)
	}
	return &CommandOpener{Args: args}
}

func defaultOpenArgs(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"explorer"}
	default:
		return []string{"xdg-open"}
	}
}

// Command builds the command line for path.
func (o *CommandOpener) Command(path string) []string {
	out := make([]string, 0, len(o.Args)+1)
	replaced := false
	for _, arg := range o.Args {
		if strings.Contains(arg, "{path}") {
			arg = strings.ReplaceAll(arg, "{path}", path)
			replaced = true
		}
		out = append(out, arg)
	}
	if !replaced {
		out = append(out, path)
	}
	return out
}

// Open starts the command without waiting for the opened application.
func (o *CommandOpener) Open(_ context.Context, path string) error {
	argv := o.Command(path)
	if len(argv) == 0 {
		return errors.New("no open command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
