package boxes

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes commands inside a box. The concrete implementation shells
// out to distrobox; tests substitute a fake.
type Runner interface {
	// Output runs command under `sh -lc` inside box and returns its stdout.
	// A non-zero exit is returned as an error wrapping *exec.ExitError.
	Output(ctx context.Context, box, command string) ([]byte, error)

	// Run executes argv inside box with the given stdio wiring, streaming
	// output live. It returns the command's exit code; err is non-nil only
	// when the command could not be started at all.
	Run(ctx context.Context, box string, elev Elevation, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error)

	// Alive reports whether the box can be entered at all.
	Alive(ctx context.Context, box string) bool
}

// Elevation is how privileged commands are obtained inside a box.
type Elevation int

const (
	ElevNone Elevation = iota // run as the container user
	ElevRoot                  // distrobox enter --root
	ElevSudo                  // sudo inside the container
	ElevDoas                  // doas inside the container
)

// DistroboxRunner runs commands through the distrobox CLI.
type DistroboxRunner struct{}

// NewRunner returns the distrobox-backed Runner.
func NewRunner() *DistroboxRunner {
	return &DistroboxRunner{}
}

func (r *DistroboxRunner) Output(ctx context.Context, box, command string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "distrobox", "enter", "-n", box, "--", "sh", "-lc", command)
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("running %q in box %s: %w", command, box, err)
	}
	return out, nil
}

func (r *DistroboxRunner) Run(ctx context.Context, box string, elev Elevation, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	args := []string{"enter"}
	if elev == ElevRoot {
		args = append(args, "--root")
	}
	args = append(args, "-n", box, "--")
	switch elev {
	case ElevSudo:
		args = append(args, "sudo")
	case ElevDoas:
		args = append(args, "doas")
	}
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, "distrobox", args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("entering box %s: %w", box, err)
}

func (r *DistroboxRunner) Alive(ctx context.Context, box string) bool {
	cmd := exec.CommandContext(ctx, "distrobox", "enter", "-n", box, "--", "true")
	return cmd.Run() == nil
}

// ResolveElevation probes how root privileges can be obtained inside box:
// `distrobox enter --root` first, then sudo, then doas, falling back to the
// plain container user (which may fail later for privileged operations).
func ResolveElevation(ctx context.Context, r Runner, box string) Elevation {
	if code, err := r.Run(ctx, box, ElevRoot, []string{"true"}, nil, io.Discard, io.Discard); err == nil && code == 0 {
		return ElevRoot
	}
	if _, err := r.Output(ctx, box, "command -v sudo >/dev/null"); err == nil {
		return ElevSudo
	}
	if _, err := r.Output(ctx, box, "command -v doas >/dev/null"); err == nil {
		return ElevDoas
	}
	return ElevNone
}

// ShellQuote single-quotes s for safe interpolation into an `sh -lc` string.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
