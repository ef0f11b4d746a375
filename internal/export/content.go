package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
)

// BinShim renders the host-side wrapper for a command living inside a box.
// Invoking the wrapper enters the box and runs the real command with all
// arguments forwarded.
func BinShim(box, command string) []byte {
	return []byte(fmt.Sprintf("#!/usr/bin/env sh\nexec distrobox enter -n %s -- %s \"$@\"\n", box, command))
}

// RewriteExec rewrites every Exec= line of a desktop entry to launch through
// the box. Lines already routed through distrobox are left alone so a
// re-export of an exported launcher stays stable.
func RewriteExec(content, box string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		rest, ok := strings.CutPrefix(line, "Exec=")
		if !ok || strings.Contains(rest, "distrobox enter -n") {
			continue
		}
		lines[i] = fmt.Sprintf("Exec=distrobox enter -n %s -- %s", box, rest)
	}
	return strings.Join(lines, "\n")
}

// fetchDesktop reads a desktop entry from inside the box.
func fetchDesktop(ctx context.Context, r boxes.Runner, box, path string) ([]byte, error) {
	out, err := r.Output(ctx, box, "cat "+boxes.ShellQuote(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s from box %s: %w", path, box, err)
	}
	return out, nil
}
