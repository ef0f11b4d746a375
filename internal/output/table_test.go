package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/export"
	"github.com/blackwell-systems/pkgbridge/internal/history"
	"github.com/blackwell-systems/pkgbridge/internal/scanner"
	"github.com/blackwell-systems/pkgbridge/internal/snapshot"
)

func TestRenderBoxTable(t *testing.T) {
	out := RenderBoxTable([]boxes.Box{
		{Name: "deb-work", Image: "docker.io/library/debian:stable", Runtime: "podman", Family: boxes.FamilyDebian},
		{Name: "mystery", Image: "something:latest", Runtime: "docker", Family: boxes.FamilyUnknown},
	})

	for _, want := range []string{"deb-work", "debian", "podman", "mystery", "unknown"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderBoxTableEmpty(t *testing.T) {
	if out := RenderBoxTable(nil); !strings.Contains(out, "No boxes found") {
		t.Errorf("unexpected empty rendering: %q", out)
	}
}

func TestRenderDiffTable(t *testing.T) {
	out := RenderDiffTable(snapshot.Diff{
		{Package: "new-pkg", Kind: snapshot.KindNew, Version: "1.0"},
		{Package: "upgraded-pkg", Kind: snapshot.KindUpgraded, Version: "2.0"},
	})
	if !strings.Contains(out, "+ new-pkg 1.0") {
		t.Errorf("new package line wrong:\n%s", out)
	}
	if !strings.Contains(out, "^ upgraded-pkg 2.0") {
		t.Errorf("upgraded package line wrong:\n%s", out)
	}
}

func TestRenderExportResults(t *testing.T) {
	results := []export.Result{
		{Artifact: scanner.Artifact{Path: "/usr/bin/rg"}, Outcome: export.OutcomeExported, HostPath: "/home/u/.local/bin/rg"},
		{Artifact: scanner.Artifact{Path: "/usr/bin/jq"}, Outcome: export.OutcomeSkipped},
		{Artifact: scanner.Artifact{Path: "/usr/bin/fd"}, Outcome: export.OutcomeCollided, HostPath: "/home/u/.local/bin/fd-deb"},
	}
	out := RenderExportResults(results)

	if !strings.Contains(out, "rg → /home/u/.local/bin/rg") {
		t.Errorf("export line missing:\n%s", out)
	}
	if !strings.Contains(out, "jq (skipped: name taken)") {
		t.Errorf("skip line missing:\n%s", out)
	}
	if !strings.Contains(out, "fd → /home/u/.local/bin/fd-deb (name collision)") {
		t.Errorf("collision line missing:\n%s", out)
	}
	if !strings.Contains(out, "Exports: 1 exported, 1 collided, 1 skipped") {
		t.Errorf("summary footer wrong:\n%s", out)
	}
}

func TestRenderHistoryTable(t *testing.T) {
	out := RenderHistoryTable([]history.Transaction{
		{ID: 7, Box: "deb", Command: "apt install ripgrep", ExitCode: 0,
			StartedAt: time.Now().Add(-2 * time.Hour), Changed: 1, Exported: 1},
	})
	for _, want := range []string{"deb", "2 hours ago", "apt install ripgrep"} {
		if !strings.Contains(out, want) {
			t.Errorf("history table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	cases := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{time.Now().Add(-30 * time.Second), "just now"},
		{time.Now().Add(-1 * time.Minute), "1 minute ago"},
		{time.Now().Add(-3 * 24 * time.Hour), "3 days ago"},
	}
	for _, c := range cases {
		if got := formatRelativeTime(c.t); got != c.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", c.t, got, c.want)
		}
	}
}

func TestSpinnerNonTTYPrintsOnce(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Capturing snapshot")
	s.SetWriter(&buf)
	s.Start()
	s.Stop()

	if got := buf.String(); got != "Capturing snapshot...\n" {
		t.Errorf("non-TTY spinner output = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a-very-long-package-name", 10); got != "a-very-..." {
		t.Errorf("truncate long = %q", got)
	}
}
