package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
)

type fakeRunner struct {
	output map[string]string // box -> inventory output
	fail   bool
}

func (f *fakeRunner) Output(ctx context.Context, box, command string) ([]byte, error) {
	if f.fail {
		return nil, fmt.Errorf("box %s unreachable", box)
	}
	return []byte(f.output[box]), nil
}

func (f *fakeRunner) Run(ctx context.Context, box string, elev boxes.Elevation, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	return 0, nil
}

func (f *fakeRunner) Alive(ctx context.Context, box string) bool { return !f.fail }

func TestCaptureNormalizesOrder(t *testing.T) {
	r := &fakeRunner{output: map[string]string{
		"deb": "zsh\t5.9\nbash\t5.2\ncoreutils\t9.4\n",
	}}
	box := boxes.Box{Name: "deb", Family: boxes.FamilyDebian}

	snap, err := Capture(context.Background(), r, box)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	want := []PackageVersion{
		{Name: "bash", Version: "5.2"},
		{Name: "coreutils", Version: "9.4"},
		{Name: "zsh", Version: "5.9"},
	}
	if !reflect.DeepEqual(snap.Packages, want) {
		t.Errorf("inventory not sorted: %+v", snap.Packages)
	}
	if snap.Box != "deb" {
		t.Errorf("box identity not tagged: %q", snap.Box)
	}
}

func TestCaptureSkipsBlankAndTolerates(t *testing.T) {
	r := &fakeRunner{output: map[string]string{
		"deb": "\na\t1.0\n\nnoversion\n  \n",
	}}

	snap, err := Capture(context.Background(), r, boxes.Box{Name: "deb", Family: boxes.FamilyDebian})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(snap.Packages) != 2 {
		t.Fatalf("expected 2 entries, got %+v", snap.Packages)
	}
	if snap.Packages[1].Name != "noversion" || snap.Packages[1].Version != "" {
		t.Errorf("versionless entry mishandled: %+v", snap.Packages[1])
	}
}

func TestCaptureUnreachable(t *testing.T) {
	r := &fakeRunner{fail: true}

	_, err := Capture(context.Background(), r, boxes.Box{Name: "deb", Family: boxes.FamilyDebian})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCaptureUnknownFamily(t *testing.T) {
	r := &fakeRunner{}

	_, err := Capture(context.Background(), r, boxes.Box{Name: "x", Family: boxes.FamilyUnknown})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for unknown family, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deb.toml")
	snap := &Snapshot{
		Box: "deb",
		Packages: []PackageVersion{
			{Name: "a", Version: "1.0"},
			{Name: "b", Version: "2.0"},
		},
	}

	if err := Save(path, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for existing file")
	}
	if !reflect.DeepEqual(loaded.Packages, snap.Packages) {
		t.Errorf("round trip mismatch: %+v", loaded.Packages)
	}

	// Equal inventories serialize identically.
	if err := Save(path+".2", &Snapshot{Box: "deb", Packages: snap.Packages}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	d1, _ := os.ReadFile(path)
	d2, _ := os.ReadFile(path + ".2")
	if string(d1) != string(d2) {
		t.Error("identical inventories produced different serializations")
	}
}

func TestLoadMissingIsNil(t *testing.T) {
	loaded, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing snapshot should not error: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing snapshot, got %+v", loaded)
	}
}

func TestLoadCorruptIsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("]]]]garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("corrupt snapshot should not error: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for corrupt snapshot, got %+v", loaded)
	}
}
