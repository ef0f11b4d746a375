package boxes

import "testing"

func TestParseBoxesJSONArray(t *testing.T) {
	data := `[{"name":"debian-stable","image":"docker.io/library/debian:stable","engine":"podman"},
	          {"name":"fedora-latest","image":"registry.fedoraproject.org/fedora:latest"}]`

	list, err := parseBoxesJSON([]byte(data))
	if err != nil {
		t.Fatalf("parseBoxesJSON failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(list))
	}
	if list[0].Name != "debian-stable" || list[0].Runtime != "podman" {
		t.Errorf("unexpected first box: %+v", list[0])
	}
	if list[1].Runtime != "unknown" {
		t.Errorf("missing engine should map to runtime %q, got %q", "unknown", list[1].Runtime)
	}
}

func TestParseBoxesJSONObject(t *testing.T) {
	data := `{"containers":[{"name":"arch","image":"docker.io/library/archlinux:latest","engine":"docker"}]}`

	list, err := parseBoxesJSON([]byte(data))
	if err != nil {
		t.Fatalf("parseBoxesJSON failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "arch" || list[0].Runtime != "docker" {
		t.Fatalf("unexpected result: %+v", list)
	}
}

func TestParseBoxesJSONInvalid(t *testing.T) {
	if _, err := parseBoxesJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseBoxesPlainPipeTable(t *testing.T) {
	out := `ID           | NAME                 | STATUS             | IMAGE
a1b2c3d4e5f6 | debian-stable        | Up 2 hours         | docker.io/library/debian:stable
f6e5d4c3b2a1 | fedora-latest        | Exited (0) 1 day   | registry.fedoraproject.org/fedora:latest
`

	list := parseBoxesPlain(out)
	if len(list) != 2 {
		t.Fatalf("expected 2 boxes, got %d: %+v", len(list), list)
	}
	if list[0].Name != "debian-stable" {
		t.Errorf("expected debian-stable, got %q", list[0].Name)
	}
	if list[0].Image != "docker.io/library/debian:stable" {
		t.Errorf("unexpected image: %q", list[0].Image)
	}
}

func TestParseBoxesPlainWhitespace(t *testing.T) {
	out := `NAME IMAGE
mybox docker.io/library/debian:stable
`

	list := parseBoxesPlain(out)
	if len(list) != 1 {
		t.Fatalf("expected 1 box, got %d: %+v", len(list), list)
	}
	if list[0].Name != "mybox" || list[0].Image != "docker.io/library/debian:stable" {
		t.Errorf("unexpected box: %+v", list[0])
	}
}

func TestParseBoxesPlainEmpty(t *testing.T) {
	if list := parseBoxesPlain(""); len(list) != 0 {
		t.Fatalf("expected no boxes, got %+v", list)
	}
}
