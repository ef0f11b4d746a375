package boxes

import "testing"

func TestParseOSRelease(t *testing.T) {
	content := `NAME="Ubuntu"
VERSION="22.04.3 LTS (Jammy Jellyfish)"
ID=ubuntu
ID_LIKE=debian
# a comment
PRETTY_NAME="Ubuntu 22.04.3 LTS"
`

	id, idLike := parseOSRelease(content)
	if id != "ubuntu" {
		t.Errorf("expected id ubuntu, got %q", id)
	}
	if len(idLike) != 1 || idLike[0] != "debian" {
		t.Errorf("expected ID_LIKE [debian], got %v", idLike)
	}
}

func TestParseOSReleaseQuotedIDLike(t *testing.T) {
	id, idLike := parseOSRelease(`ID="opensuse-tumbleweed"` + "\n" + `ID_LIKE="opensuse suse"` + "\n")
	if id != "opensuse-tumbleweed" {
		t.Errorf("unexpected id %q", id)
	}
	if len(idLike) != 2 || idLike[0] != "opensuse" || idLike[1] != "suse" {
		t.Errorf("unexpected ID_LIKE %v", idLike)
	}
}

func TestClassifyIDs(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		idLike []string
		want   Family
	}{
		{"debian direct", "debian", nil, FamilyDebian},
		{"ubuntu is debian", "ubuntu", nil, FamilyDebian},
		{"via id_like", "linuxmint", []string{"ubuntu", "debian"}, FamilyDebian},
		{"fedora", "fedora", nil, FamilyFedora},
		{"centos is fedora family", "centos", []string{"rhel", "fedora"}, FamilyFedora},
		{"tumbleweed via id_like", "opensuse-tumbleweed", []string{"opensuse", "suse"}, FamilyOpenSUSE},
		{"arch", "arch", nil, FamilyArch},
		{"manjaro is arch family", "manjaro", []string{"arch"}, FamilyArch},
		{"unmatched", "gentoo", nil, FamilyUnknown},
		{"empty", "", nil, FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyIDs(tt.id, tt.idLike); got != tt.want {
				t.Errorf("classifyIDs(%q, %v) = %v, want %v", tt.id, tt.idLike, got, tt.want)
			}
		})
	}
}

func TestFamilyForManager(t *testing.T) {
	if fam := FamilyForManager("apt"); fam != FamilyDebian {
		t.Errorf("apt should map to debian, got %v", fam)
	}
	if fam := FamilyForManager("apt-get"); fam != FamilyDebian {
		t.Errorf("apt-get should map to debian, got %v", fam)
	}
	if fam := FamilyForManager("dnf"); fam != FamilyFedora {
		t.Errorf("dnf should map to fedora, got %v", fam)
	}
	if fam := FamilyForManager("zypper"); fam != FamilyOpenSUSE {
		t.Errorf("zypper should map to opensuse, got %v", fam)
	}
	if fam := FamilyForManager("pacman"); fam != FamilyArch {
		t.Errorf("pacman should map to arch, got %v", fam)
	}
	if fam := FamilyForManager("brew"); fam != FamilyUnknown {
		t.Errorf("brew should be unknown, got %v", fam)
	}
}

func TestOwnedFilesCommandQuoting(t *testing.T) {
	cmd := FamilyDebian.OwnedFilesCommand("libfoo; rm -rf /")
	if cmd != `dpkg -L 'libfoo; rm -rf /'` {
		t.Errorf("package name not quoted: %q", cmd)
	}
	if FamilyUnknown.OwnedFilesCommand("x") != "" {
		t.Error("unknown family should produce no command")
	}
}

func TestSanitizeName(t *testing.T) {
	if got := SanitizeName("my box:v2"); got != "my-box-v2" {
		t.Errorf("unexpected sanitized name %q", got)
	}
}
