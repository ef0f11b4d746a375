package boxes

import "fmt"

// familySpec holds the per-family command templates. Inventory output must be
// one "name\tversion" pair per line; owned-files output one absolute path per
// line. Both formats are what the snapshot and scanner engines parse.
type familySpec struct {
	// inventoryCmd lists every installed package as "name\tversion".
	inventoryCmd string
	// ownedFilesCmd lists the files owned by one package, one path per line.
	// %s is the shell-quoted package name.
	ownedFilesCmd string
	// managers are the package-manager commands this family answers to, in
	// shim-generation order.
	managers []string
	// defaultBoxName and defaultImage seed auto-created boxes.
	defaultBoxName string
	defaultImage   string
}

var familyTable = map[Family]familySpec{
	FamilyDebian: {
		inventoryCmd:   `dpkg-query -W -f='${Package}\t${Version}\n'`,
		ownedFilesCmd:  "dpkg -L %s",
		managers:       []string{"apt", "apt-get"},
		defaultBoxName: "debian-stable",
		defaultImage:   "docker.io/library/debian:stable",
	},
	FamilyFedora: {
		inventoryCmd:   `rpm -qa --qf '%{NAME}\t%{VERSION}-%{RELEASE}\n'`,
		ownedFilesCmd:  "rpm -ql %s",
		managers:       []string{"dnf"},
		defaultBoxName: "fedora-latest",
		defaultImage:   "registry.fedoraproject.org/fedora:latest",
	},
	FamilyOpenSUSE: {
		inventoryCmd:   `rpm -qa --qf '%{NAME}\t%{VERSION}-%{RELEASE}\n'`,
		ownedFilesCmd:  "rpm -ql %s",
		managers:       []string{"zypper"},
		defaultBoxName: "opensuse-tumbleweed",
		defaultImage:   "registry.opensuse.org/opensuse/tumbleweed:latest",
	},
	FamilyArch: {
		inventoryCmd:   `pacman -Q | awk '{print $1 "\t" $2}'`,
		ownedFilesCmd:  "pacman -Qlq %s",
		managers:       []string{"pacman"},
		defaultBoxName: "arch",
		defaultImage:   "docker.io/library/archlinux:latest",
	},
}

// InventoryCommand returns the in-box shell command that lists the full
// package inventory, or "" for FamilyUnknown.
func (f Family) InventoryCommand() string {
	return familyTable[f].inventoryCmd
}

// OwnedFilesCommand returns the in-box shell command that lists the files
// owned by pkg.
func (f Family) OwnedFilesCommand(pkg string) string {
	spec, ok := familyTable[f]
	if !ok {
		return ""
	}
	return fmt.Sprintf(spec.ownedFilesCmd, ShellQuote(pkg))
}

// Managers returns the package-manager commands shimmed for this family.
func (f Family) Managers() []string {
	return familyTable[f].managers
}

// DefaultBox returns the name and image used when auto-creating a box for
// this family.
func (f Family) DefaultBox() (name, image string) {
	spec := familyTable[f]
	return spec.defaultBoxName, spec.defaultImage
}

// FamilyForManager maps a package-manager command name (apt, dnf, ...) back
// to its family. Unknown commands map to FamilyUnknown.
func FamilyForManager(manager string) Family {
	for fam, spec := range familyTable {
		for _, m := range spec.managers {
			if m == manager {
				return fam
			}
		}
	}
	return FamilyUnknown
}

// classifyTokens maps /etc/os-release ID and ID_LIKE tokens to families.
var classifyTokens = map[string]Family{
	"debian":      FamilyDebian,
	"ubuntu":      FamilyDebian,
	"fedora":      FamilyFedora,
	"rhel":        FamilyFedora,
	"centos":      FamilyFedora,
	"opensuse":    FamilyOpenSUSE,
	"sles":        FamilyOpenSUSE,
	"suse":        FamilyOpenSUSE,
	"arch":        FamilyArch,
	"manjaro":     FamilyArch,
	"endeavouros": FamilyArch,
}
