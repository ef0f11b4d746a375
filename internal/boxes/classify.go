package boxes

import (
	"context"
	"fmt"
	"strings"
)

// Classify determines the distribution family of a box by reading
// /etc/os-release inside it. Boxes whose ID/ID_LIKE tokens match nothing in
// the family table come back as FamilyUnknown without an error; only a failure
// to enter the box at all is an error.
func Classify(ctx context.Context, r Runner, name string) (Family, error) {
	out, err := r.Output(ctx, name, "cat /etc/os-release 2>/dev/null || true")
	if err != nil {
		return FamilyUnknown, fmt.Errorf("reading /etc/os-release in box %s: %w", name, err)
	}
	id, idLike := parseOSRelease(string(out))
	return classifyIDs(id, idLike), nil
}

// parseOSRelease extracts the ID value and ID_LIKE tokens, lowercased and
// unquoted.
func parseOSRelease(s string) (id string, idLike []string) {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "ID="); ok {
			id = strings.ToLower(unquote(rest))
		} else if rest, ok := strings.CutPrefix(line, "ID_LIKE="); ok {
			idLike = append(idLike, strings.Fields(strings.ToLower(unquote(rest)))...)
		}
	}
	return id, idLike
}

func unquote(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 2 {
		if (t[0] == '"' && t[len(t)-1] == '"') || (t[0] == '\'' && t[len(t)-1] == '\'') {
			return t[1 : len(t)-1]
		}
	}
	return t
}

func classifyIDs(id string, idLike []string) Family {
	if fam, ok := classifyTokens[id]; ok {
		return fam
	}
	for _, token := range idLike {
		if fam, ok := classifyTokens[token]; ok {
			return fam
		}
	}
	return FamilyUnknown
}
