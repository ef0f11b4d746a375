package boxes

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
)

// Discover lists the Distrobox containers on this host. It tries
// `distrobox list --json` first and falls back to parsing the plain table
// output of older versions. A missing distrobox binary yields an empty list,
// not an error: every caller treats "no boxes" as an ordinary state.
func Discover(ctx context.Context) ([]Box, error) {
	log := logging.GetLogger("boxes")

	out, err := exec.CommandContext(ctx, "distrobox", "list", "--json").Output()
	if err == nil && len(strings.TrimSpace(string(out))) > 0 {
		if list, jsonErr := parseBoxesJSON(out); jsonErr == nil {
			return list, nil
		}
	}

	out, err = exec.CommandContext(ctx, "distrobox", "list").Output()
	if err != nil {
		log.Debug().Err(err).Msg("distrobox list failed; treating as no boxes")
		return nil, nil
	}
	return parseBoxesPlain(string(out)), nil
}

// jsonBox matches both distrobox JSON shapes: a bare array of containers or
// an object with a "containers" key.
type jsonBox struct {
	Name   string `json:"name"`
	Image  string `json:"image"`
	Engine string `json:"engine"`
}

type jsonList struct {
	Containers []jsonBox `json:"containers"`
}

func parseBoxesJSON(data []byte) ([]Box, error) {
	trimmed := strings.TrimSpace(string(data))

	var raw []jsonBox
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var obj jsonList
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		raw = obj.Containers
	}

	list := make([]Box, 0, len(raw))
	for _, j := range raw {
		runtime := j.Engine
		if runtime == "" {
			runtime = "unknown"
		}
		list = append(list, Box{Name: j.Name, Image: j.Image, Runtime: runtime})
	}
	return list, nil
}

// parseBoxesPlain handles the two table formats older distrobox versions
// print: a pipe table "ID | NAME | STATUS | IMAGE" and a whitespace layout
// with the name in the first or second column.
func parseBoxesPlain(s string) []Box {
	var list []Box
	sawPipeHeader := false

	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}

		if strings.Contains(t, "|") {
			cols := strings.Split(t, "|")
			for i := range cols {
				cols[i] = strings.TrimSpace(cols[i])
			}
			if containsFold(cols, "NAME") && containsFold(cols, "ID") {
				sawPipeHeader = true
				continue
			}
			if isSeparatorRow(cols) {
				continue
			}
			if len(cols) >= 2 {
				name := cols[1]
				if name == "" || strings.EqualFold(name, "NAME") {
					continue
				}
				b := Box{Name: name, Runtime: "unknown"}
				if len(cols) > 3 {
					b.Image = cols[3]
				}
				list = append(list, b)
				continue
			}
		}

		if strings.HasPrefix(t, "NAME") || strings.HasPrefix(t, "+---") ||
			strings.Contains(t, "CONTAINER ID") || strings.EqualFold(t, "id") {
			continue
		}
		fields := strings.Fields(t)
		if len(fields) == 0 {
			continue
		}
		if sawPipeHeader && len(fields[0]) >= 6 && len(fields) >= 2 {
			// Likely "ID NAME ... IMAGE": take the second column.
			b := Box{Name: fields[1], Runtime: "unknown"}
			if len(fields) > 3 {
				b.Image = fields[3]
			}
			list = append(list, b)
			continue
		}
		name := fields[0]
		if strings.EqualFold(name, "NAME") || strings.EqualFold(name, "Created") {
			continue
		}
		b := Box{Name: name, Runtime: "unknown"}
		if len(fields) > 1 {
			b.Image = fields[1]
		}
		list = append(list, b)
	}
	return list
}

func containsFold(cols []string, want string) bool {
	for _, c := range cols {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}

func isSeparatorRow(cols []string) bool {
	for _, c := range cols {
		for _, ch := range c {
			if ch != '-' && ch != '+' {
				return false
			}
		}
	}
	return true
}
