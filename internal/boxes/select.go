package boxes

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
)

// Test seams, agent-layer style: package-level function vars swapped out by
// unit tests so selection logic can run without a container runtime.
var (
	discoverFn = Discover
	createFn   = CreateBox
)

// Select picks the box a transaction should target.
//
// An explicit override wins verbatim and fails with ErrBoxNotFound when the
// named box is absent or cannot be entered. Otherwise the first live box of
// the required family in discovery order is chosen. When none exists and
// create is set, a box is created from the family's default image (or
// imageOverride) and returned; otherwise ErrNoMatchingBox.
func Select(ctx context.Context, r Runner, required Family, override string, create bool, imageOverride string) (Box, error) {
	log := logging.GetLogger("boxes")

	list, err := discoverFn(ctx)
	if err != nil {
		return Box{}, fmt.Errorf("discovering boxes: %w", err)
	}

	if override != "" {
		for _, b := range list {
			if b.Name != override {
				continue
			}
			if !r.Alive(ctx, b.Name) {
				return Box{}, fmt.Errorf("box %q is unreachable: %w", override, ErrBoxNotFound)
			}
			fam, err := Classify(ctx, r, b.Name)
			if err != nil {
				return Box{}, err
			}
			b.Family = fam
			return b, nil
		}
		return Box{}, fmt.Errorf("box %q: %w", override, ErrBoxNotFound)
	}

	for _, b := range list {
		fam, err := Classify(ctx, r, b.Name)
		if err != nil {
			log.Debug().Str("box", b.Name).Err(err).Msg("skipping unclassifiable box")
			continue
		}
		if fam != required || fam == FamilyUnknown {
			continue
		}
		if !r.Alive(ctx, b.Name) {
			log.Debug().Str("box", b.Name).Msg("skipping unreachable box")
			continue
		}
		b.Family = fam
		return b, nil
	}

	if create && required != FamilyUnknown {
		name, image := required.DefaultBox()
		if imageOverride != "" {
			image = imageOverride
		}
		log.Info().Str("box", name).Str("image", image).Msg("creating box")
		if err := createFn(ctx, name, image); err != nil {
			return Box{}, err
		}
		return Box{Name: name, Image: image, Runtime: "unknown", Family: required}, nil
	}

	return Box{}, fmt.Errorf("no live %s box: %w", required, ErrNoMatchingBox)
}

// CreateBox creates a new distrobox from image.
func CreateBox(ctx context.Context, name, image string) error {
	cmd := exec.CommandContext(ctx, "distrobox", "create", "--name", name, "--image", image, "--yes")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("distrobox create %s failed: %w (output: %s)", name, err, string(out))
	}
	return nil
}
