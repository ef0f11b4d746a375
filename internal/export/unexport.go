package export

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/state"
)

// Unexport removes every export of pkg from box: the host files pkgbridge
// wrote and their records. A host file whose content no longer matches the
// recorded hash has been replaced by the user; the record is dropped but the
// file is left alone. Returns the host paths whose records were removed.
func (e *Exporter) Unexport(box, pkg string) ([]string, error) {
	log := logging.GetLogger("export")

	records := e.Records.ForPackage(box, pkg)
	if len(records) == 0 {
		return nil, fmt.Errorf("no exports recorded for package %s in box %s", pkg, box)
	}

	var removed []string
	for _, rec := range records {
		if ownsFile(rec) {
			if err := os.Remove(rec.HostPath); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("removing %s: %w", rec.HostPath, err)
			}
		} else {
			log.Warn().Str("host_path", rec.HostPath).
				Msg("file content changed since export; dropping record but keeping file")
		}
		e.Records.Remove(rec.HostPath)
		removed = append(removed, rec.HostPath)
	}
	return removed, nil
}

// ownsFile reports whether the on-disk bytes still match what pkgbridge
// wrote. A missing file counts as owned so its record gets cleaned up.
func ownsFile(rec state.ExportRecord) bool {
	data, err := os.ReadFile(rec.HostPath)
	if err != nil {
		return true
	}
	return hashContent(data) == rec.ContentHash
}
