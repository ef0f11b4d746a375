package state

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
)

// Artifact kinds recorded for exports.
const (
	KindBin     = "bin"
	KindDesktop = "desktop"
)

// ExportRecord links one pkgbridge-claimed host path to its origin. A host
// path has at most one record; host files pkgbridge did not create are never
// recorded.
type ExportRecord struct {
	HostPath    string    `toml:"host_path"`
	Box         string    `toml:"box"`
	Package     string    `toml:"package"`
	Kind        string    `toml:"kind"`
	SourcePath  string    `toml:"source_path"`
	ContentHash string    `toml:"content_hash"`
	ExportedAt  time.Time `toml:"exported_at"`
}

// Records is the full export-record set. Mutations go through Upsert/Remove
// so the one-record-per-host-path invariant holds.
type Records struct {
	Records []ExportRecord `toml:"records"`
}

// LoadExports reads the export-record set. A missing or unreadable file is
// empty state: exports must keep working after state corruption, at the cost
// of re-exporting.
func (s *Store) LoadExports() *Records {
	log := logging.GetLogger("state")

	data, err := os.ReadFile(s.ExportsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("export records unreadable; starting from empty state")
		}
		return &Records{}
	}

	var recs Records
	if err := toml.Unmarshal(data, &recs); err != nil {
		log.Warn().Err(err).Str("path", s.ExportsPath()).Msg("export records corrupt; starting from empty state")
		return &Records{}
	}
	return &recs
}

// SaveExports persists the record set atomically.
func (s *Store) SaveExports(recs *Records) error {
	data, err := toml.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encoding export records: %w", err)
	}
	if err := WriteFileAtomic(s.ExportsPath(), data, 0o644); err != nil {
		return fmt.Errorf("saving export records: %w", err)
	}
	return nil
}

// ByHostPath returns the record claiming hostPath, or nil.
func (r *Records) ByHostPath(hostPath string) *ExportRecord {
	for i := range r.Records {
		if r.Records[i].HostPath == hostPath {
			return &r.Records[i]
		}
	}
	return nil
}

// ByOrigin returns the record exported from (box, sourcePath), or nil.
func (r *Records) ByOrigin(box, sourcePath string) *ExportRecord {
	for i := range r.Records {
		if r.Records[i].Box == box && r.Records[i].SourcePath == sourcePath {
			return &r.Records[i]
		}
	}
	return nil
}

// ForPackage returns all records exported for (box, pkg).
func (r *Records) ForPackage(box, pkg string) []ExportRecord {
	var out []ExportRecord
	for _, rec := range r.Records {
		if rec.Box == box && rec.Package == pkg {
			out = append(out, rec)
		}
	}
	return out
}

// Upsert inserts rec or replaces the existing record for its host path.
func (r *Records) Upsert(rec ExportRecord) {
	for i := range r.Records {
		if r.Records[i].HostPath == rec.HostPath {
			r.Records[i] = rec
			return
		}
	}
	r.Records = append(r.Records, rec)
}

// Remove drops the record for hostPath and reports whether one existed.
func (r *Records) Remove(hostPath string) bool {
	for i := range r.Records {
		if r.Records[i].HostPath == hostPath {
			r.Records = append(r.Records[:i], r.Records[i+1:]...)
			return true
		}
	}
	return false
}
