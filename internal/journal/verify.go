package journal

import (
	"fmt"

	"github.com/javanhut/contentsync/internal/storage"
)

// Damage describes a block whose files no longer match the journal.
type Damage struct {
	Block    string
	Missing  []string
	Modified []string
}

// Report summarizes a Verify run.
type Report struct {
	Checked   int
	Damaged   []Damage
	Untracked []string // installed blocks with no journal record
	Stale     []string // journal records with no installed block
}

// Healthy reports whether nothing needed repair.
func (r Report) Healthy() bool {
	return len(r.Damaged) == 0 && len(r.Untracked) == 0 && len(r.Stale) == 0
}

// Verify re-hashes every journaled file. A damaged block has its descriptor
// and record removed so the next check downloads it again; stale records
// are dropped. Untracked blocks are only reported.
func Verify(db *DB, store storage.Store, blocks *storage.Blocks) (Report, error) {
	var report Report
	records, err := db.Records()
	if err != nil {
		return report, err
	}

	journaled := make(map[string]bool, len(records))
	for _, r := range records {
		journaled[r.ID] = true
		lb, ok := blocks.ReadLocalBlock(r.ID)
		if !ok || lb.Hash != r.Hash {
			report.Stale = append(report.Stale, r.ID)
			if err := db.DeleteRecord(r.ID); err != nil {
				return report, fmt.Errorf("drop stale record %s: %w", r.ID, err)
			}
			continue
		}

		report.Checked++
		d := Damage{Block: r.ID}
		for _, p := range r.SortedFiles() {
			data := store.ReadFile(p)
			switch {
			case data == nil && !store.FileExists(p):
				d.Missing = append(d.Missing, p)
			case Digest(data) != r.Files[p]:
				d.Modified = append(d.Modified, p)
			}
		}
		if len(d.Missing) == 0 && len(d.Modified) == 0 {
			continue
		}

		report.Damaged = append(report.Damaged, d)
		db.log.Warn("damaged block", "block", r.ID, "missing", len(d.Missing), "modified", len(d.Modified))
		if !blocks.DeleteLocalBlock(r.ID) {
			db.log.Warn("failed to delete block descriptor", "block", r.ID)
		}
		if err := db.DeleteRecord(r.ID); err != nil {
			return report, fmt.Errorf("drop damaged record %s: %w", r.ID, err)
		}
	}

	for _, lb := range blocks.ReadLocalBlocks() {
		if !journaled[lb.ID] {
			report.Untracked = append(report.Untracked, lb.ID)
		}
	}
	return report, nil
}
