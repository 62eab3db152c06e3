package export

import (
	"fmt"

	"github.com/level10nurd/documentExtraction/internal/dedup"
	"github.com/level10nurd/documentExtraction/internal/models"
)

// PriorInvoice is a record whose invoice was already persisted by an earlier run
type PriorInvoice struct {
	SourceFile    string
	Vendor        models.Vendor
	InvoiceNumber string
	Check         models.UniquenessCheckResult
}

// Dataset is everything exporters read from one run.
// Group indices refer to Records, which are the run's successes in path order.
type Dataset struct {
	Result      *models.BatchResult
	Records     []*models.Record
	Groups      []models.DuplicateGroup
	Resolutions []dedup.Resolution
	Prior       []PriorInvoice

	dropped   map[int]bool
	dupeFiles map[int][]string
}

// Row is one exported invoice
type Row struct {
	ID             string
	Index          int
	Record         *models.Record
	DuplicateFiles []string
	Duplicate      bool
}

// NewDataset binds a batch result to its duplicate analysis
func NewDataset(result *models.BatchResult, records []*models.Record, groups []models.DuplicateGroup, resolutions []dedup.Resolution) *Dataset {
	return &Dataset{
		Result:      result,
		Records:     records,
		Groups:      groups,
		Resolutions: resolutions,
		dropped:     dedup.DroppedIndices(resolutions),
		dupeFiles:   dedup.DuplicateFiles(records, resolutions),
	}
}

// DroppedCount is the number of records resolved away as duplicates
func (d *Dataset) DroppedCount() int {
	return len(d.dropped)
}

// Rows lists the records to export in path order and numbers them INV_00001, INV_00002, ...
// Dropped duplicates are omitted unless includeDuplicates is set.
func (d *Dataset) Rows(includeDuplicates bool) []Row {
	rows := make([]Row, 0, len(d.Records))
	for i, r := range d.Records {
		if d.dropped[i] && !includeDuplicates {
			continue
		}
		rows = append(rows, Row{
			ID:             fmt.Sprintf("INV_%05d", len(rows)+1),
			Index:          i,
			Record:         r,
			DuplicateFiles: d.dupeFiles[i],
			Duplicate:      d.dropped[i],
		})
	}
	return rows
}

// GroupFiles returns the source files of a group's members
func (d *Dataset) GroupFiles(g models.DuplicateGroup) []string {
	files := make([]string, 0, len(g.Indices))
	for _, i := range g.Indices {
		if i >= 0 && i < len(d.Records) {
			files = append(files, d.Records[i].SourceFile)
		}
	}
	return files
}
