package entity

import "time"

// RunOutcome accumulates the per-file results of one acquisition run.
// It is created empty at run start and discarded once reported.
type RunOutcome struct {
	RunID           string    `yaml:"run_id"`
	StartedAt       time.Time `yaml:"started_at"`
	FinishedAt      time.Time `yaml:"finished_at"`
	ArchivesFound   int       `yaml:"archives_found"`
	Interrupted     bool      `yaml:"interrupted"`
	Imported        []string  `yaml:"imported"`
	AlreadyImported []string  `yaml:"already_imported"`
	ImportFailed    []string  `yaml:"import_failed"`
	FailedArchives  []string  `yaml:"failed_archives"`
}

func NewRunOutcome(runID string, startedAt time.Time) *RunOutcome {
	return &RunOutcome{
		RunID:     runID,
		StartedAt: startedAt,
	}
}

func (o *RunOutcome) AddImported(fileName string) {
	o.Imported = append(o.Imported, fileName)
}

func (o *RunOutcome) AddAlreadyImported(fileName string) {
	o.AlreadyImported = append(o.AlreadyImported, fileName)
}

func (o *RunOutcome) AddImportFailed(fileName string) {
	o.ImportFailed = append(o.ImportFailed, fileName)
}

func (o *RunOutcome) AddFailedArchive(archiveName string) {
	o.FailedArchives = append(o.FailedArchives, archiveName)
}

func (o *RunOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}

	return o.FinishedAt.Sub(o.StartedAt)
}
