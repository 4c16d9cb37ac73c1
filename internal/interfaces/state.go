package interfaces

import "time"

// StateManager records completed runs in a local journal
type StateManager interface {
	Initialize(dbPath string) error
	RecordRun(run RunRecord) error
	RecordTemplates(entries []TemplateRecord, timestamp time.Time) error
	History(limit int) ([]RunRecord, error)
	GetTemplateRecords() (map[string]TemplateRecord, error)
	Close() error
}

// RunRecord is one entry of the run history
type RunRecord struct {
	ID        int64
	Operation string
	Timestamp time.Time
	Status    string
	Details   string
}

// TemplateRecord is the last synced state of one template key
type TemplateRecord struct {
	Key        string
	RemoteID   string
	Digest     string
	LastSynced time.Time
}
