// Package journal persists possession events to SQLite for post-run queries.
package journal

import "time"

// Models lists every table the journal migrates.
var Models = []interface{}{
	&Run{},
	&Entry{},
}

// Run is one simulation run.
type Run struct {
	ID        string `gorm:"primaryKey;size:64"`
	Seed      int64
	Config    string `gorm:"type:text"` // YAML snapshot of the effective configuration
	Ticks     int32
	StartedAt time.Time
	EndedAt   *time.Time
}

func (*Run) TableName() string {
	return "runs"
}

// Entry is one possession event.
type Entry struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"size:64;index:idx_entry_run_slug,priority:1;index:idx_entry_run_type,priority:1"`
	Tick      int32  `gorm:"index"`
	Type      string `gorm:"size:32;index:idx_entry_run_type,priority:2"`
	SlugID    uint32 `gorm:"index:idx_entry_run_slug,priority:2"`
	HostID    uint32
	Archetype string `gorm:"size:64"`
	Phase     string `gorm:"size:16"`
	Detail    string `gorm:"size:32"`
	Success   bool
	Amount    float64
}

func (*Entry) TableName() string {
	return "possession_entries"
}
