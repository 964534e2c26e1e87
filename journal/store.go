package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pthm-cable/slug/telemetry"
)

// ErrNoRun is returned when writing before BeginRun.
var ErrNoRun = errors.New("journal: no active run")

const defaultBatchSize = 500

// Store buffers possession events and writes them in batches.
type Store struct {
	db        *gorm.DB
	runID     string
	pending   []Entry
	batchSize int
}

// Open opens (or creates) a journal at path. An empty path opens an in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting journal connection: %w", err)
	}
	// SQLite has a single writer, and each in-memory connection is its own database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return nil, fmt.Errorf("setting journal_mode PRAGMA: %w", err)
	}

	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &Store{db: db, batchSize: defaultBatchSize}, nil
}

// SetBatchSize sets how many events are buffered before a write.
func (s *Store) SetBatchSize(n int) {
	if n < 1 {
		n = 1
	}
	s.batchSize = n
}

// BeginRun starts a new run. Events appended afterwards belong to it.
func (s *Store) BeginRun(id string, seed int64, configYAML string) error {
	run := Run{ID: id, Seed: seed, Config: configYAML, StartedAt: time.Now()}
	if err := s.db.Create(&run).Error; err != nil {
		return fmt.Errorf("creating run %s: %w", id, err)
	}
	s.runID = id
	slog.Debug("journal run started", "run", id, "seed", seed)
	return nil
}

// RunID returns the active run id.
func (s *Store) RunID() string {
	return s.runID
}

// Append buffers one event, flushing when the batch is full.
func (s *Store) Append(ev telemetry.Event) error {
	if s.runID == "" {
		return ErrNoRun
	}
	s.pending = append(s.pending, Entry{
		RunID:     s.runID,
		Tick:      ev.Tick,
		Type:      ev.Type.String(),
		SlugID:    ev.SlugID,
		HostID:    ev.HostID,
		Archetype: ev.Archetype,
		Phase:     ev.Phase,
		Detail:    ev.Detail,
		Success:   ev.Success,
		Amount:    ev.Amount,
	})
	if len(s.pending) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush writes buffered events.
func (s *Store) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.db.CreateInBatches(s.pending, s.batchSize).Error; err != nil {
		return fmt.Errorf("writing %d journal entries: %w", len(s.pending), err)
	}
	s.pending = s.pending[:0]
	return nil
}

// EndRun flushes and stamps the run with its final tick.
func (s *Store) EndRun(ticks int32) error {
	if s.runID == "" {
		return ErrNoRun
	}
	if err := s.Flush(); err != nil {
		return err
	}
	now := time.Now()
	err := s.db.Model(&Run{}).Where("id = ?", s.runID).
		Updates(map[string]interface{}{"ticks": ticks, "ended_at": now}).Error
	if err != nil {
		return fmt.Errorf("ending run %s: %w", s.runID, err)
	}
	return nil
}

// Close flushes and closes the underlying connection.
func (s *Store) Close() error {
	flushErr := s.Flush()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return flushErr
}
