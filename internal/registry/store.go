package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/netdash/netdash-core/internal/netscan"
)

// Logger defines the logging interface used by the Store.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the durable MAC->Record mapping.
//
// The entire mapping lives in one JSON file that is rewritten atomically
// on every mutation: the new content is written to a temp file in the
// same directory, fsynced, then renamed over the old file. A crash mid-
// write therefore never leaves a partial store on disk.
//
// All public methods are thread-safe; the mutex also serialises writers
// so concurrent mutations cannot interleave at file granularity.
type Store struct {
	path    string
	mu      sync.Mutex
	records map[string]Record
	logger  Logger
}

// Open loads the store from path, creating parent directories as needed.
//
// An unreadable or corrupt file is treated as an empty store: the problem
// is logged and the hub keeps running. Metadata availability wins over
// strict durability here.
func Open(path string) *Store {
	s := &Store{
		path:    path,
		records: make(map[string]Record),
		logger:  noopLogger{},
	}
	s.load()
	return s
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// load reads the store file into memory. Never fatal.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("registry store unreadable, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("registry store corrupt, starting empty", "path", s.path, "error", err)
		return
	}

	// Hand-edited files may carry uppercase MACs.
	for mac, rec := range records {
		s.records[NormalizeMAC(mac)] = rec
	}
}

// Get returns the record for a MAC address. Matching is case-insensitive.
func (s *Store) Get(mac string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[NormalizeMAC(mac)]
	return rec, ok
}

// GetAll returns a copy of the full MAC->Record mapping.
func (s *Store) GetAll() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Record, len(s.records))
	for mac, rec := range s.records {
		out[mac] = rec
	}
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// SetAttributes merges the given partial attributes into the record for
// mac, creating the record if absent, and persists the whole store
// atomically before returning. The call is synchronous: when it returns
// nil the new state is durable.
func (s *Store) SetAttributes(mac string, attrs Attributes) (Record, error) {
	key := NormalizeMAC(mac)
	if key == "" {
		return Record{}, ErrInvalidMAC
	}
	if attrs.Status != nil && !attrs.Status.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *attrs.Status)
	}
	if attrs.Sensitivity != nil && !attrs.Sensitivity.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidSensitivity, *attrs.Sensitivity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[key]
	if attrs.Category != nil {
		rec.Category = *attrs.Category
	}
	if attrs.Sensitivity != nil {
		rec.Sensitivity = *attrs.Sensitivity
	}
	if attrs.Status != nil {
		rec.Status = *attrs.Status
	}
	s.records[key] = rec

	if err := s.persistLocked(); err != nil {
		s.logger.Error("registry persist failed", "path", s.path, "error", err)
		return rec, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	return rec, nil
}

// persistLocked rewrites the store file atomically. Caller holds s.mu.
//
// Discipline: write temp file in the same directory, fsync it, then
// rename over the target. Keys are sorted and output indented so the file
// diffs cleanly under version control.
func (s *Store) persistLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	// json.MarshalIndent emits map keys in sorted order.
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".devices-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // No-op after successful rename.

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}

// Enrich left-joins live clients with stored records by MAC. A client
// without a record, or with a record lacking a status, reports Online.
func (s *Store) Enrich(live []netscan.Client) []Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Client, 0, len(live))
	for _, lc := range live {
		mac := NormalizeMAC(lc.MAC)
		rec := s.records[mac] // zero Record when absent
		out = append(out, Client{
			MAC:         mac,
			IP:          lc.IP,
			Hostname:    lc.Hostname,
			Signal:      lc.Signal,
			Category:    rec.Category,
			Sensitivity: rec.Sensitivity,
			Status:      rec.EffectiveStatus(),
		})
	}
	return out
}
