// Package installed provides a JSON-backed record of installed programs. It
// is the data behind the predefined installed source.
package installed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
)

// FormatVersion is the current version of the database format.
const FormatVersion = "1"

// Scope is where a program is installed.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeMachine Scope = "machine"
)

// Program is one installed program.
type Program struct {
	// ID is the package identifier the program was installed as, or a
	// synthetic identifier for programs that no source knows.
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Publisher          string    `json:"publisher,omitempty"`
	Version            string    `json:"version"`
	Channel            string    `json:"channel,omitempty"`
	Moniker            string    `json:"moniker,omitempty"`
	SourceIdentifier   string    `json:"source_identifier,omitempty"`
	Scope              Scope     `json:"scope,omitempty"`
	Location           string    `json:"location,omitempty"`
	InstalledAt        time.Time `json:"installed_at"`
	ProductCodes       []string  `json:"product_codes,omitempty"`
	PackageFamilyNames []string  `json:"package_family_names,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	Commands           []string  `json:"commands,omitempty"`
}

// Manager defines the operations on the installed programs database.
type Manager interface {
	Load(path string) error
	Save(path string) error
	Find(id string) *Program
	Add(p *Program)
	Remove(id string) bool
	Programs() []*Program
	Filtered(nameFilter string) []*Program
}

// Database is the in-memory installed programs database.
type Database struct {
	FormatVersion string     `json:"format_version"`
	LastUpdate    time.Time  `json:"last_update"`
	Entries       []*Program `json:"programs"`

	mu sync.RWMutex
}

var _ Manager = (*Database)(nil)

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		FormatVersion: FormatVersion,
		LastUpdate:    time.Now(),
	}
}

// LoadDatabase reads the database at path. A missing file yields an empty database.
func LoadDatabase(path string) (*Database, error) {
	db := NewDatabase()
	if err := db.Load(path); err != nil {
		return nil, err
	}
	return db, nil
}

// Load replaces the contents with the database at path. A missing file
// leaves the database unchanged.
func (db *Database) Load(path string) error {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("database path must be absolute: %s: %w", path, errors.ErrInvalidPath)
	}

	data, err := os.ReadFile(cleanPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}

	var decoded struct {
		FormatVersion string     `json:"format_version"`
		LastUpdate    time.Time  `json:"last_update"`
		Entries       []*Program `json:"programs"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to parse database %s: %w", cleanPath, err)
	}
	if decoded.FormatVersion != "" && decoded.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported installed database format %q", decoded.FormatVersion)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.LastUpdate = decoded.LastUpdate
	db.Entries = decoded.Entries
	return nil
}

// Save writes the database to path atomically.
func (db *Database) Save(path string) error {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("database path must be absolute: %s: %w", path, errors.ErrInvalidPath)
	}

	db.mu.RLock()
	data, err := json.MarshalIndent(db, "", "  ")
	db.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal database to JSON: %w", err)
	}
	return fsutil.WriteFileAtomic(cleanPath, data, fsutil.FileModeDefault)
}

// Find returns the program with the given id, compared case-insensitively.
func (db *Database) Find(id string) *Program {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, p := range db.Entries {
		if strings.EqualFold(p.ID, id) {
			return p
		}
	}
	return nil
}

// Add inserts p or replaces the program with the same id.
func (db *Database) Add(p *Program) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.InstalledAt.IsZero() {
		p.InstalledAt = time.Now()
	}
	db.LastUpdate = time.Now()
	for i, existing := range db.Entries {
		if strings.EqualFold(existing.ID, p.ID) {
			db.Entries[i] = p
			return
		}
	}
	db.Entries = append(db.Entries, p)
}

// Remove deletes the program with the given id.
func (db *Database) Remove(id string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, p := range db.Entries {
		if strings.EqualFold(p.ID, id) {
			db.Entries = append(db.Entries[:i], db.Entries[i+1:]...)
			db.LastUpdate = time.Now()
			return true
		}
	}
	return false
}

// Programs returns a copy of the program list.
func (db *Database) Programs() []*Program {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]*Program, len(db.Entries))
	copy(out, db.Entries)
	return out
}

// Filtered returns programs whose name contains nameFilter, case-insensitively.
func (db *Database) Filtered(nameFilter string) []*Program {
	if nameFilter == "" {
		return db.Programs()
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*Program
	for _, p := range db.Entries {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(nameFilter)) {
			out = append(out, p)
		}
	}
	return out
}
