// Package store loads and persists archive documents. YAML is the
// canonical format; the legacy line-oriented object format is read-only.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
)

// Document extensions. CanonicalExt is what new state is written as.
const (
	CanonicalExt = ".yml"
	AltYAMLExt   = ".yaml"
	LegacyExt    = ".object"
)

// Store reads archive documents from one configuration directory.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// New constructs a store over a configuration directory.
func New(dir string, logger zerolog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the configuration directory.
func (s *Store) Dir() string { return s.dir }

// Entry is one discovered document.
type Entry struct {
	Path   string
	Name   string
	Legacy bool
}

// Discover enumerates documents in discovery order (lexical by name).
// An archive present in both formats is a configuration error and is
// returned as neither; the caller records it as load-skipped.
func (s *Store) Discover() ([]Entry, []string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read config dir: %w", err)
	}

	byName := map[string][]Entry{}
	order := []string{}
	for _, dirent := range dirents {
		if dirent.IsDir() {
			continue
		}
		ext := filepath.Ext(dirent.Name())
		if ext != CanonicalExt && ext != AltYAMLExt && ext != LegacyExt {
			continue
		}
		name := strings.TrimSuffix(dirent.Name(), ext)
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = append(byName[name], Entry{
			Path:   filepath.Join(s.dir, dirent.Name()),
			Name:   name,
			Legacy: ext == LegacyExt,
		})
	}
	sort.Strings(order)

	entries := make([]Entry, 0, len(order))
	conflicts := []string{}
	for _, name := range order {
		group := byName[name]
		if hasConflict(group) {
			s.logger.Warn().Str("archive", name).Msg("both legacy and YAML documents present; skipping")
			conflicts = append(conflicts, name)
			continue
		}
		// Two YAML spellings of the same archive: prefer the canonical one.
		entries = append(entries, preferCanonical(group))
	}
	return entries, conflicts, nil
}

func hasConflict(group []Entry) bool {
	legacy, yml := false, false
	for _, e := range group {
		if e.Legacy {
			legacy = true
		} else {
			yml = true
		}
	}
	return legacy && yml
}

func preferCanonical(group []Entry) Entry {
	for _, e := range group {
		if filepath.Ext(e.Path) == CanonicalExt {
			return e
		}
	}
	return group[0]
}

// Load parses one document into a validated record.
func (s *Store) Load(entry Entry) (*archive.Record, error) {
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}

	var rec *archive.Record
	if entry.Legacy {
		rec, err = parseObject(data)
	} else {
		rec = &archive.Record{}
		err = yaml.Unmarshal(data, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", entry.Path, err)
	}

	if rec.Meta.Name == "" {
		rec.Meta.Name = entry.Name
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", entry.Path, err)
	}
	return rec, nil
}

// CanonicalPath is where a record's YAML document lives.
func (s *Store) CanonicalPath(rec *archive.Record) string {
	return filepath.Join(s.dir, rec.Meta.Name+CanonicalExt)
}

// ErrorDocPath is the sibling document written instead of the
// canonical one when a run fails.
func ErrorDocPath(rec *archive.Record) string {
	return filepath.Join(rec.Storage.LogDir, rec.Meta.Name+".error"+CanonicalExt)
}

// SaveCanonical overwrites the canonical document after a fully
// successful run.
func (s *Store) SaveCanonical(rec *archive.Record) error {
	return writeDocument(s.CanonicalPath(rec), rec)
}

// SaveError diverts the mutated record to the error document, leaving
// the canonical one untouched.
func (s *Store) SaveError(rec *archive.Record) error {
	return writeDocument(ErrorDocPath(rec), rec)
}

// writeDocument persists atomically: temp file, fsync, rename, fsync
// of the directory.
func writeDocument(path string, rec *archive.Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Meta.Name, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".archive-*"+CanonicalExt)
	if err != nil {
		return err
	}
	cleanup := func() {
		_ = os.Remove(tempFile.Name())
	}

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		cleanup()
		return err
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		cleanup()
		return err
	}

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		_ = dirHandle.Close()
	}
	return nil
}
