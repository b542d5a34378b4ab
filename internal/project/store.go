// SPDX-License-Identifier: MIT
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	applog "opentune/internal/log"
)

const (
	fileExt   = ".yaml"
	backupExt = ".yaml.bak"
)

// Store keeps project documents as <id>.yaml files under one directory.
// Saves go through a temp file plus rename, and the previous version is
// kept as a .bak next to the file.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Create returns a fresh, empty project with a new identity. Nothing is
// written until Save.
func (s *Store) Create(name string) *Project {
	now := time.Now().UTC()
	return &Project{
		Metadata: Metadata{
			ID:            uuid.NewString(),
			Name:          name,
			Created:       now,
			Modified:      now,
			BitDepth:      24,
			TimeSignature: "4/4",
		},
	}
}

// SaveAs stores a copy of the document under a new identity and name. The
// receiver is left untouched; the copy is returned.
func (s *Store) SaveAs(p *Project, name string) (*Project, error) {
	dup := *p
	now := time.Now().UTC()
	dup.Metadata.ID = uuid.NewString()
	dup.Metadata.Name = name
	dup.Metadata.Created = now
	if err := s.Save(&dup); err != nil {
		return nil, err
	}
	return &dup, nil
}

func (s *Store) path(id string) string { return filepath.Join(s.dir, id+fileExt) }

// Save writes the document, backing up the previous version first.
func (s *Store) Save(p *Project) error {
	if p.Metadata.ID == "" {
		return fmt.Errorf("project has no ID")
	}
	p.Metadata.Modified = time.Now().UTC()

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	path := s.path(p.Metadata.ID)
	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", prev, 0o644); err != nil {
			applog.Warnf("Could not write project backup: %v", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace project file: %w", err)
	}

	applog.Infof("Saved project %q (%s)", p.Metadata.Name, p.Metadata.ID)
	return nil
}

// Open loads a project by ID.
func (s *Store) Open(id string) (*Project, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to open project %s: %w", id, err)
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", id, err)
	}
	return &p, nil
}

// List returns the metadata of every stored project, newest modified first.
// Unreadable files are skipped with a warning rather than failing the list.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Metadata
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasSuffix(name, backupExt) {
			continue
		}
		p, err := s.Open(strings.TrimSuffix(name, fileExt))
		if err != nil {
			applog.Warnf("Skipping unreadable project file %s: %v", name, err)
			continue
		}
		out = append(out, p.Metadata)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

// Delete removes a project and its backup.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	os.Remove(s.path(id) + ".bak")
	return nil
}
