// Package manifest discovers planner plugins on disk. A plugin is a directory
// containing a plugin.yaml metadata file and a Go entry source that the
// sandbox interprets. Discovery only reads metadata here; importing the entry
// is the sandbox's job.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"overmind/internal/logging"
)

// ManifestFileName is the metadata file that marks a directory as a plugin.
const ManifestFileName = "plugin.yaml"

// DefaultEntry is the entry source used when the manifest declares none.
const DefaultEntry = "planner.go"

// Manifest is the metadata a plugin declares about itself.
type Manifest struct {
	Name            string   `yaml:"name"`
	Capabilities    []string `yaml:"capabilities"`
	Tier            string   `yaml:"tier"`
	ProductionReady bool     `yaml:"production_ready"`
	// Reliability optionally seeds the planner's reliability score.
	// Nil means the factory default applies.
	Reliability *float64 `yaml:"reliability"`
	Entry       string   `yaml:"entry"`

	// Resolved at scan time, not part of the YAML document.
	Dir       string `yaml:"-"`
	EntryPath string `yaml:"-"`
}

// Validate checks required fields and fills defaults.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest in %s: name is required", m.Dir)
	}
	if m.Tier == "" {
		m.Tier = "experimental"
	}
	if m.Entry == "" {
		m.Entry = DefaultEntry
	}
	if m.Reliability != nil && (*m.Reliability < 0 || *m.Reliability > 1) {
		return fmt.Errorf("manifest %s: reliability %v outside [0,1]", m.Name, *m.Reliability)
	}
	return nil
}

// Load reads and validates a single plugin.yaml.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	m.Dir = filepath.Dir(path)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.EntryPath = filepath.Join(m.Dir, m.Entry)

	return &m, nil
}

// Scan walks the given search paths and returns every valid plugin manifest,
// sorted by name for deterministic downstream ordering. A directory with a
// malformed manifest is skipped and logged; one bad plugin never aborts the
// scan.
func Scan(searchPaths []string) []*Manifest {
	log := logging.Get(logging.CategoryFactory)
	var manifests []*Manifest
	seen := make(map[string]string) // name -> dir, for duplicate detection

	for _, root := range searchPaths {
		entries, err := os.ReadDir(root)
		if err != nil {
			log.Warn("scan: cannot read search path %s: %v", root, err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			manifestPath := filepath.Join(root, entry.Name(), ManifestFileName)
			if _, err := os.Stat(manifestPath); err != nil {
				continue // Not a plugin directory
			}

			m, err := Load(manifestPath)
			if err != nil {
				log.Warn("scan: skipping %s: %v", manifestPath, err)
				continue
			}

			if prev, dup := seen[m.Name]; dup {
				log.Warn("scan: duplicate planner %q in %s (keeping %s)", m.Name, m.Dir, prev)
				continue
			}
			seen[m.Name] = m.Dir
			manifests = append(manifests, m)
		}
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Name < manifests[j].Name
	})

	return manifests
}

// Fingerprint hashes the entry source for change detection. Returns an empty
// string if the source cannot be read.
func (m *Manifest) Fingerprint() string {
	data, err := os.ReadFile(m.EntryPath)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
