// SPDX-License-Identifier: MIT
package plugin

import (
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	applog "opentune/internal/log"
	"opentune/internal/graph"
)

// scanDepth bounds the plugin directory walk; bundles nest one or two
// levels, anything deeper is not a plugin.
const scanDepth = 3

// First ID handed out to nodes; low IDs are reserved for the editing layer.
const firstNodeID = 1000

// Builder constructs an internal processor instance.
type Builder func() Processor

// Manager catalogs loadable processors: a registry of internal builders and
// the external plugins discovered on disk. Safe for concurrent use from
// non-real-time contexts.
type Manager struct {
	mu         sync.Mutex
	registry   map[string]Builder
	discovered map[string]Descriptor
	nextID     graph.NodeID
}

func NewManager() *Manager {
	m := &Manager{
		registry:   make(map[string]Builder),
		discovered: make(map[string]Descriptor),
		nextID:     firstNodeID,
	}
	registerBuiltins(m)
	return m
}

// Register adds an internal processor under name, replacing any previous
// registration.
func (m *Manager) Register(name string, b Builder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = b
}

// NextID allocates a fresh node ID. IDs are monotonic and never reused
// within a session.
func (m *Manager) NextID() graph.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id
}

// ReserveID marks ids up to and including id as used, so nodes loaded from
// a project keep their saved identities.
func (m *Manager) ReserveID(id graph.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= m.nextID {
		m.nextID = id + 1
	}
}

// ScanStandardPaths walks the platform's conventional plugin directories
// and catalogs everything with a known plugin extension.
func (m *Manager) ScanStandardPaths() {
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{
			`C:\Program Files\Common Files\VST3`,
			`C:\Program Files\Common Files\CLAP`,
		}
	case "darwin":
		paths = []string{
			"/Library/Audio/Plug-Ins/VST3",
			"/Library/Audio/Plug-Ins/CLAP",
		}
	default:
		paths = []string{"/usr/lib/vst3", "/usr/lib/clap", "/usr/lib/lv2"}
	}
	for _, p := range paths {
		m.Scan(p)
	}
}

// Scan catalogs plugins under dir. Unreadable entries are skipped; a missing
// directory is not an error.
func (m *Manager) Scan(dir string) {
	root := filepath.Clean(dir)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fs.SkipDir
		}
		if d.IsDir() && strings.Count(path[len(root):], string(filepath.Separator)) > scanDepth {
			return fs.SkipDir
		}
		format, ok := formatForExt(filepath.Ext(path))
		if !ok {
			return nil
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		m.mu.Lock()
		m.discovered[name] = Descriptor{Name: name, Path: path, Format: format}
		m.mu.Unlock()
		applog.Debugf("plugin: discovered %s (%s) at %s", name, format, path)
		if d.IsDir() {
			// Bundles (.vst3 directories) are one plugin, do not descend.
			return fs.SkipDir
		}
		return nil
	})
}

// Discovered returns the external catalog sorted by name.
func (m *Manager) Discovered() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Descriptor, 0, len(m.discovered))
	for _, d := range m.discovered {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Registered returns the internal processor names sorted.
func (m *Manager) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.registry))
	for name := range m.registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Load builds the named processor, configures it for the engine format and
// wraps it in an Adapter node with the given ID. Discovered external
// plugins report a LoadError until a loader exists for their format.
func (m *Manager) Load(name string, id graph.NodeID, sampleRate float64, blockSize int) (*Adapter, error) {
	m.mu.Lock()
	builder, internal := m.registry[name]
	desc, external := m.discovered[name]
	m.mu.Unlock()

	switch {
	case internal:
		proc := builder()
		if err := proc.Configure(sampleRate, blockSize); err != nil {
			return nil, &LoadError{Name: name, Format: FormatInternal, Reason: err.Error()}
		}
		return newAdapter(id, proc, sampleRate, blockSize), nil
	case external:
		return nil, &LoadError{
			Name:   name,
			Format: desc.Format,
			Reason: "no loader for this plugin format",
		}
	default:
		return nil, &LoadError{Name: name, Format: FormatInternal, Reason: "unknown plugin"}
	}
}

func formatForExt(ext string) (Format, bool) {
	switch ext {
	case ".vst3":
		return FormatVST3, true
	case ".clap":
		return FormatCLAP, true
	case ".lv2":
		return FormatLV2, true
	default:
		return 0, false
	}
}
