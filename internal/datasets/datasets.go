// Package datasets holds the stable records describing how to acquire and
// register a MIMIC-style dataset: where its raw files live, which
// subdirectories to scan, and which backends can serve it.
package datasets

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	m3errors "github.com/m3-mcp/m3/internal/errors"
)

// Definition is one dataset's acquisition and verification contract.
type Definition struct {
	Name                     string   `json:"name" yaml:"name"`
	Description              string   `json:"description,omitempty" yaml:"description,omitempty"`
	FileListingURL           string   `json:"file_listing_url,omitempty" yaml:"file_listing_url,omitempty"`
	SubdirectoriesToScan     []string `json:"subdirectories_to_scan,omitempty" yaml:"subdirectories_to_scan,omitempty"`
	DefaultFilename          string   `json:"default_filename,omitempty" yaml:"default_filename,omitempty"`
	PrimaryVerificationTable string   `json:"primary_verification_table,omitempty" yaml:"primary_verification_table,omitempty"`
	CloudProject             string   `json:"cloud_project,omitempty" yaml:"cloud_project,omitempty"`
	CloudDatasetIDs          []string `json:"cloud_dataset_ids,omitempty" yaml:"cloud_dataset_ids,omitempty"`
	RequiresAuthentication   bool     `json:"requires_authentication,omitempty" yaml:"requires_authentication,omitempty"`
	Tags                     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func (d *Definition) applyDefaults() {
	if d.DefaultFilename == "" {
		d.DefaultFilename = strings.ReplaceAll(d.Name, "-", "_") + ".duckdb"
	}
}

// Registry is a name-keyed collection of dataset definitions. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns a Registry pre-populated with the two built-in MIMIC-IV
// dataset definitions.
func NewRegistry() *Registry {
	r := &Registry{defs: map[string]Definition{}}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	demo := Definition{
		Name:                     "mimic-iv-demo",
		Description:              "MIMIC-IV Clinical Database Demo",
		FileListingURL:           "https://physionet.org/files/mimic-iv-demo/2.2/",
		SubdirectoriesToScan:     []string{"hosp", "icu"},
		PrimaryVerificationTable: "hosp_admissions",
		CloudProject:             "physionet-data",
		CloudDatasetIDs:          []string{"mimiciv_3_1_hosp", "mimiciv_3_1_icu"},
		RequiresAuthentication:   false,
		Tags:                     []string{"mimic", "clinical", "demo"},
	}
	demo.applyDefaults()

	full := Definition{
		Name:                     "mimic-iv-full",
		Description:              "MIMIC-IV Clinical Database (Full)",
		FileListingURL:           "", // requires credentialed manual fetch
		SubdirectoriesToScan:     []string{"hosp", "icu"},
		PrimaryVerificationTable: "hosp_admissions",
		CloudProject:             "physionet-data",
		CloudDatasetIDs:          []string{"mimiciv_3_1_hosp", "mimiciv_3_1_icu"},
		RequiresAuthentication:   true,
		Tags:                     []string{"mimic", "clinical", "full"},
	}
	full.applyDefaults()

	r.defs[demo.Name] = demo
	r.defs[full.Name] = full
}

// Register adds or replaces a dataset definition.
func (r *Registry) Register(d Definition) {
	d.applyDefaults()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[strings.ToLower(d.Name)] = d
}

// Get returns the definition for name, or an error naming the unknown
// dataset if absent.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[strings.ToLower(name)]
	if !ok {
		return Definition{}, m3errors.Validation("unknown dataset: %s", name)
	}
	return d, nil
}

// List returns all registered definitions, built-in and custom.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// LoadDirectory scans dir for *.json, *.yaml and *.yml files, each holding
// one Definition, and registers them. A directory that does not exist is not
// an error — it means no custom datasets were supplied. The directory is
// the caller's argument; no environment variable is consulted here.
func (r *Registry) LoadDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return m3errors.Wrap(m3errors.KindConfig, "failed to read datasets directory "+dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		isYAML := strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
		isJSON := strings.HasSuffix(name, ".json")
		if !isYAML && !isJSON {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return m3errors.Wrap(m3errors.KindConfig, "failed to read dataset definition "+path, err)
		}

		var d Definition
		if isYAML {
			if err := yaml.Unmarshal(data, &d); err != nil {
				return m3errors.Wrap(m3errors.KindConfig, "failed to parse dataset definition "+path, err)
			}
		} else if err := json.Unmarshal(data, &d); err != nil {
			return m3errors.Wrap(m3errors.KindConfig, "failed to parse dataset definition "+path, err)
		}
		if d.Name == "" {
			return m3errors.Config("dataset definition %s is missing a name", path)
		}
		r.Register(d)
	}
	return nil
}
