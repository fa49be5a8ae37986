package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/svc-virt/predicate-engine/internal/models"
	"github.com/svc-virt/predicate-engine/internal/predicate"
)

// Case is one predicate evaluation to run: a predicate document, the
// request to evaluate it against, the wire encoding, and (for `run`)
// the expected boolean outcome used to decide pass/fail.
type Case struct {
	Name      string               `json:"name"`
	Predicate *predicate.Predicate `json:"predicate"`
	Request   *models.Request      `json:"request"`
	Encoding  string               `json:"encoding,omitempty"`
	Expect    *bool                `json:"expect,omitempty"`
}

// CaseFile is the top-level shape of a file passed to `predicateeval
// run --case`: either a single case or a batch of named cases.
type CaseFile struct {
	Cases []Case `json:"cases"`
}

// LoadOptions contains options for loading a case file.
type LoadOptions struct {
	CaseFile string
}

// Loader reads case files from disk.
type Loader struct {
	options LoadOptions
}

// NewLoader creates a new case file loader.
func NewLoader(options LoadOptions) *Loader {
	return &Loader{options: options}
}

// Load reads and parses a case file. A file containing a single case
// object (no "cases" wrapper) is accepted as a one-element CaseFile.
func (l *Loader) Load() (*CaseFile, error) {
	if l.options.CaseFile == "" {
		return nil, fmt.Errorf("no case file specified")
	}

	content, err := os.ReadFile(l.options.CaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	var cf CaseFile
	if err := json.Unmarshal(content, &cf); err != nil || len(cf.Cases) == 0 {
		var single Case
		if err := json.Unmarshal(content, &single); err != nil {
			return nil, fmt.Errorf("failed to parse case file JSON: %w", err)
		}
		cf = CaseFile{Cases: []Case{single}}
	}

	for i, c := range cf.Cases {
		if c.Predicate == nil {
			return nil, fmt.Errorf("case %d (%q): 'predicate' is required", i, c.Name)
		}
		if c.Request == nil {
			cf.Cases[i].Request = &models.Request{}
		}
		if c.Encoding == "" {
			cf.Cases[i].Encoding = "utf8"
		}
	}

	return &cf, nil
}

// LoadFile is a convenience function to load a case file.
func LoadFile(filename string) (*CaseFile, error) {
	loader := NewLoader(LoadOptions{CaseFile: filename})
	return loader.Load()
}
