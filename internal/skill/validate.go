package skill

import (
	"fmt"
	"os"
	"path/filepath"
)

// Report is the outcome of validating a skill directory.
type Report struct {
	Valid  bool     `json:"valid"`
	Path   string   `json:"path"`
	Files  []string `json:"files"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks that a skill directory has the required files and a
// parseable, usable config. It returns an error only for I/O problems
// reaching the directory itself; content problems land in the report.
func Validate(dir string) (*Report, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("skill: stat %s: %w", dir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("skill: %s is not a directory", dir)
	}

	rep := &Report{Path: dir}
	for _, name := range []string{DocFileName, ConfigFileName, RunnerFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("missing %s", name))
			continue
		}
		rep.Files = append(rep.Files, name)
	}

	if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
		if _, cerr := LoadConfig(dir); cerr != nil {
			rep.Errors = append(rep.Errors, cerr.Error())
		}
	}

	rep.Valid = len(rep.Errors) == 0
	return rep, nil
}
