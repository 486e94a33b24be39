// Package skill generates, validates, and inspects skill packages that
// wrap MCP servers. A skill directory holds SKILL.md, skill.json (the
// MCP server config), a runner script, and the supervisor's durable
// state files.
package skill

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/mcpskill/mcpskill/internal/config"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// File names inside a generated skill directory.
const (
	DocFileName    = "SKILL.md"
	ConfigFileName = "skill.json"
	RunnerFileName = "run.sh"
)

// Options control skill generation.
type Options struct {
	// OutputDir is the parent directory for the skill. Defaults to
	// ~/.claude/skills when empty.
	OutputDir string
	Verbose   bool
}

// Info describes a generated skill.
type Info struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Transport string   `json:"transport"`
	Files     []string `json:"files"`
}

// DefaultOutputDir is where skills are installed unless overridden.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "skills")
	}
	return filepath.Join(home, ".claude", "skills")
}

// Generate renders the skill directory for cfg. An existing skill with
// the same name is overwritten file by file; supervisor state files are
// left untouched so a live worker survives regeneration.
func Generate(cfg *config.MCPConfig, opts Options) (*Info, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = DefaultOutputDir()
	}
	dir := filepath.Join(outDir, cfg.Name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("skill: create %s: %w", dir, err)
	}

	doc, err := renderDoc(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, DocFileName), doc, 0o600); err != nil {
		return nil, fmt.Errorf("skill: write %s: %w", DocFileName, err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), raw, 0o600); err != nil {
		return nil, fmt.Errorf("skill: write %s: %w", ConfigFileName, err)
	}

	runner, err := renderRunner(cfg)
	if err != nil {
		return nil, err
	}
	// #nosec G302 -- the runner must be executable
	if err := os.WriteFile(filepath.Join(dir, RunnerFileName), runner, 0o700); err != nil {
		return nil, fmt.Errorf("skill: write %s: %w", RunnerFileName, err)
	}

	return &Info{
		Name:      cfg.Name,
		Path:      dir,
		Transport: cfg.Transport,
		Files:     []string{DocFileName, ConfigFileName, RunnerFileName},
	}, nil
}

// LoadConfig reads the skill.json of an existing skill directory.
func LoadConfig(dir string) (*config.MCPConfig, error) {
	return config.Load(filepath.Join(dir, ConfigFileName))
}

type docData struct {
	Name             string
	Command          string
	Args             []string
	Transport        string
	KeepAliveEnabled bool
	IdleTimeout      string
	CheckInterval    string
}

func renderDoc(cfg *config.MCPConfig) ([]byte, error) {
	sup := cfg.KeepAlive.SupervisorConfig()
	data := docData{
		Name:             cfg.Name,
		Command:          cfg.Command,
		Args:             cfg.Args,
		Transport:        cfg.Transport,
		KeepAliveEnabled: sup.Enabled,
		IdleTimeout:      sup.IdleTimeout.String(),
		CheckInterval:    sup.CheckInterval.String(),
	}
	return render("templates/SKILL.md.tmpl", data)
}

func renderRunner(cfg *config.MCPConfig) ([]byte, error) {
	return render("templates/run.sh.tmpl", struct{ Name string }{Name: cfg.Name})
}

func render(name string, data any) ([]byte, error) {
	t, err := template.ParseFS(templateFS, name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("skill: render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
