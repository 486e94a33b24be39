package worker

import (
	"github.com/mcpskill/mcpskill/internal/logger"
)

// Spec describes the MCP worker process to be spawned for a skill.
type Spec struct {
	Name     string            `json:"name"`
	Command  string            `json:"command"`
	Args     []string          `json:"args"`
	Env      map[string]string `json:"env"`
	SkillDir string            `json:"skill_dir"`
	Log      logger.Config     `json:"log"`
}
