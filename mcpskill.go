package mcpskill

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/mcpskill/mcpskill/internal/config"
	"github.com/mcpskill/mcpskill/internal/history"
	"github.com/mcpskill/mcpskill/internal/history/factory"
	"github.com/mcpskill/mcpskill/internal/metrics"
	"github.com/mcpskill/mcpskill/internal/skill"
	"github.com/mcpskill/mcpskill/internal/supervisor"
	"github.com/mcpskill/mcpskill/internal/worker"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type MCPConfig = cfg.MCPConfig

type KeepAlive = cfg.KeepAlive

type WorkerSpec = worker.Spec

type WorkerHandle = worker.Handle

type Supervisor = supervisor.Supervisor

type SupervisorConfig = supervisor.Config

type SupervisorOption = supervisor.Option

type SkillInfo = skill.Info

type SkillOptions = skill.Options

type SkillReport = skill.Report

type SkillStatus = skill.Status

type HistorySink = history.Sink

// LoadConfig reads and validates an MCP server config from a JSON file.
func LoadConfig(path string) (*MCPConfig, error) { return cfg.Load(path) }

// NewSupervisor constructs a supervisor for one worker. The caller owns
// it; there is no package-level instance.
func NewSupervisor(spec WorkerSpec, c SupervisorConfig, opts ...SupervisorOption) *Supervisor {
	return supervisor.New(spec, c, opts...)
}

// WithSupervisorLogger routes monitor diagnostics through l.
func WithSupervisorLogger(l *slog.Logger) SupervisorOption { return supervisor.WithLogger(l) }

// WithHistorySinks wires lifecycle event sinks into a supervisor.
func WithHistorySinks(sinks ...HistorySink) SupervisorOption {
	return supervisor.WithHistorySinks(sinks...)
}

// GenerateSkill renders a skill directory for the given MCP config.
func GenerateSkill(c *MCPConfig, opts SkillOptions) (*SkillInfo, error) {
	return skill.Generate(c, opts)
}

// ValidateSkill checks a skill directory for required files and a usable config.
func ValidateSkill(dir string) (*SkillReport, error) { return skill.Validate(dir) }

// GetSkillStatus reports worker liveness and invocation stats for a skill.
func GetSkillStatus(dir string) (*SkillStatus, error) { return skill.GetStatus(dir) }

// ResetSkillStats zeroes a skill's invocation counters.
func ResetSkillStats(dir string) error { return skill.ResetStats(dir) }

// NewHistorySink builds a lifecycle event sink from a DSN (sqlite or postgres).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
