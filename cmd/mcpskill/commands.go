package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcpskill/mcpskill"
	"github.com/mcpskill/mcpskill/internal/mcptest"
	"github.com/mcpskill/mcpskill/internal/skill"
)

func buildRoot() *cobra.Command {
	convertFlags := &ConvertFlags{}
	testFlags := &TestFlags{}
	runFlags := &RunFlags{}

	root := &cobra.Command{
		Use:           "mcpskill",
		Short:         "Convert MCP servers to Claude Skills",
		Long:          "mcpskill converts MCP server configs into skill packages whose worker process is kept alive across invocations and cleaned up after an idle timeout.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		createConvertCommand(convertFlags),
		createValidateCommand(),
		createTestCommand(testFlags),
		createStatusCommand(),
		createResetStatsCommand(),
		createRunCommand(runFlags),
	)
	return root
}

func createConvertCommand(f *ConvertFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <config.json>",
		Short: "Convert an MCP config to a skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := mcpskill.LoadConfig(args[0])
			if err != nil {
				return err
			}
			info, err := mcpskill.GenerateSkill(cfg, mcpskill.SkillOptions{OutputDir: f.OutputDir, Verbose: f.Verbose})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Skill generated: %s\n", info.Path)
			fmt.Printf("✓ Transport: %s\n", info.Transport)
			fmt.Printf("✓ Files: %s\n", strings.Join(info.Files, ", "))
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.OutputDir, "output", "o", "", "output directory (default ~/.claude/skills)")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "verbose output")
	return cmd
}

func createValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <skill-dir>",
		Short: "Validate a skill directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rep, err := mcpskill.ValidateSkill(args[0])
			if err != nil {
				return err
			}
			if !rep.Valid {
				fmt.Println("✗ Skill validation failed")
				for _, e := range rep.Errors {
					fmt.Printf("  - %s\n", e)
				}
				os.Exit(1)
			}
			fmt.Println("✓ Skill is valid")
			fmt.Printf("✓ Files: %s\n", strings.Join(rep.Files, ", "))
			return nil
		},
	}
}

func createTestCommand(f *TestFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <skill-dir>",
		Short: "Exercise a skill's MCP worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runTest(args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.Mode, "mode", "list", "test mode: list, describe, or call")
	cmd.Flags().StringVar(&f.Tool, "tool", "", "tool name (for describe/call)")
	cmd.Flags().StringVar(&f.Args, "args", "", "tool arguments as JSON (for call)")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", defaultTestTimeout, "per-request timeout")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "verbose output")
	return cmd
}

func createStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <skill-dir>",
		Short: "Show worker liveness and invocation stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := mcpskill.GetSkillStatus(args[0])
			if err != nil {
				return err
			}
			printJSON(st)
			return nil
		},
	}
}

func createResetStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stats <skill-dir>",
		Short: "Reset a skill's invocation statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := mcpskill.ResetSkillStats(args[0]); err != nil {
				return err
			}
			fmt.Println("✓ Statistics reset successfully")
			return nil
		},
	}
}

func createRunCommand(f *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <skill-dir>",
		Short: "Supervise a skill's worker in the foreground",
		Long:  "run starts the keep-alive supervisor for a skill and blocks until SIGINT/SIGTERM. The worker is spawned on demand, terminated after the configured idle timeout, and cleaned up on shutdown.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSupervise(args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9301)")
	cmd.Flags().StringVar(&f.HistoryDSN, "history-dsn", "", "record worker lifecycle events to this DSN (sqlite or postgres)")
	return cmd
}

func runSupervise(dir string, f *RunFlags) error {
	cfg, err := skill.LoadConfig(dir)
	if err != nil {
		return err
	}

	opts := []mcpskill.SupervisorOption{mcpskill.WithSupervisorLogger(slog.Default())}
	if f.HistoryDSN != "" {
		sink, err := mcpskill.NewHistorySink(f.HistoryDSN)
		if err != nil {
			return fmt.Errorf("history sink: %w", err)
		}
		opts = append(opts, mcpskill.WithHistorySinks(sink))
	}
	if f.MetricsAddr != "" {
		if err := mcpskill.RegisterMetricsDefault(); err != nil {
			return err
		}
		go func() {
			if err := mcpskill.ServeMetrics(f.MetricsAddr); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sup := mcpskill.NewSupervisor(cfg.WorkerSpec(dir), cfg.KeepAlive.SupervisorConfig(), opts...)
	if err := sup.Start(); err != nil {
		return err
	}
	defer sup.Stop()

	slog.Info("supervising skill", "skill", cfg.Name, "dir", dir)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())
	return nil
}

func runTest(dir string, f *TestFlags) error {
	cfg, err := skill.LoadConfig(dir)
	if err != nil {
		return err
	}

	sup := mcpskill.NewSupervisor(cfg.WorkerSpec(dir), cfg.KeepAlive.SupervisorConfig(),
		mcpskill.WithSupervisorLogger(slog.Default()))
	h, err := sup.GetOrCreate()
	if err != nil {
		return err
	}
	if h == nil {
		// The durable PID belongs to a worker spawned by another process;
		// its stdio is not reachable from this invocation.
		return fmt.Errorf("worker is running but owned by another process; stop it or wait for the idle timeout")
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.Timeout)
	defer cancel()

	client := mcptest.New(h.Stdin(), h.Stdout())
	if err := client.Initialize(ctx); err != nil {
		skill.RecordInvocation(dir, true)
		return err
	}

	failed := false
	switch f.Mode {
	case "list":
		tools, err := client.ListTools(ctx)
		if err != nil {
			failed = true
			skill.RecordInvocation(dir, failed)
			return err
		}
		fmt.Printf("✓ Test passed (%d tools)\n", len(tools))
		for _, t := range tools {
			fmt.Printf("  - %s: %s\n", t.Name, t.Description)
		}
	case "describe":
		if f.Tool == "" {
			return fmt.Errorf("--tool is required for describe")
		}
		tools, err := client.ListTools(ctx)
		if err != nil {
			failed = true
			skill.RecordInvocation(dir, failed)
			return err
		}
		for _, t := range tools {
			if t.Name == f.Tool {
				printJSON(t)
				sup.UpdateHeartbeat()
				skill.RecordInvocation(dir, false)
				return nil
			}
		}
		failed = true
		skill.RecordInvocation(dir, failed)
		return fmt.Errorf("tool %q not found", f.Tool)
	case "call":
		if f.Tool == "" {
			return fmt.Errorf("--tool is required for call")
		}
		var toolArgs map[string]any
		if f.Args != "" {
			if err := json.Unmarshal([]byte(f.Args), &toolArgs); err != nil {
				return fmt.Errorf("parse --args: %w", err)
			}
		}
		res, err := client.CallTool(ctx, f.Tool, toolArgs)
		if err != nil {
			failed = true
			skill.RecordInvocation(dir, failed)
			return err
		}
		fmt.Println("✓ Test passed")
		if f.Verbose {
			printRaw(res)
		}
	default:
		return fmt.Errorf("unknown mode %q (supported: list, describe, call)", f.Mode)
	}

	// Using the worker proves activity; the heartbeat keeps the idle
	// monitor of a long-running instance from reaping it mid-session.
	sup.UpdateHeartbeat()
	skill.RecordInvocation(dir, failed)
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(b))
}

func printRaw(raw json.RawMessage) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	printJSON(v)
}
