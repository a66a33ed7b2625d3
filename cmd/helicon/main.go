// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

// Command helicon runs the agent runtime from the command line: list
// the capability graph, check remote server health, execute a single
// action through the full executor pipeline, and query the audit trail.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/helicon-ai/helicon/pkg/audit"
	"github.com/helicon-ai/helicon/pkg/capability"
	"github.com/helicon-ai/helicon/pkg/config"
	"github.com/helicon-ai/helicon/pkg/executor"
	"github.com/helicon-ai/helicon/pkg/governance"
	"github.com/helicon-ai/helicon/pkg/orchestrator"
	"github.com/helicon-ai/helicon/pkg/remote"
	"github.com/helicon-ai/helicon/pkg/resilience"
	"github.com/helicon-ai/helicon/pkg/session"
	"github.com/helicon-ai/helicon/pkg/skills"
	"github.com/helicon-ai/helicon/pkg/telemetry"
	"github.com/helicon-ai/helicon/pkg/tools"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	Tenant     string
	Agent      string
	JSON       bool
	Verbose    bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if global.Verbose {
		telemetry.SetLogLevel("debug")
	}

	switch args[0] {
	case "capabilities":
		runCapabilities(ctx, global, cfg)
	case "servers":
		runServers(ctx, global, cfg)
	case "run":
		runAction(ctx, global, cfg, args[1:])
	case "audit":
		runAudit(ctx, global, cfg, args[1:])
	case "version":
		fmt.Printf("helicon %s\n", version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	global := globalFlags{Tenant: "default", Agent: "helicon"}
	fs := flag.NewFlagSet("helicon", flag.ContinueOnError)
	fs.StringVar(&global.ConfigPath, "config", "", "path to helicon.yaml")
	fs.StringVar(&global.Tenant, "tenant", global.Tenant, "tenant id stamped on audit events")
	fs.StringVar(&global.Agent, "agent", global.Agent, "agent id stamped on audit events")
	fs.BoolVar(&global.JSON, "json", false, "emit JSON output")
	fs.BoolVar(&global.Verbose, "verbose", false, "debug logging regardless of configured level")
	fs.BoolVar(&global.Help, "help", false, "show usage")
	if err := fs.Parse(args); err != nil {
		return global, nil, err
	}
	return global, fs.Args(), nil
}

// runtime bundles the wired components of one CLI invocation.
type runtime struct {
	sc       *session.Context
	graph    *capability.Graph
	skills   *skills.Registry
	tools    *tools.Registry
	remote   *remote.Client
	auditLog *audit.Logger
	shutdown func(context.Context)
}

func buildRuntime(ctx context.Context, global globalFlags, cfg *config.Config) (*runtime, error) {
	telemetryShutdown, err := telemetry.InitWithConfig("helicon", version, cfg.TelemetrySettings())
	if err != nil {
		return nil, err
	}

	store, err := openAuditStore(cfg)
	if err != nil {
		return nil, err
	}
	auditLog := audit.NewLogger(store,
		audit.WithFlushInterval(cfg.AuditFlushInterval()),
		audit.WithBatchSize(cfg.Audit.BatchSize),
		audit.WithRetentionLimit(cfg.Audit.RetentionLimit),
	)
	auditLog.Start()

	skillReg := skills.NewRegistry()
	if cfg.Skills.Dir != "" {
		specs, err := skills.LoadDir(cfg.Skills.Dir)
		if err != nil {
			return nil, fmt.Errorf("loading skills: %w", err)
		}
		for _, spec := range specs {
			body := spec.Body
			err := skillReg.Register(spec, func(ctx context.Context, args map[string]any) (any, error) {
				return body, nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	toolReg := tools.NewRegistry()
	_ = toolReg.Register(tools.Clock())
	_ = toolReg.Register(tools.Echo())

	remoteClient := remote.NewClient(remote.WithRetry(resilience.DefaultRetryConfig()))
	for _, server := range cfg.ServerConfigs() {
		if err := remoteClient.Register(server); err != nil {
			return nil, err
		}
	}
	// Connect failures are per-server: the rest of the graph stays usable.
	if err := remoteClient.ConnectAll(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	sc, err := session.New(global.Tenant, "", global.Agent, uuid.NewString(),
		session.WithPolicy(cfg.RuntimePolicy()),
		session.WithSkills(skillReg.Descriptors()),
		session.WithTools(toolReg.Descriptors()),
		session.WithServers(remoteClient.Descriptors(ctx)),
	)
	if err != nil {
		return nil, err
	}

	graph := capability.NewGraph()
	graph.Build(sc)

	return &runtime{
		sc:       sc,
		graph:    graph,
		skills:   skillReg,
		tools:    toolReg,
		remote:   remoteClient,
		auditLog: auditLog,
		shutdown: func(ctx context.Context) {
			if err := auditLog.Stop(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "warning: audit flush: %v\n", err)
			}
			_ = remoteClient.Close()
			_ = telemetryShutdown(ctx)
		},
	}, nil
}

func openAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case "", "memory":
		return audit.NewMemoryStore(), nil
	case "file":
		if cfg.Audit.Path == "" {
			return nil, fmt.Errorf("audit.path is required for the file backend")
		}
		return audit.NewFileStore(cfg.Audit.Path)
	case "sqlite":
		if cfg.Audit.Path == "" {
			return nil, fmt.Errorf("audit.path is required for the sqlite backend")
		}
		db, err := sql.Open("sqlite", cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		return audit.NewSQLiteStore(db)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}

func runCapabilities(ctx context.Context, global globalFlags, cfg *config.Config) {
	rt, err := buildRuntime(ctx, global, cfg)
	if err != nil {
		fatal(err)
	}
	defer rt.shutdown(ctx)

	if global.JSON {
		printJSON(rt.graph.SchemasForPlanner())
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSOURCE\tDESCRIPTION")
	for _, c := range rt.graph.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Kind, c.Source, c.Description)
	}
	_ = w.Flush()
}

func runServers(ctx context.Context, global globalFlags, cfg *config.Config) {
	rt, err := buildRuntime(ctx, global, cfg)
	if err != nil {
		fatal(err)
	}
	defer rt.shutdown(ctx)

	descs := rt.remote.Descriptors(ctx)
	if global.JSON {
		printJSON(descs)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tTOOLS")
	for _, d := range descs {
		names := make([]string, 0, len(d.Tools))
		for _, tool := range d.Tools {
			names = append(names, tool.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.State, strings.Join(names, ","))
	}
	_ = w.Flush()
}

// runAction executes one named action through the full pipeline:
// graph validation, approval gate, dispatch, audit trail.
func runAction(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	action := fs.String("action", "", "capability name to execute")
	paramsJSON := fs.String("params", "{}", "action parameters as JSON")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if *action == "" {
		fatal(fmt.Errorf("--action is required"))
	}

	var params map[string]any
	if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
		fatal(fmt.Errorf("invalid --params: %w", err))
	}

	rt, err := buildRuntime(ctx, global, cfg)
	if err != nil {
		fatal(err)
	}
	defer rt.shutdown(ctx)

	exec := executor.New(
		executor.WithSkills(rt.skills),
		executor.WithTools(rt.tools),
		executor.WithRemote(rt.remote),
		executor.WithAuditLogger(rt.auditLog),
		executor.WithApprovalHook(governance.NewConsoleApprovalHook()),
	)

	planner := &orchestrator.ScriptedPlanner{Script: []orchestrator.PlanResult{
		{Steps: []executor.PlanStep{{ID: uuid.NewString(), Target: *action, Params: params}}},
		{Done: true, Response: "action executed"},
	}}
	o := orchestrator.New(planner, exec,
		orchestrator.WithServerRefresh(rt.remote.Descriptors),
	)

	turn, err := o.Run(ctx, rt.sc, "run "+*action)
	if err != nil {
		fatal(err)
	}

	if len(turn.Observations) == 0 {
		fatal(fmt.Errorf("no action was executed"))
	}
	result := turn.Observations[0].Result
	if global.JSON {
		printJSON(result)
	} else if result.Success {
		fmt.Printf("ok (%s, %s)\n", result.Metadata.Kind, result.Duration.Round(time.Millisecond))
		printJSON(result.Output)
	} else {
		fmt.Printf("failed [%s]: %s\n", result.Code, result.Error)
	}
	if !result.Success {
		rt.shutdown(ctx)
		os.Exit(1)
	}
}

func runAudit(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	actionID := fs.String("action-id", "", "filter by action id")
	eventType := fs.String("type", "", "filter by event type")
	limit := fs.Int("limit", 50, "maximum events to return")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	store, err := openAuditStore(cfg)
	if err != nil {
		fatal(err)
	}

	events, err := store.Query(ctx, audit.Filter{
		TenantID: global.Tenant,
		ActionID: *actionID,
		Type:     audit.EventType(*eventType),
		Limit:    *limit,
	})
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(events)
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tTYPE\tACTION\tSUCCESS\tERROR")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			ev.Timestamp.Format(time.RFC3339), ev.Type, ev.ActionName, ev.Success, ev.Error)
	}
	_ = w.Flush()
}

func printJSON(value any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		fatal(err)
	}
}

func printUsage() {
	fmt.Print(`helicon - agent runtime execution core

Usage:
  helicon [flags] <command>

Commands:
  capabilities  list the capability graph for the current session
  servers       show remote capability servers and their states
  run           execute one action (--action name --params '{...}')
  audit         query the audit trail (--action-id, --type, --limit)
  version       print the version
  help          show this help

Flags:
  --config path   configuration file (default: built-in defaults + env)
  --tenant id     tenant id for the session (default "default")
  --agent id      agent id for the session (default "helicon")
  --json          JSON output
  --verbose       debug logging regardless of configured level
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "helicon: %v\n", err)
	os.Exit(1)
}
