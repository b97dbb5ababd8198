// Command compliance-navigator is the CLI entry point: it wires
// configuration, logging, the registry mirror, and the handler layer
// together and dispatches a single operation per invocation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/complynav/compliance-navigator/internal/handlers"
	"github.com/complynav/compliance-navigator/internal/registry"
	"github.com/complynav/compliance-navigator/internal/tickets"
	"github.com/complynav/compliance-navigator/pkg/config"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output,
		ServiceName: "compliance-navigator-cli",
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	reg, err := registry.Open(cfg.Registry, logger)
	if err != nil {
		log.Fatalf("failed to open registry mirror: %v", err)
	}
	defer reg.Close()

	h := handlers.New(cfg, logger, reg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Tracer.Shutdown(shutdownCtx); err != nil {
			logger.WithComponent("cli").WithError(err).Warn("failed to flush tracing spans on shutdown")
		}
	}()
	dedupeCache := tickets.NewDedupeCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger, h.Tracer)
	args := parseFlags(os.Args[2:])
	ctx := context.Background()

	switch os.Args[1] {
	case "scan":
		runScan(ctx, h, args)
	case "plan":
		runPlanRemediation(ctx, h, args)
	case "packet":
		runGenerateAuditPacket(ctx, h, args)
	case "tickets":
		runCreateTickets(ctx, h, dedupeCache, args)
	case "approve":
		runApproveTicketPlan(ctx, h, args)
	case "verify":
		runVerifyAuditChain(ctx, h, args)
	case "export":
		runExportAuditPacket(ctx, h, args)
	case "demo-fixture":
		runCreateDemoFixture(ctx, h, args)
	case "dashboard":
		runOpenDashboard(ctx, h, args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Compliance Navigator CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  compliance-navigator <command> [--flag=value ...]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scan          --repo=PATH --framework=soc2|hipaa [--max-minutes=N]")
	fmt.Println("  plan          --repo=PATH [--run=RUNID]")
	fmt.Println("  packet        --repo=PATH [--run=RUNID] [--output-dir=PATH]")
	fmt.Println("  tickets       --repo=PATH --target=github|jira [--run=RUNID] [--target-repo=X] [--dry-run] [--approved-plan=ID]")
	fmt.Println("  approve       --repo=PATH --plan=ID --approved-by=NAME [--reason=TEXT]")
	fmt.Println("  verify        [--log=PATH]")
	fmt.Println("  export        --repo=PATH [--run=RUNID] [--include-evidence]")
	fmt.Println("  demo-fixture  --dest=PATH")
	fmt.Println("  dashboard     --repo=PATH [--run=RUNID]")
	fmt.Println("  help")
}

func parseFlags(args []string) map[string]string {
	out := map[string]string{}
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		trimmed := strings.TrimPrefix(arg, "--")
		if eq := strings.IndexByte(trimmed, '='); eq >= 0 {
			out[trimmed[:eq]] = trimmed[eq+1:]
		} else {
			out[trimmed] = "true"
		}
	}
	return out
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	fmt.Println(string(data))
}

func requireFlag(args map[string]string, name string) string {
	v, ok := args[name]
	if !ok || v == "" {
		fmt.Fprintf(os.Stderr, "missing required flag --%s\n", name)
		os.Exit(1)
	}
	return v
}

func runScan(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	maxMinutes := 0
	if v := args["max-minutes"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid --max-minutes: %v", err)
		}
		maxMinutes = n
	}
	result, err := h.ScanRepo(ctx, handlers.ScanRepoInput{
		RepoPath:   requireFlag(args, "repo"),
		Framework:  types.Framework(requireFlag(args, "framework")),
		MaxMinutes: maxMinutes,
	})
	if err != nil {
		log.Fatalf("scan_repo failed: %v", err)
	}
	printJSON(result)
}

func runPlanRemediation(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	maxItems := 0
	if v := args["max-items"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid --max-items: %v", err)
		}
		maxItems = n
	}
	out, err := h.PlanRemediation(ctx, handlers.PlanRemediationInput{
		RepoPath: requireFlag(args, "repo"),
		RunID:    args["run"],
		MaxItems: maxItems,
	})
	if err != nil {
		log.Fatalf("plan_remediation failed: %v", err)
	}
	printJSON(out)
}

func runGenerateAuditPacket(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	out, err := h.GenerateAuditPacket(ctx, handlers.GenerateAuditPacketInput{
		RepoPath:  requireFlag(args, "repo"),
		RunID:     args["run"],
		OutputDir: args["output-dir"],
	})
	if err != nil {
		log.Fatalf("generate_audit_packet failed: %v", err)
	}
	printJSON(out)
}

func runCreateTickets(ctx context.Context, h *handlers.Handlers, cache *tickets.DedupeCache, args map[string]string) {
	maxItems := 0
	if v := args["max-items"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid --max-items: %v", err)
		}
		maxItems = n
	}
	labelPolicy := tickets.LabelPolicyRequireExisting
	if args["create-missing-labels"] == "true" {
		labelPolicy = tickets.LabelPolicyCreateIfMissing
	}
	out, err := h.CreateTickets(ctx, handlers.CreateTicketsInput{
		RepoPath:       requireFlag(args, "repo"),
		RunID:          args["run"],
		Target:         types.TicketTargetKind(requireFlag(args, "target")),
		TargetRepo:     args["target-repo"],
		DryRun:         args["dry-run"] == "true",
		ApprovedPlanID: args["approved-plan"],
		ReopenClosed:   args["reopen-closed"] == "true",
		LabelPolicy:    labelPolicy,
		MaxItems:       maxItems,
		Cache:          cache,
	})
	if err != nil {
		log.Fatalf("create_tickets failed: %v", err)
	}
	printJSON(out)
}

func runApproveTicketPlan(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	out, err := h.ApproveTicketPlan(ctx, handlers.ApproveTicketPlanInput{
		RepoPath:   requireFlag(args, "repo"),
		PlanID:     requireFlag(args, "plan"),
		ApprovedBy: requireFlag(args, "approved-by"),
		Reason:     args["reason"],
	})
	if err != nil {
		log.Fatalf("approve_ticket_plan failed: %v", err)
	}
	printJSON(out)
}

func runVerifyAuditChain(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	out, err := h.VerifyAuditChain(ctx, handlers.VerifyAuditChainInput{LogPath: args["log"]})
	if err != nil {
		log.Fatalf("verify_audit_chain failed: %v", err)
	}
	printJSON(out)
	if !out.Valid {
		os.Exit(1)
	}
}

func runExportAuditPacket(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	out, err := h.ExportAuditPacket(ctx, handlers.ExportAuditPacketInput{
		RepoPath:        requireFlag(args, "repo"),
		RunID:           args["run"],
		IncludeEvidence: args["include-evidence"] == "true",
	})
	if err != nil {
		log.Fatalf("export_audit_packet failed: %v", err)
	}
	printJSON(out)
}

func runCreateDemoFixture(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	out, err := h.CreateDemoFixture(ctx, handlers.CreateDemoFixtureInput{DestPath: requireFlag(args, "dest")})
	if err != nil {
		log.Fatalf("create_demo_fixture failed: %v", err)
	}
	printJSON(out)
}

func runOpenDashboard(ctx context.Context, h *handlers.Handlers, args map[string]string) {
	out, err := h.OpenDashboard(ctx, handlers.OpenDashboardInput{
		RepoPath: requireFlag(args, "repo"),
		RunID:    args["run"],
	})
	if err != nil {
		log.Fatalf("open_dashboard failed: %v", err)
	}
	printJSON(out)
}
