// Package handlers implements the request-handler layer (C11): the one
// public entry point for every operation a caller can invoke. Each handler
// parses and validates its arguments, brackets the call with tool_start/
// tool_end audit entries, delegates to the relevant component, and returns
// a typed result or a typed error. No handler terminates the process on a
// domain error.
package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"go.uber.org/zap"

	"github.com/complynav/compliance-navigator/internal/auditchain"
	"github.com/complynav/compliance-navigator/internal/notifications"
	"github.com/complynav/compliance-navigator/internal/registry"
	"github.com/complynav/compliance-navigator/pkg/config"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/tracing"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// identifierPattern is the shared runId/planId validation rule: printable
// path-safe characters only, 1-64 of them, at least one alphanumeric so an
// all-punctuation string can never pass.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)
var hasAlphanumeric = regexp.MustCompile(`[A-Za-z0-9]`)

// ValidateIdentifier enforces spec section 4.11's runId/planId regex.
func ValidateIdentifier(kind, id string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%s %q must match %s", kind, id, identifierPattern.String())
	}
	if !hasAlphanumeric.MatchString(id) {
		return fmt.Errorf("%s %q must contain at least one alphanumeric character", kind, id)
	}
	return nil
}

// Handlers wires every C1-C10 component together behind the nine public
// operations. It is the only layer that knows about all of them at once.
type Handlers struct {
	Config        *config.Config
	Logger        *logging.Logger
	Chain         *auditchain.Chain
	Registry      *registry.Registry       // best-effort mirror; nil is a valid, inert value
	Notifications *notifications.Notifier // best-effort packet-ready fanout
	Tracer        *tracing.TracingService // no-op unless cfg.Tracing.Enabled()
}

// New builds a Handlers value. cfg and logger must be non-nil; the audit
// chain is opened at cfg.Scanner.AuditLogPath. reg may be nil.
func New(cfg *config.Config, logger *logging.Logger, reg *registry.Registry) *Handlers {
	zapLogger, _ := zap.NewProduction()
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	tracer, err := tracing.NewTracingService(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: manifestVersion,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SamplingRate:   1.0,
		Enabled:        cfg.Tracing.Enabled(),
	})
	if err != nil {
		logger.WithComponent("handlers").WithError(err).Warn("failed to start tracing service, continuing without it")
		tracer, _ = tracing.NewTracingService(&tracing.Config{Enabled: false})
	}
	return &Handlers{
		Config:        cfg,
		Logger:        logger,
		Chain:         auditchain.New(cfg.Scanner.AuditLogPath),
		Registry:      reg,
		Notifications: notifications.New(cfg.Notify, zapLogger),
		Tracer:        tracer,
	}
}

// newRunID builds a lexicographically-sortable run identifier: a fixed-
// width UTC timestamp (so creation order matches string order, per section
// 4.11) followed by a short random suffix to break same-instant ties.
func newRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405.000000000"), uuid.NewString()[:8])
}

func newPlanID() string {
	return uuid.NewString()
}

// resolveRunID returns requested unchanged when non-empty, validating it;
// otherwise it resolves "the latest" by listing runs/ under the repo's
// compliance root and picking the lexicographically greatest entry.
func resolveRunID(repoPath, requested string) (string, error) {
	if requested != "" {
		if err := ValidateIdentifier("runId", requested); err != nil {
			return "", err
		}
		return requested, nil
	}

	runsDir := filepath.Join(repoPath, ".compliance", "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return "", fmt.Errorf("no runs found under %s: %w", runsDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no runs found under %s", runsDir)
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

// runDir returns the run's directory under the repo's compliance root.
func runDir(repoPath, runID string) string {
	return filepath.Join(repoPath, ".compliance", "runs", runID)
}

func scanResultPath(repoPath, runID string) string {
	return filepath.Join(runDir(repoPath, runID), "scan_result.json")
}

func indexMDPath(repoPath, runID string) string {
	return filepath.Join(runDir(repoPath, runID), "audit_packet", "index.md")
}

// toolStart appends a tool_start entry stamped with the current time and
// returns any error from the append.
func (h *Handlers) toolStart(tool string, args interface{}) error {
	_, err := h.Chain.Append(auditchain.Now(), string(types.AuditKindToolStart), tool, args)
	return err
}

func (h *Handlers) toolEnd(tool string, summary interface{}) error {
	_, err := h.Chain.Append(auditchain.Now(), string(types.AuditKindToolEnd), tool, summary)
	return err
}

func (h *Handlers) toolError(tool string, cause error) {
	_, appendErr := h.Chain.Append(auditchain.Now(), string(types.AuditKindToolError), tool, map[string]string{"error": cause.Error()})
	if appendErr != nil {
		h.Logger.WithComponent("handlers").WithError(appendErr).Warn("failed to append tool_error audit entry")
	}
}
