package scanners

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/complynav/compliance-navigator/internal/policy"
	"github.com/complynav/compliance-navigator/pkg/logging"
	"github.com/complynav/compliance-navigator/pkg/resilience"
	"github.com/complynav/compliance-navigator/pkg/tracing"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// killGracePeriod is how long a timed-out scanner has to exit after SIGTERM
// before it is killed.
const killGracePeriod = 5 * time.Second

// Runner executes the closed set of scanner kinds concurrently, one OS
// process per kind, exactly as the control-flow in spec section 2 requires:
// C11 invokes C4 three times in parallel and each result feeds a C5.
type Runner struct {
	logger       *logging.Logger
	probeRetrier *resilience.Retrier
	tracer       *tracing.TracingService
}

// NewRunner builds a Runner. The probe retrier is used only for the
// best-effort --version probe after the main scan invocation; the main
// scan invocation itself is never retried, since a fixed execution is
// evidence. tracer may be nil-free but no-op (tracing.TracingService with
// Enabled: false); every caller of this package goes through
// handlers.New, which always constructs one.
func NewRunner(logger *logging.Logger, tracer *tracing.TracingService) *Runner {
	return &Runner{
		logger: logger,
		probeRetrier: resilience.NewRetrier(resilience.RetryConfig{
			MaxAttempts:       2,
			InitialDelay:      200 * time.Millisecond,
			BackoffMultiplier: 2.0,
		}),
		tracer: tracer,
	}
}

// Outcome bundles one scanner's contribution to a run.
type Outcome struct {
	Status   types.ScannerStatus
	Findings []types.Finding
	Run      types.ScannerRun
}

// RunAll invokes every registered scanner kind concurrently against
// repoPath, writing evidence under evidenceDir, each bounded by timeout.
func (r *Runner) RunAll(ctx context.Context, repoPath, evidenceDir string, timeout time.Duration) []Outcome {
	defs := Registry()
	outcomes := make([]Outcome, len(defs))

	var wg sync.WaitGroup
	for i, def := range defs {
		wg.Add(1)
		go func(i int, def ScannerKindInfo) {
			defer wg.Done()
			outcomes[i] = r.runOne(ctx, def, repoPath, evidenceDir, timeout)
		}(i, def)
	}
	wg.Wait()

	return outcomes
}

func (r *Runner) runOne(ctx context.Context, def ScannerKindInfo, repoPath, evidenceDir string, timeout time.Duration) Outcome {
	kind := string(def.Kind)

	ctx, span := r.tracer.StartScannerSpan(ctx, kind, "invoke")
	defer span.End()

	if skip, reason := def.Precondition(repoPath); skip {
		r.logger.LogScanEvent(ctx, "scanner_skipped", "", repoPath, kind, nil)
		return Outcome{Status: types.ScannerStatus{
			Scanner: def.Kind,
			Status:  types.RunStatusSkipped,
			Message: reason,
		}}
	}

	program := def.Program()
	resolvedPath, lookErr := LookPath(program)
	if lookErr != nil {
		return r.missingOutcome(def, program, "binary not found on PATH")
	}

	args := def.BuildArgs(repoPath, evidenceDir)
	if err := policy.AssertArgsSafe(args); err != nil {
		return r.errorOutcome(def, types.ScannerRun{Scanner: def.Kind, Command: policy.CommandLine(program, args...)}, "rejected by command policy: "+err.Error())
	}
	cmdLine := policy.CommandLine(program, args...)
	if err := policy.AssertAllowed(cmdLine); err != nil {
		return r.errorOutcome(def, types.ScannerRun{Scanner: def.Kind, Command: cmdLine}, "rejected by command allowlist: "+err.Error())
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	cmd := exec.CommandContext(runCtx, resolvedPath, args...)
	cmd.Dir = repoPath
	// On timeout the scanner first gets SIGTERM; if it is still alive after
	// killGracePeriod it is killed outright.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGracePeriod

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	finished := time.Now()

	stdoutPath := filepath.Join(evidenceDir, evidenceBaseName(def.Kind)+".json")
	stderrPath := filepath.Join(evidenceDir, evidenceBaseName(def.Kind)+"-stderr.txt")
	_ = os.WriteFile(stderrPath, stderr.Bytes(), 0o644)
	if def.OutputFile(evidenceDir) == "" {
		// Scanner writes to stdout (npm audit); we own persisting it.
		_ = os.WriteFile(stdoutPath, stdout.Bytes(), 0o644)
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	run := types.ScannerRun{
		Scanner:    def.Kind,
		Command:    cmdLine,
		Cwd:        repoPath,
		StartedAt:  started,
		FinishedAt: finished,
		ExitCode:   exitCode,
		DurationMS: finished.Sub(started).Milliseconds(),
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
	}

	if looksMissing(exitCode, stderr.String()) {
		return Outcome{
			Status: types.ScannerStatus{
				Scanner: def.Kind,
				Status:  types.RunStatusMissing,
				Message: "scanner reported missing during execution",
				Run:     run,
			},
			Findings: []types.Finding{missingMetaFinding(def.Kind, "scanner reported missing during execution")},
			Run:      run,
		}
	}

	raw := stdout.Bytes()
	if def.OutputFile(evidenceDir) != "" {
		fileBytes, readErr := os.ReadFile(def.OutputFile(evidenceDir))
		if readErr == nil {
			raw = fileBytes
		}
	}

	findings, parsed := normaliseWithOK(def, raw)
	status := types.RunStatusOK
	message := ""
	if !parsed {
		status = types.RunStatusError
		message = "scanner output could not be parsed; see " + stderrPath
	}

	version := r.probeVersion(ctx, def)

	return Outcome{
		Status: types.ScannerStatus{
			Scanner:      def.Kind,
			Status:       status,
			Message:      message,
			Version:      version,
			FindingCount: len(findings),
			Run:          run,
		},
		Findings: findings,
		Run:      run,
	}
}

func (r *Runner) missingOutcome(def ScannerKindInfo, program, reason string) Outcome {
	run := types.ScannerRun{Scanner: def.Kind, Command: program}
	return Outcome{
		Status: types.ScannerStatus{
			Scanner: def.Kind,
			Status:  types.RunStatusMissing,
			Message: reason,
			Run:     run,
		},
		Findings: []types.Finding{missingMetaFinding(def.Kind, reason)},
		Run:      run,
	}
}

func (r *Runner) errorOutcome(def ScannerKindInfo, run types.ScannerRun, reason string) Outcome {
	return Outcome{
		Status: types.ScannerStatus{
			Scanner: def.Kind,
			Status:  types.RunStatusError,
			Message: reason,
			Run:     run,
		},
		Run: run,
	}
}

// probeVersion best-effort-runs the scanner's --version probe, retried
// through pkg/resilience since this read-only probe is not evidence the
// way the main scan invocation is.
func (r *Runner) probeVersion(ctx context.Context, def ScannerKindInfo) string {
	program := def.Program()
	resolvedPath, err := LookPath(program)
	if err != nil {
		return ""
	}

	var out string
	_ = r.probeRetrier.Execute(ctx, func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		args := def.VersionArgs()
		cmdLine := policy.CommandLine(program, args...)
		if err := policy.AssertAllowed(cmdLine); err != nil {
			return nil // not retryable, and no version available
		}

		cmd := exec.CommandContext(probeCtx, resolvedPath, args...)
		var buf bytes.Buffer
		cmd.Stdout = &buf
		if err := cmd.Run(); err != nil {
			return err
		}
		lines := strings.SplitN(buf.String(), "\n", 2)
		out = strings.TrimSpace(lines[0])
		return nil
	})
	return out
}

func normaliseWithOK(def ScannerKindInfo, raw []byte) ([]types.Finding, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	findings := def.Normalise(raw)
	if findings == nil {
		// Ambiguous: could be a genuinely empty result or a parse
		// failure. Normalise already guards this — an empty slice
		// (non-nil) would signal "parsed, zero findings"; nil means
		// parse failed, per each normaliser's documented behaviour.
		return nil, false
	}
	return findings, true
}

func looksMissing(exitCode int, stderr string) bool {
	if exitCode == 127 {
		return true
	}
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "enoent") ||
		strings.Contains(lower, "is not recognized") ||
		strings.Contains(lower, "not found")
}

func missingMetaFinding(kind types.ScannerKind, reason string) types.Finding {
	return types.Finding{
		ID:          identityID(string(kind), "scanner-missing"),
		Scanner:     kind,
		Severity:    types.SeverityInfo,
		Title:       string(kind) + " is unavailable",
		Description: reason,
		Evidence:    types.Evidence{Kind: types.EvidenceCommandOutput, Ref: evidenceBaseName(kind) + "-stderr.txt"},
		Remediation: "Install " + string(kind) + " and re-run the scan to restore this scanner's coverage.",
		Tags:        []string{types.MetaFindingTag},
	}
}

func evidenceBaseName(kind types.ScannerKind) string {
	switch kind {
	case types.ScannerNpmAudit:
		return "npm-audit"
	default:
		return string(kind)
	}
}
