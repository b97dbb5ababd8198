package handlers

import (
	"context"
	"fmt"

	"github.com/complynav/compliance-navigator/internal/auditchain"
	"github.com/complynav/compliance-navigator/pkg/types"
)

// VerifyAuditChainInput is verify_audit_chain's request record. LogPath
// defaults to the handlers' own configured audit log when empty, so a
// caller can also verify an arbitrary exported log file.
type VerifyAuditChainInput struct {
	LogPath string
}

// VerifyAuditChain replays the hash chain at logPath (or the process's own
// audit log) and reports the first broken link, if any. This is the one
// operation that is deliberately NOT itself bracketed by tool_start/
// tool_end on the same log it may be verifying — appending to a log while
// verifying it would race the very thing being checked — but it still
// records its own outcome on the handlers' configured chain when that
// differs from logPath.
func (h *Handlers) VerifyAuditChain(ctx context.Context, in VerifyAuditChainInput) (types.VerifyResult, error) {
	const tool = "verify_audit_chain"
	logPath := in.LogPath
	if logPath == "" {
		logPath = h.Chain.Path()
	}

	selfCheck := logPath == h.Chain.Path()
	if !selfCheck {
		if err := h.toolStart(tool, map[string]string{"logPath": logPath}); err != nil {
			return types.VerifyResult{}, fmt.Errorf("appending tool_start: %w", err)
		}
	}

	result, err := auditchain.Verify(logPath)
	if err != nil {
		if !selfCheck {
			h.toolError(tool, err)
		}
		return types.VerifyResult{}, err
	}

	if !selfCheck {
		if err := h.toolEnd(tool, result); err != nil {
			h.Logger.WithComponent("handlers").WithError(err).Warn("failed to append tool_end audit entry")
		}
	}
	return result, nil
}
