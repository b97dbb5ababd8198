// Package notifications fires a best-effort summary through whichever
// external channels are configured once an audit packet has been
// generated. No channel configured means no-op; a failed send is logged
// and never surfaced as an error to the caller, matching the registry
// mirror's best-effort contract.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/complynav/compliance-navigator/internal/notifications/channels"
	"github.com/complynav/compliance-navigator/pkg/config"
)

// FindingSummary is one line item in a PacketReadyEvent's top findings.
type FindingSummary struct {
	Title    string
	Severity string
	Control  string
	File     string
}

// PacketReadyEvent carries the data a channel renders into its own
// message format.
type PacketReadyEvent struct {
	RunID                string
	RepoPath             string
	Framework            string
	CoveragePct          float64
	CoveragePctPotential float64
	CoveragePctFull      float64
	TopFindings          []FindingSummary
	AuditPacketPath      string
	IndexPath            string
}

// Notifier fans a PacketReadyEvent out to every configured channel.
type Notifier struct {
	channels []channels.Channel
	logger   *zap.Logger
}

// New builds a Notifier from cfg. Channels with no webhook/SMTP host
// configured are simply omitted, so a Notifier built from an empty
// NotifyConfig has zero channels and NotifyPacketReady is a no-op.
func New(cfg config.NotifyConfig, logger *zap.Logger) *Notifier {
	n := &Notifier{logger: logger}

	if cfg.SlackWebhookURL != "" {
		n.channels = append(n.channels, channels.NewSlackHandler(cfg.SlackWebhookURL, logger))
	}
	if cfg.TeamsWebhookURL != "" {
		n.channels = append(n.channels, channels.NewTeamsHandler(cfg.TeamsWebhookURL, logger))
	}
	if cfg.SMTPHost != "" && cfg.SMTPTo != "" {
		n.channels = append(n.channels, channels.NewEmailHandler(channels.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, logger))
	}

	return n
}

// NotifyPacketReady renders event and sends it to every configured
// channel concurrently. Every channel's error is logged and swallowed;
// this method never returns an error.
func (n *Notifier) NotifyPacketReady(ctx context.Context, event PacketReadyEvent) {
	if n == nil || len(n.channels) == 0 {
		return
	}

	msg := renderPacketReady(event)

	var wg sync.WaitGroup
	for _, ch := range n.channels {
		wg.Add(1)
		go func(ch channels.Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, msg); err != nil {
				n.logger.Warn("notification channel send failed",
					zap.String("channel", ch.Name()),
					zap.String("runId", event.RunID),
					zap.Error(err))
			}
		}(ch)
	}
	wg.Wait()
}

func renderPacketReady(event PacketReadyEvent) channels.Message {
	subject := fmt.Sprintf("Audit packet ready: %s (%s)", event.RunID, strings.ToUpper(event.Framework))

	var b strings.Builder
	fmt.Fprintf(&b, "**Repository:** %s\n\n", event.RepoPath)
	fmt.Fprintf(&b, "**Coverage:** %.1f%% observed, %.1f%% reachable by available scanners, %.1f%% of framework total\n\n",
		event.CoveragePct, event.CoveragePctPotential, event.CoveragePctFull)

	if len(event.TopFindings) > 0 {
		b.WriteString("**Top findings:**\n")
		for i, f := range event.TopFindings {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s (%s) — %s\n", strings.ToUpper(f.Severity), f.Title, f.Control, f.File)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Packet:** %s\n", event.AuditPacketPath)

	return channels.Message{Subject: subject, Body: b.String()}
}
